// Package store persists generation history and a cache of accepted diagrams
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/flowsketch/internal"
	"github.com/valpere/flowsketch/internal/diagram"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generation_requests (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		model TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- generation_attempts records every iteration of the reflection loop,
	-- including rejected candidates and their defect feedback
	CREATE TABLE IF NOT EXISTS generation_attempts (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		source TEXT NOT NULL,
		valid BOOLEAN NOT NULL,
		defect TEXT,
		feedback TEXT,
		latency_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (request_id) REFERENCES generation_requests(id)
	);

	-- accepted_diagrams caches validated output so a repeated input skips
	-- the model entirely
	CREATE TABLE IF NOT EXISTS accepted_diagrams (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		model TEXT NOT NULL,
		source TEXT NOT NULL,
		iterations INTEGER DEFAULT 1,
		usage_count INTEGER DEFAULT 1,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(input, model)
	);

	CREATE INDEX IF NOT EXISTS idx_accepted_lookup ON accepted_diagrams(input, model);
	CREATE INDEX IF NOT EXISTS idx_attempts_request ON generation_attempts(request_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveRequest(ctx context.Context, req internal.GenerationRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_requests (id, input, model, created_at) VALUES (?, ?, ?, ?)`,
		req.ID, req.Input, req.Model, req.Timestamp)
	return err
}

func (s *Store) SaveAttempt(ctx context.Context, requestID string, a diagram.Attempt) error {
	id := fmt.Sprintf("%s_%d", requestID, a.Iteration)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_attempts (id, request_id, iteration, source, valid, defect, feedback, latency_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, requestID, a.Iteration, a.Source, a.Valid, string(a.Defect), a.Feedback, a.Latency.Milliseconds())
	return err
}

// SaveAccepted stores a validated diagram keyed by normalized input and model.
func (s *Store) SaveAccepted(ctx context.Context, input, model, source string, iterations int) error {
	id := fmt.Sprintf("acc_%d", time.Now().UnixNano())
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO accepted_diagrams (id, input, model, source, iterations, usage_count, last_used, created_at) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		id, normalizeInput(input), model, source, iterations, time.Now(), time.Now())
	return err
}

// GetCachedDiagram looks up an accepted diagram for input and model, bumping
// its usage count on a hit.
func (s *Store) GetCachedDiagram(ctx context.Context, input, model string) (string, bool, error) {
	var source string

	err := s.db.QueryRowContext(ctx,
		`SELECT source FROM accepted_diagrams WHERE input = ? AND model = ?`,
		normalizeInput(input), model).Scan(&source)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE accepted_diagrams SET usage_count = usage_count + 1, last_used = ? WHERE input = ? AND model = ?`,
		time.Now(), normalizeInput(input), model)

	return source, true, err
}

// AcceptedEntry is a row from the accepted_diagrams table.
type AcceptedEntry struct {
	ID         string
	Input      string
	Model      string
	Source     string
	Iterations int
	UsageCount int
	LastUsed   time.Time
}

// HistoryStats summarises generation history.
type HistoryStats struct {
	TotalRequests  int
	TotalAttempts  int
	AcceptedCount  int
	RejectedCount  int
	CachedDiagrams int
	TotalUsage     int
}

// DeleteAccepted permanently removes a cached diagram by ID.
func (s *Store) DeleteAccepted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM accepted_diagrams WHERE id = ?`, id)
	return err
}

// ClearAccepted removes all cached diagrams.
func (s *Store) ClearAccepted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accepted_diagrams`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListAccepted returns all cached diagrams ordered by most recently used.
func (s *Store) ListAccepted(ctx context.Context) ([]AcceptedEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, model, source, iterations, usage_count, last_used FROM accepted_diagrams ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AcceptedEntry
	for rows.Next() {
		var e AcceptedEntry
		if err := rows.Scan(&e.ID, &e.Input, &e.Model, &e.Source, &e.Iterations, &e.UsageCount, &e.LastUsed); err != nil {
			return nil, err
		}
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics over requests, attempts, and the cache.
func (s *Store) Stats(ctx context.Context) (*HistoryStats, error) {
	stats := &HistoryStats{}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM generation_requests`).Scan(&stats.TotalRequests); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN valid THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT valid THEN 1 ELSE 0 END), 0)
		FROM generation_attempts`).Scan(
		&stats.TotalAttempts,
		&stats.AcceptedCount,
		&stats.RejectedCount,
	); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(usage_count), 0)
		FROM accepted_diagrams`).Scan(
		&stats.CachedDiagrams,
		&stats.TotalUsage,
	); err != nil {
		return nil, err
	}

	return stats, nil
}

func normalizeInput(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
