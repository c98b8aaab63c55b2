package loop

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valpere/flowsketch/internal/diagram"
	"github.com/valpere/flowsketch/internal/validator"
)

const (
	validSource   = "flowchart TD\nA[Start] --> B[End]"
	trivialSource = "flowchart TD\nA[Only Node]"
)

type mockGenerator struct {
	generateFunc func(ctx context.Context, prompt string) (string, error)
	prompts      []string
	callCount    int
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	if m.generateFunc != nil {
		return m.generateFunc(ctx, prompt)
	}
	return validSource, nil
}

func newLoop(gen *mockGenerator, maxIterations int) *Loop {
	return New(gen, validator.New(2, 1), Config{
		MaxIterations: maxIterations,
		Timeout:       5 * time.Second,
	})
}

func TestRun_ValidFirstTry(t *testing.T) {
	gen := &mockGenerator{}
	l := newLoop(gen, 3)

	result, err := l.Run(context.Background(), "Describe the onboarding process")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted {
		t.Error("expected accepted result")
	}
	if result.State != diagram.StateAccepted {
		t.Errorf("expected ACCEPTED state, got %s", result.State)
	}
	if gen.callCount != 1 {
		t.Errorf("expected exactly 1 generation, got %d", gen.callCount)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("expected 1 recorded attempt, got %d", len(result.Attempts))
	}
	if result.Source != validSource {
		t.Errorf("expected %q, got %q", validSource, result.Source)
	}
}

func TestRun_RecoversAfterKFailures(t *testing.T) {
	const k = 2
	gen := &mockGenerator{}
	gen.generateFunc = func(_ context.Context, _ string) (string, error) {
		if gen.callCount <= k {
			return trivialSource, nil
		}
		return validSource, nil
	}
	l := newLoop(gen, 5)

	result, err := l.Run(context.Background(), "make a chart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted {
		t.Fatal("expected accepted result")
	}
	if gen.callCount != k+1 {
		t.Errorf("expected acceptance at attempt %d, got %d calls", k+1, gen.callCount)
	}

	// Each retry prompt must carry the immediately preceding defect feedback.
	for i := 1; i <= k; i++ {
		prev := result.Attempts[i-1]
		if prev.Feedback == "" {
			t.Fatalf("attempt %d recorded no feedback", i-1)
		}
		if !strings.Contains(gen.prompts[i], prev.Feedback) {
			t.Errorf("prompt %d does not contain preceding feedback %q", i, prev.Feedback)
		}
		if !strings.Contains(gen.prompts[i], prev.Source) {
			t.Errorf("prompt %d does not contain the rejected draft", i)
		}
	}
}

func TestRun_ExhaustsAfterMaxIterations(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(_ context.Context, _ string) (string, error) {
			return trivialSource, nil
		},
	}
	l := newLoop(gen, 3)

	result, err := l.Run(context.Background(), "make a chart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Accepted {
		t.Error("expected best-effort (not accepted) result")
	}
	if result.State != diagram.StateExhausted {
		t.Errorf("expected EXHAUSTED state, got %s", result.State)
	}
	if gen.callCount != 3 {
		t.Errorf("expected exactly 3 generations, never more, never fewer; got %d", gen.callCount)
	}
	// Best-effort policy: the last candidate is returned despite being invalid.
	if result.Source != trivialSource {
		t.Errorf("expected last candidate %q, got %q", trivialSource, result.Source)
	}
	if len(result.Attempts) != 3 {
		t.Errorf("expected 3 recorded attempts, got %d", len(result.Attempts))
	}
}

func TestRun_ZeroMaxIterationsStillAttemptsOnce(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(_ context.Context, _ string) (string, error) {
			return trivialSource, nil
		},
	}
	l := newLoop(gen, 0)

	result, err := l.Run(context.Background(), "make a chart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.callCount != 1 {
		t.Errorf("expected exactly 1 generation for max_iterations=0, got %d", gen.callCount)
	}
	if result.State != diagram.StateExhausted {
		t.Errorf("expected EXHAUSTED state, got %s", result.State)
	}
}

func TestRun_EmptyOutputIsEmptyDefect(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(_ context.Context, _ string) (string, error) {
			return "", nil
		},
	}
	l := newLoop(gen, 2)

	result, err := l.Run(context.Background(), "make a chart")
	if err != nil {
		t.Fatalf("expected best-effort result, not an error: %v", err)
	}
	if len(result.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(result.Attempts))
	}
	for i, a := range result.Attempts {
		if a.Defect != diagram.DefectEmpty {
			t.Errorf("attempt %d: expected EMPTY defect, got %s", i, a.Defect)
		}
	}
}

func TestRun_GeneratorFailureAborts(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(_ context.Context, _ string) (string, error) {
			return "", errors.New("request timed out")
		},
	}
	l := newLoop(gen, 3)

	result, err := l.Run(context.Background(), "make a chart")
	if err == nil {
		t.Fatal("expected error for generator failure")
	}
	var genErr *diagram.GenerationError
	if !errors.As(err, &genErr) {
		t.Errorf("expected GenerationError, got %T", err)
	}
	if result != nil {
		t.Error("expected nil result on generation failure")
	}
	if gen.callCount != 1 {
		t.Errorf("expected no retry-via-reflection for model failures, got %d calls", gen.callCount)
	}
}

func TestRun_GeneratorFailureOnRetryAborts(t *testing.T) {
	gen := &mockGenerator{}
	gen.generateFunc = func(_ context.Context, _ string) (string, error) {
		if gen.callCount == 1 {
			return trivialSource, nil
		}
		return "", errors.New("provider error")
	}
	l := newLoop(gen, 3)

	_, err := l.Run(context.Background(), "make a chart")
	var genErr *diagram.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if gen.callCount != 2 {
		t.Errorf("expected abort on second call, got %d calls", gen.callCount)
	}
}

func TestRun_PerCallTimeout(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	l := New(gen, validator.New(2, 1), Config{
		MaxIterations: 3,
		Timeout:       10 * time.Millisecond,
	})

	_, err := l.Run(context.Background(), "make a chart")
	var genErr *diagram.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError for timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped deadline error, got %v", err)
	}
	if gen.callCount != 1 {
		t.Errorf("expected zero validation attempts after first-call timeout, got %d calls", gen.callCount)
	}
}

func TestRun_CleansFencedOutput(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(_ context.Context, _ string) (string, error) {
			return "Here is the flowchart:\n```mermaid\n" + validSource + "\n```", nil
		},
	}
	l := newLoop(gen, 3)

	result, err := l.Run(context.Background(), "make a chart")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected fenced output to validate after cleanup: %+v", result.Attempts)
	}
	if result.Source != validSource {
		t.Errorf("expected cleaned source %q, got %q", validSource, result.Source)
	}
}

func TestRun_ExampleOnboardingScenario(t *testing.T) {
	gen := &mockGenerator{
		generateFunc: func(_ context.Context, _ string) (string, error) {
			return "flowchart TD\nA-->B", nil
		},
	}
	l := newLoop(gen, 3)

	result, err := l.Run(context.Background(), "Describe the onboarding process")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted || result.State != diagram.StateAccepted {
		t.Fatalf("expected ACCEPTED at iteration 1, got %s", result.State)
	}
	if len(result.Attempts) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(result.Attempts))
	}
	if !strings.Contains(result.Source, "A-->B") {
		t.Errorf("expected source to contain 'A-->B', got %q", result.Source)
	}
}
