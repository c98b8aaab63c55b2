package internal

import "time"

type GenerationRequest struct {
	ID        string    `json:"id"`
	Input     string    `json:"input"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}
