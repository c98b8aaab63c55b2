// Package loop drives the generate-validate-correct cycle that refines model
// output using the validator's feedback from the previous attempt.
package loop

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/valpere/flowsketch/internal/diagram"
	"github.com/valpere/flowsketch/internal/llm"
	"github.com/valpere/flowsketch/internal/postprocess"
	"github.com/valpere/flowsketch/internal/prompt"
	"github.com/valpere/flowsketch/internal/validator"
)

const (
	DefaultMaxIterations = 3
	DefaultTimeout       = 60 * time.Second
)

type Config struct {
	// MaxIterations bounds the number of generation attempts. Values below 1
	// are clamped to 1: the loop always attempts at least one generation.
	MaxIterations int
	// Timeout applies to each model call individually.
	Timeout time.Duration
	// Progress receives one line per iteration; nil discards.
	Progress io.Writer
}

// Loop orchestrates Prompt Builder, Generator, and Validator across at most
// MaxIterations attempts.
type Loop struct {
	gen      llm.Generator
	val      *validator.Validator
	config   Config
	progress io.Writer
}

func New(gen llm.Generator, val *validator.Validator, config Config) *Loop {
	if config.MaxIterations < 1 {
		config.MaxIterations = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	progress := config.Progress
	if progress == nil {
		progress = io.Discard
	}
	return &Loop{gen: gen, val: val, config: config, progress: progress}
}

// Run executes the state machine until a terminal state. It returns a Result
// for ACCEPTED and EXHAUSTED; only a failed model call returns an error
// (GenerationError), never a quality defect.
//
// On EXHAUSTED the Result carries the last generated candidate even though it
// failed validation; the caller decides how to report that.
func (l *Loop) Run(ctx context.Context, input string) (*diagram.Result, error) {
	var (
		state     = diagram.StateGenerating
		iteration = 0
		attempts  []diagram.Attempt
		candidate string
		feedback  string
		verdict   validator.Verdict
	)

	for {
		switch state {
		case diagram.StateGenerating:
			p := prompt.Initial(input)
			if iteration > 0 {
				p = prompt.Revision(input, candidate, feedback)
			}

			callCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
			start := time.Now()
			raw, err := l.gen.Generate(callCtx, p)
			latency := time.Since(start)
			cancel()
			if err != nil {
				return nil, &diagram.GenerationError{Err: err}
			}

			candidate = postprocess.EnsureHeader(postprocess.Clean(raw))
			attempts = append(attempts, diagram.Attempt{
				Iteration: iteration,
				Source:    candidate,
				Latency:   latency,
			})
			state = diagram.StateValidating

		case diagram.StateValidating:
			verdict = l.val.Check(candidate)
			last := &attempts[len(attempts)-1]
			last.Valid = verdict.Valid
			last.Defect = verdict.Defect
			last.Feedback = verdict.Feedback

			if verdict.Valid {
				state = diagram.StateAccepted
				break
			}

			fmt.Fprintf(l.progress, "iteration %d/%d rejected (%s): %s\n",
				iteration+1, l.config.MaxIterations, verdict.Defect, verdict.Feedback)

			iteration++
			if iteration < l.config.MaxIterations {
				feedback = verdict.Feedback
				state = diagram.StateGenerating
			} else {
				state = diagram.StateExhausted
			}

		case diagram.StateAccepted:
			return &diagram.Result{
				Source:   candidate,
				Accepted: true,
				State:    diagram.StateAccepted,
				Attempts: attempts,
			}, nil

		case diagram.StateExhausted:
			return &diagram.Result{
				Source:   candidate,
				Accepted: false,
				State:    diagram.StateExhausted,
				Attempts: attempts,
			}, nil
		}
	}
}
