// Package diagram defines the records shared by the generation loop, the
// validator, and the history store.
package diagram

import "time"

// State is the reflection loop's current phase. Accepted and Exhausted are
// terminal.
type State string

const (
	StateGenerating State = "GENERATING"
	StateValidating State = "VALIDATING"
	StateAccepted   State = "ACCEPTED"
	StateExhausted  State = "EXHAUSTED"
)

// Defect categorizes why a candidate failed validation.
type Defect string

const (
	DefectEmpty   Defect = "EMPTY"
	DefectSyntax  Defect = "SYNTAX_ERROR"
	DefectTrivial Defect = "TOO_TRIVIAL"
)

// Attempt records one generate-validate cycle. It is never mutated after the
// loop records it; only the feedback text flows into the next prompt.
type Attempt struct {
	Iteration int
	Source    string
	Valid     bool
	Defect    Defect
	Feedback  string
	Latency   time.Duration
}

// Result is the loop's terminal output. When Accepted is false the Source is
// the last generated candidate regardless of validity (best-effort output).
type Result struct {
	Source   string
	Accepted bool
	State    State
	Attempts []Attempt
}
