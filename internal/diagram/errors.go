package diagram

import "fmt"

// ConfigError reports a missing or unusable configuration value. It is
// raised before any generation attempt.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Reason)
}

// GenerationError reports a failed or timed-out model call. It aborts the
// loop immediately; a provider failure is not a quality defect and is not
// corrected by reflection.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IOError reports a failed output write. The diagram text itself is still
// usable by the caller.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
