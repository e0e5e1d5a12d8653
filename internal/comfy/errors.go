package comfy

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyPromptID is returned when the backend accepts a job without naming it.
var ErrEmptyPromptID = errors.New("comfy: response has no prompt_id")

// SubmissionError reports that the backend rejected a job with a non-success status.
type SubmissionError struct {
	StatusCode int
	StatusText string
	Body       string
}

func (e *SubmissionError) Error() string {
	return "ComfyUI Error: " + e.StatusText
}

// TransportError reports a network failure while talking to the backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "comfy: " + e.Op + " failed"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GenerationTimeoutError reports that polling used up its attempt budget.
type GenerationTimeoutError struct {
	PromptID string
	Attempts int
	Elapsed  time.Duration
}

func (e *GenerationTimeoutError) Error() string {
	return "Generation timed out"
}

// Detail includes the polling figures for logs.
func (e *GenerationTimeoutError) Detail() string {
	return fmt.Sprintf("prompt %s not ready after %d attempts (%s)", e.PromptID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// IsTimeout reports whether err is a GenerationTimeoutError.
func IsTimeout(err error) bool {
	var te *GenerationTimeoutError
	return errors.As(err, &te)
}
