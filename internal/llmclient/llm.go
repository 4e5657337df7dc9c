package llmclient

import (
	"context"
	"errors"
)

// ErrEmptyResponse means the model returned no usable text.
var ErrEmptyResponse = errors.New("empty response from LLM")

// Engine is the streaming analysis backend. GenerateStream invokes the model
// with prompt, calls onChunk for every incremental text fragment as it
// arrives, and returns the full accumulated text. The engine may fail
// mid-stream; whatever reached onChunk before the failure has already been
// forwarded downstream.
type Engine interface {
	Name() string
	GenerateStream(ctx context.Context, prompt string, onChunk func(chunk string)) (string, error)
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
