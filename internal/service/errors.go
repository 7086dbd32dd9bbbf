package service

import (
	"context"
	"errors"
	"fmt"
)

// CollaboratorError wraps a failed GitHub or LLM call.
type CollaboratorError struct {
	Op  string // e.g. "github.get_issue", "llm.generate_reply"
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *CollaboratorError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
