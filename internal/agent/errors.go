package agent

import (
	"errors"
	"fmt"
)

// Reason names why a conversation cannot continue.
type Reason string

const (
	ReasonAuthentication   Reason = "authentication failed"
	ReasonInvalidRequest   Reason = "invalid request"
	ReasonRetriesExhausted Reason = "retries exhausted"
	ReasonContextOverflow  Reason = "context overflow"
	ReasonUnknownTool      Reason = "unknown tool"
	ReasonToolRounds       Reason = "too many tool rounds"
	ReasonMalformedCalls   Reason = "too many malformed tool calls"
	ReasonAborted          Reason = "aborted"
)

// FatalError ends the session. The CLI prints it and exits with status 1.
type FatalError struct {
	Reason Reason
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(reason Reason, err error) *FatalError {
	return &FatalError{Reason: reason, Err: err}
}

// AsFatal unwraps err into a *FatalError if it is one.
func AsFatal(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
