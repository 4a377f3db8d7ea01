// Package sessionlog persists the messages of a session as they are
// appended to the transcript.
package sessionlog

import (
	"context"
	"errors"

	"robopilot/internal/models"
)

// Sink receives every transcript message in append order and a summary
// when the session ends.
type Sink interface {
	Write(ctx context.Context, m models.Message) error
	Close(ctx context.Context, s models.Summary) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Write(context.Context, models.Message) error { return nil }
func (Nop) Close(context.Context, models.Summary) error { return nil }

// Multi fans out to several sinks. Every sink is attempted; the failures
// are joined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, msg models.Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close(ctx context.Context, sum models.Summary) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
