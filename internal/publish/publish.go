// Package publish forwards committed registry events to downstream systems.
package publish

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/poe/internal/ir"
)

// Publisher delivers one committed event.
type Publisher interface {
	Publish(ctx context.Context, ev ir.EventRecord) error
}

// LogPublisher writes every event to a structured logger.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs ev at info level. A nil Logger uses slog.Default().
func (p LogPublisher) Publish(ctx context.Context, ev ir.EventRecord) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"call_id", ev.CallID,
		"seq", ev.Seq,
		"block", ev.Block,
		"caller", ev.Caller,
		"fingerprint", ir.FormatFingerprint(ev.Fingerprint),
	}
	if ev.Receiver != "" {
		attrs = append(attrs, "receiver", ev.Receiver)
	}
	logger.InfoContext(ctx, ev.Kind, attrs...)
	return nil
}

// Multi fans an event out to several publishers.
//
// Every publisher is tried; failures are joined.
type Multi []Publisher

// Publish delivers ev to each publisher in order.
func (m Multi) Publish(ctx context.Context, ev ir.EventRecord) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
