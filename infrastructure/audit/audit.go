// Package audit combines the configured audit destinations behind one sink.
package audit

import (
	"context"
	"errors"
	"fmt"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/domain/repository"
	"brokerage-gateway/infrastructure/logger"
)

// Named pairs a sink with the name used in error messages.
type Named struct {
	Name string
	Sink repository.IAuditSink
}

// FanOut appends every record to all sinks. One failing sink does not stop
// the others; the failures are joined into the returned error.
type FanOut struct {
	sinks []Named
}

func NewFanOut(sinks ...Named) *FanOut {
	return &FanOut{sinks: sinks}
}

func (f *FanOut) Len() int { return len(f.sinks) }

func (f *FanOut) Append(ctx context.Context, rec model.AuditRecord) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Sink.Append(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes audit records to the structured log.
type LogSink struct{}

func (LogSink) Append(_ context.Context, rec model.AuditRecord) error {
	accountID := ""
	if rec.AccountID != nil {
		accountID = *rec.AccountID
	}
	entry := logger.GetLogger().WithFields(map[string]interface{}{
		"audit":       true,
		"account_id":  accountID,
		"action":      rec.Action,
		"request":     rec.RequestSummary,
		"status_code": rec.StatusCode,
		"attempts":    rec.Attempts,
		"duration_ms": rec.DurationMs,
	})
	if rec.ErrorMessage != "" {
		entry.WithField("error", rec.ErrorMessage).Warn("Brokerage call failed")
		return nil
	}
	entry.Info("Brokerage call completed")
	return nil
}
