package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"brokerage-gateway/domain/model"
	"brokerage-gateway/domain/repository"
	"brokerage-gateway/infrastructure/logger"
)

// ErrQueueFull is returned by Async.Append when the record was dropped.
var ErrQueueFull = errors.New("audit queue full, record dropped")

// Async queues records for a background writer so Append never waits on the
// destination. The queue is bounded; a full queue drops the record.
type Async struct {
	sink    repository.IAuditSink
	queue   chan model.AuditRecord
	timeout time.Duration
	dropped atomic.Int64
}

func NewAsync(sink repository.IAuditSink, size int, timeout time.Duration) *Async {
	if size <= 0 {
		size = 1
	}
	return &Async{sink: sink, queue: make(chan model.AuditRecord, size), timeout: timeout}
}

func (a *Async) Append(_ context.Context, rec model.AuditRecord) error {
	select {
	case a.queue <- rec:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped is the number of records rejected because the queue was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Run writes queued records until ctx is done, then flushes what is left.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-a.queue:
			a.write(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-a.queue:
					a.write(rec)
				default:
					logger.GetLogger().WithField("dropped", a.Dropped()).Info("Audit writer stopped")
					return nil
				}
			}
		}
	}
}

func (a *Async) write(rec model.AuditRecord) {
	ctx := context.Background()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WithField("panic", r).Warn("Audit sink panicked, record dropped")
		}
	}()
	if err := a.sink.Append(ctx, rec); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"action": rec.Action,
			"error":  err.Error(),
		}).Warn("Failed to write audit record")
	}
}
