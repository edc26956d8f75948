// Package brokerage sends signed calls to the brokerage API. The Executor runs
// one outermost call through its rate-limit retry sequence and reports it to
// the audit sink exactly once; the Dispatcher resolves the account's access
// token before handing the call to the Executor.
package brokerage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"brokerage-gateway/domain/apierror"
	"brokerage-gateway/domain/model"
	"brokerage-gateway/domain/repository"
	"brokerage-gateway/infrastructure/logger"
	"brokerage-gateway/infrastructure/utils"
)

const auditTimeout = 5 * time.Second

// Config holds the retry policy of the Executor.
type Config struct {
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffFactor  int
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
		BackoffBase:    5 * time.Second,
		BackoffFactor:  2,
	}
}

// Backoff is the wait after the given zero-based attempt: base * factor^attempt.
func (c Config) Backoff(attempt int) time.Duration {
	d := c.BackoffBase
	for i := 0; i < attempt; i++ {
		d *= time.Duration(c.BackoffFactor)
	}
	return d
}

// RequestSigner signs one network attempt.
type RequestSigner interface {
	SignRequest(method, rawURL string, query url.Values, token *model.TokenPair, extra map[string]string) (*model.SignedRequest, error)
}

// Executor implements repository.ICallExecutor.
type Executor struct {
	signer    RequestSigner
	transport Transport
	sink      repository.IAuditSink
	clock     utils.Clock
	cfg       Config
}

func NewExecutor(signer RequestSigner, transport Transport, sink repository.IAuditSink, clock utils.Clock, cfg Config) *Executor {
	if clock == nil {
		clock = utils.SystemClock()
	}
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	return &Executor{signer: signer, transport: transport, sink: sink, clock: clock, cfg: cfg}
}

// outcome of a single network attempt.
type outcome interface{ isOutcome() }

type success struct{ result *model.CallResult }

type retryable struct {
	result *model.CallResult
	delay  time.Duration
}

type terminal struct {
	result *model.CallResult
	err    error
}

func (success) isOutcome()   {}
func (retryable) isOutcome() {}
func (terminal) isOutcome()  {}

// Execute runs the call until it succeeds, fails terminally or the retry
// budget for 429 responses is spent. The returned result carries the last
// response seen, also on error.
func (e *Executor) Execute(ctx context.Context, call model.Call) (*model.CallResult, error) {
	start := e.clock.Now()
	result, err := e.run(ctx, call)
	e.audit(ctx, call, result, err, start)
	return result, err
}

// Reject records a call that failed before any network attempt.
func (e *Executor) Reject(ctx context.Context, call model.Call, cause error) {
	e.audit(ctx, call, nil, cause, e.clock.Now())
}

func (e *Executor) run(ctx context.Context, call model.Call) (*model.CallResult, error) {
	for attempt := 0; ; attempt++ {
		switch out := e.attempt(ctx, call, attempt).(type) {
		case success:
			return out.result, nil
		case terminal:
			return out.result, out.err
		case retryable:
			logger.GetLogger().WithFields(map[string]interface{}{
				"action":  call.Action,
				"attempt": attempt + 1,
				"delay":   out.delay.String(),
			}).Warn("Rate limited by brokerage, backing off")
			if err := e.clock.Sleep(ctx, out.delay); err != nil {
				return out.result, apierror.Cancelled(err)
			}
		}
	}
}

func (e *Executor) attempt(ctx context.Context, call model.Call, attempt int) outcome {
	if err := ctx.Err(); err != nil {
		return terminal{err: apierror.Cancelled(err)}
	}
	signed, err := e.signer.SignRequest(call.Method, call.URL, call.Query, call.Token, call.OAuthParams)
	if err != nil {
		return terminal{err: fmt.Errorf("sign request: %w", err)}
	}
	req, err := newRequest(ctx, signed, call)
	if err != nil {
		return terminal{err: err}
	}

	res, err := e.transport.Send(ctx, req, e.cfg.RequestTimeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return terminal{err: apierror.Cancelled(ctxErr)}
		}
		return terminal{err: &apierror.TransportError{Op: signed.Method + " " + req.URL.Path, Err: err}}
	}

	result := &model.CallResult{StatusCode: res.StatusCode, Body: res.Body, Attempts: attempt + 1}
	logger.GetLogger().WithFields(map[string]interface{}{
		"action":  call.Action,
		"attempt": result.Attempts,
		"status":  res.StatusCode,
	}).Debug("Brokerage call attempt completed")

	switch {
	case res.StatusCode == http.StatusTooManyRequests && attempt < e.cfg.MaxRetries:
		return retryable{result: result, delay: e.cfg.Backoff(attempt)}
	case res.StatusCode == http.StatusTooManyRequests:
		return terminal{result: result, err: &apierror.RateLimitError{Attempts: result.Attempts, Body: string(res.Body)}}
	case res.StatusCode >= 400:
		return terminal{result: result, err: apierror.NewAPIError(res.StatusCode, res.Body)}
	}
	return success{result: result}
}

func newRequest(ctx context.Context, signed *model.SignedRequest, call model.Call) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, signed.Method, signed.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", signed.AuthorizationHeader)
	req.Header.Set("Accept", "application/json")
	if len(call.Body) > 0 {
		contentType := call.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (e *Executor) audit(ctx context.Context, call model.Call, result *model.CallResult, callErr error, start time.Time) {
	if e.sink == nil {
		return
	}
	rec := model.AuditRecord{
		Action:         call.Action,
		RequestSummary: model.SummarizeRequest(call.Method, call.URL, call.Query, call.Body),
		DurationMs:     e.clock.Now().Sub(start).Milliseconds(),
		CreatedAt:      start.UTC(),
	}
	if call.AccountID != "" {
		accountID := call.AccountID
		rec.AccountID = &accountID
	}
	if result != nil {
		rec.StatusCode = result.StatusCode
		rec.Attempts = result.Attempts
		rec.ResponseBody = string(result.Body)
		if call.RedactResponse {
			rec.ResponseBody = model.RedactOAuthBody(rec.ResponseBody)
		}
	}
	if callErr != nil {
		rec.ErrorMessage = callErr.Error()
	}
	rec = rec.Truncated()

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WithField("panic", r).Warn("Audit sink panicked, record dropped")
		}
	}()
	if err := e.sink.Append(auditCtx, rec); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"action": call.Action,
			"error":  err.Error(),
		}).Warn("Failed to append audit record")
	}
}
