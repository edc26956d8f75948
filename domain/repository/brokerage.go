package repository

import (
	"context"
	"net/url"

	"brokerage-gateway/domain/model"
)

// ICallExecutor runs one outermost signed call: fresh signature per attempt,
// rate-limit backoff and a single audit record.
type ICallExecutor interface {
	Execute(ctx context.Context, call model.Call) (*model.CallResult, error)
	// Reject audits a call that failed before reaching the network.
	Reject(ctx context.Context, call model.Call, cause error)
}

// IBrokerage dispatches signed business calls on behalf of an account.
type IBrokerage interface {
	Dispatch(ctx context.Context, method, rawURL string, query url.Values, body []byte, accountID string) ([]byte, error)
	DispatchAction(ctx context.Context, action, method, rawURL string, query url.Values, body []byte, accountID string) ([]byte, error)
}

// IAuditSink receives audit records. It owns its persistence format.
type IAuditSink interface {
	Append(ctx context.Context, rec model.AuditRecord) error
}
