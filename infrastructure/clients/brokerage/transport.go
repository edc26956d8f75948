package brokerage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBytes = 8 << 20

// ErrResponseTooLarge is returned instead of a truncated body.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// TransportResponse is the raw outcome of one HTTP exchange.
type TransportResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends one request with a per-request timeout.
type Transport interface {
	Send(ctx context.Context, req *http.Request, timeout time.Duration) (*TransportResponse, error)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client, maxBytes: maxResponseBytes}
}

func (t *HTTPTransport) Send(ctx context.Context, req *http.Request, timeout time.Duration) (*TransportResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > t.maxBytes {
		return nil, fmt.Errorf("%w: status %d, more than %d bytes", ErrResponseTooLarge, resp.StatusCode, t.maxBytes)
	}
	return &TransportResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}
