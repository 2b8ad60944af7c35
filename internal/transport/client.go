// Package transport invokes OrderService operations on a remote instance
// worker over HTTP/JSON.
//
// Every call is bounded by the client's call timeout. Failures that happen
// below the application (connection refused, timeout, 5xx) are reported
// wrapped in domain.ErrUnreachable; anything else is a ProtocolError and
// points at a bug rather than a dead member.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/domain"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

// ProtocolError is returned when the member answered but the exchange
// itself was invalid (4xx status or an undecodable body).
type ProtocolError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: protocol error (status %d): %v", e.Method, e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: protocol error (status %d)", e.Method, e.Path, e.Status)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Client is the remote handle of one registry member.
type Client struct {
	id      string
	name    string
	timeout time.Duration
	http    *resty.Client
	logger  logger.Logger
}

// New creates a client for the member registered as name at endpoint (base URL).
func New(id, name, endpoint string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		id:      id,
		name:    name,
		timeout: timeout,
		http: resty.New().
			SetBaseURL(endpoint).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		logger: log.With(logger.String("member", id)),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) ProcessOrder(ctx context.Context, description string) (string, error) {
	var out api.MessageResponse
	if err := c.call(ctx, http.MethodPost, api.PathOrders, api.OrderRequest{Description: description}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) OrderHistory(ctx context.Context) ([]string, error) {
	var out api.HistoryResponse
	if err := c.call(ctx, http.MethodGet, api.PathOrders, nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (c *Client) Activate(ctx context.Context) (string, error) {
	var out api.MessageResponse
	if err := c.call(ctx, http.MethodPost, api.PathActivate, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) Deactivate(ctx context.Context) (string, error) {
	var out api.MessageResponse
	if err := c.call(ctx, http.MethodPost, api.PathDeactivate, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) IsActive(ctx context.Context) (bool, error) {
	var out api.ActiveResponse
	if err := c.call(ctx, http.MethodGet, api.PathActive, nil, &out); err != nil {
		return false, err
	}
	return out.Active, nil
}

func (c *Client) IsAlive(ctx context.Context) (bool, error) {
	var out api.AliveResponse
	if err := c.call(ctx, http.MethodGet, api.PathAlive, nil, &out); err != nil {
		return false, err
	}
	return out.Alive, nil
}

// Shutdown sends the stop signal without waiting for it. The member may stop
// serving before it replies, so the outcome is only logged.
func (c *Client) Shutdown(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.call(ctx, http.MethodPost, api.PathShutdown, nil, nil); err != nil {
			c.logger.Debug("shutdown signal not acknowledged", logger.Error(err))
		}
	}()
}

// Close releases idle connections held for this member.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := c.http.R().SetContext(ctx).SetError(&api.ErrorResponse{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		// The caller gave up: this says nothing about the member.
		if perr := parent.Err(); perr != nil {
			return fmt.Errorf("%s %s on %s: %w", method, path, c.name, perr)
		}
		if resp == nil || resp.RawResponse == nil || isTransportFailure(err) {
			return fmt.Errorf("%s %s on %s: %w: %w", method, path, c.name, domain.ErrUnreachable, err)
		}
		return &ProtocolError{Method: method, Path: path, Status: resp.StatusCode(), Err: err}
	}

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return fmt.Errorf("%s %s on %s: %w: status %d", method, path, c.name, domain.ErrUnreachable, resp.StatusCode())
	case resp.IsError():
		perr := &ProtocolError{Method: method, Path: path, Status: resp.StatusCode()}
		if e, ok := resp.Error().(*api.ErrorResponse); ok && e.Error != "" {
			perr.Err = errors.New(e.Error)
		}
		return perr
	}
	return nil
}

// isTransportFailure reports errors raised while the response was still
// being received (timeout, dropped connection, truncated body). Only a
// complete body that fails to decode is left to the caller as a protocol error.
func isTransportFailure(err error) bool {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.As(err, &netErr):
		return true
	}
	return false
}
