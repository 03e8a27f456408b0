package client

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Health reports liveness from /healthz
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/healthz", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Ready reports readiness from /readyz. A server that cannot reach its
// database answers 503, returned as an *APIError with IsUnavailable set.
func (c *Client) Ready(ctx context.Context) (*HealthResponse, error) {
	var ready HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/readyz", nil, &ready); err != nil {
		return nil, err
	}
	return &ready, nil
}

// Status checks liveness and then readiness. An unreachable server is an
// error; a live server whose store is down is reported with Ready false.
func (c *Client) Status(ctx context.Context) (*ServerStatus, error) {
	start := time.Now()
	if _, err := c.Health(ctx); err != nil {
		return nil, err
	}
	status := &ServerStatus{Live: true, Latency: time.Since(start)}

	ready, err := c.Ready(ctx)
	var apiErr *APIError
	switch {
	case err == nil:
		status.Ready = true
		status.Database = ready.Database
	case errors.As(err, &apiErr) && apiErr.IsUnavailable():
		status.Database = "unavailable"
		status.Detail = apiErr.Message
	default:
		return nil, err
	}
	return status, nil
}

// Ping is a simple connectivity test
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}
