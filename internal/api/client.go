// Package api implements the request/response client for the platform API.
// Every endpoint answers a {success: bool, message?: string, ...} envelope;
// success:false is an authoritative rejection and maps to a REJECTED error,
// transport failures map to NETWORK_ERROR.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"brilho/internal/models"
	"brilho/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Client talks to the platform API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Client for the given base URL and bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetToken replaces the bearer token, e.g. after login.
func (c *Client) SetToken(token string) { c.token = token }

// Envelope carries the success/message pair every API response opens with.
// Response types embed it.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (e Envelope) status() (bool, string) { return e.Success, e.Message }

type response interface {
	status() (ok bool, message string)
}

// do issues one API request and decodes the body into out.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out response) error {
	ctx, span := observability.StartSpan(ctx, "api."+method+" "+path)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("api.path", path))

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return models.NewInternalError(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return models.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		observability.APIRequestsTotal.WithLabelValues(path, "network_error").Inc()
		return models.NewNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		out = &Envelope{}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.SetStatus(codes.Error, err.Error())
		observability.APIRequestsTotal.WithLabelValues(path, "decode_error").Inc()
		return models.NewNetworkError(fmt.Errorf("decoding %s response: %w", path, err))
	}

	if ok, message := out.status(); !ok {
		span.SetStatus(codes.Error, message)
		observability.APIRequestsTotal.WithLabelValues(path, "rejected").Inc()
		if resp.StatusCode == http.StatusForbidden {
			return models.NewAccessDeniedError(message)
		}
		return models.NewRejectedError(message)
	}

	observability.APIRequestsTotal.WithLabelValues(path, "ok").Inc()
	return nil
}
