// Package fetch performs the outbound retrieval of a Mark's URL with a
// bounded timeout.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jchook/retrace/internal/config"
)

// Result is a completed fetch. The body has been read fully into memory,
// bounded by the configured limit.
type Result struct {
	StatusCode    int
	MimeType      string
	ETag          string
	ContentLength int64
	Headers       map[string]string
	Body          []byte
}

// Client retrieves URLs over HTTP. Every request is bounded by the
// configured timeout and the caller's context.
type Client struct {
	client       *http.Client
	userAgent    string
	maxRetries   int
	maxBodyBytes int64
}

// NewClient creates a fetch client from configuration.
func NewClient(cfg config.HTTPConfig) *Client {
	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent:    cfg.UserAgent,
		maxRetries:   cfg.MaxRetries,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Fetch retrieves url and reads the full response body. Transport failures
// and unreadable bodies are errors; a non-2xx status is not, the caller
// records the status code as part of the Access audit trail.
func (c *Client) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, lastErr = c.client.Do(req)
		if lastErr == nil && resp.StatusCode < 500 {
			break
		}
		// A 5xx on the final attempt is still a response: keep its body
		// open so the caller can read it and record the status code.
		if resp != nil && attempt < c.maxRetries {
			resp.Body.Close()
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	return &Result{
		StatusCode:    resp.StatusCode,
		MimeType:      resp.Header.Get("Content-Type"),
		ETag:          resp.Header.Get("ETag"),
		ContentLength: int64(len(body)),
		Headers:       headers,
		Body:          body,
	}, nil
}
