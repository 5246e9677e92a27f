package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 60 * time.Second

// TransportRequest is an outbound backend call. Credentials travel in Header.
type TransportRequest struct {
	URL    string
	Header http.Header
	Body   []byte
}

// Transport sends a request body to a backend endpoint and returns the response
// body. Any failure, including a non-success status, is returned as an error.
type Transport interface {
	Send(ctx context.Context, req *TransportRequest) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *TransportRequest) ([]byte, error)

func (f TransportFunc) Send(ctx context.Context, req *TransportRequest) ([]byte, error) {
	return f(ctx, req)
}

// HTTPStatusError is returned by HTTPTransport for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport creates a transport whose requests time out after timeout.
// A zero timeout uses 60 seconds.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

// Send POSTs the body and returns the response body for 2xx statuses.
func (t *HTTPTransport) Send(ctx context.Context, req *TransportRequest) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
