// Package processor forwards documents to the external document-processing
// service that performs enhancement, classification and extraction.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Operation names a processing step. The values double as history
// request_type values.
type Operation string

const (
	OpPreprocess      Operation = "preprocess"
	OpAutoIndex       Operation = "autoindex"
	OpClassify        Operation = "classify"
	OpExtract         Operation = "extract"
	OpExtractValidate Operation = "extractvalidate"
)

var upstreamPaths = map[Operation]string{
	OpPreprocess:      "/api/preprocess",
	OpAutoIndex:       "/api/autoindex",
	OpClassify:        "/api/classify",
	OpExtract:         "/api/extract",
	OpExtractValidate: "/api/extract-validate",
}

// Operations returns every known operation in pipeline order.
func Operations() []Operation {
	return []Operation{OpPreprocess, OpAutoIndex, OpClassify, OpExtract, OpExtractValidate}
}

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := upstreamPaths[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
	}
	return op, nil
}

var (
	ErrUnknownOperation    = errors.New("unknown operation")
	ErrBadUpstreamResponse = errors.New("document processor returned a non-JSON response")
)

const (
	maxResponseBytes = 64 << 20
	maxErrorText     = 512
)

// Config configures the upstream client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client calls the processing service.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// Result is the upstream status and JSON body.
type Result struct {
	Status int
	Body   json.RawMessage
}

// New validates cfg and builds a client with an instrumented transport.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("processor base URL is empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid processor base URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		base:  u,
		token: cfg.Token,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// Call posts body as JSON to the operation's endpoint. Transport failures
// and non-JSON 2xx bodies are errors. A non-JSON error response is returned
// as {"error": "<text>"} with its status.
func (c *Client) Call(ctx context.Context, op Operation, body any) (*Result, error) {
	path, ok := upstreamPaths[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}
	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	if json.Valid(raw) {
		return &Result{Status: resp.StatusCode, Body: raw}, nil
	}
	if resp.StatusCode < http.StatusBadRequest {
		return &Result{Status: resp.StatusCode}, fmt.Errorf("%w (status %d)", ErrBadUpstreamResponse, resp.StatusCode)
	}
	wrapped, err := json.Marshal(map[string]string{"error": upstreamText(raw, resp.StatusCode)})
	if err != nil {
		return nil, err
	}
	return &Result{Status: resp.StatusCode, Body: wrapped}, nil
}

// upstreamText trims a plain-text error body, falling back to the status text.
func upstreamText(raw []byte, status int) string {
	s := strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
	if s == "" {
		return http.StatusText(status)
	}
	if len(s) > maxErrorText {
		s = s[:maxErrorText] + "..."
	}
	return s
}
