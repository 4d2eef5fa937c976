// Package analytics provides an HTTP client for the tabular analytics service.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dohr-michael/tabchat/internal/failure"
	"github.com/dohr-michael/tabchat/internal/upload"
)

// Client talks to the analytics service. Every call carries the session
// cookie set by StartSession. Calls have no timeout of their own.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	endpoints   Endpoints
	uploadField string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. A cookie jar is added
// when hc has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.http = &copied
	}
}

// WithEndpoints overrides the service paths.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

// WithUploadField overrides the multipart field name used for uploads.
func WithUploadField(field string) Option {
	return func(c *Client) { c.uploadField = field }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:     u,
		http:        &http.Client{},
		endpoints:   DefaultEndpoints(),
		uploadField: upload.DefaultField,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// StartSession opens a session and returns the service's information text.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	var resp InformationResponse
	if err := c.do(ctx, http.MethodGet, c.endpoints.StartSession, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.InformationMessage, nil
}

// Upload sends all files in a single multipart request.
func (c *Client) Upload(ctx context.Context, files []upload.Candidate) (string, error) {
	body, contentType, err := upload.Encode(c.uploadField, files)
	if err != nil {
		return "", &failure.ClientError{Err: err}
	}

	var resp InformationResponse
	if err := c.do(ctx, http.MethodPost, c.endpoints.UploadCSV, body, contentType, &resp); err != nil {
		return "", err
	}
	return resp.InformationMessage, nil
}

// Query submits a natural-language question and returns the answer.
func (c *Client) Query(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(QueryRequest{HumanMessage: text})
	if err != nil {
		return "", &failure.ClientError{Err: fmt.Errorf("encode query: %w", err)}
	}

	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, c.endpoints.Query, bytes.NewReader(payload), "application/json", &resp); err != nil {
		return "", err
	}
	return resp.AIMessage, nil
}

// EndSession closes the session.
func (c *Client) EndSession(ctx context.Context) (string, error) {
	var resp InformationResponse
	if err := c.do(ctx, http.MethodDelete, c.endpoints.EndSession, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.InformationMessage, nil
}

// do performs one request and maps every way it can fail onto the failure
// union.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	target := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return &failure.ClientError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Debug("analytics request failed", "method", method, "path", path, "error", err)
		return &failure.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &failure.NetworkError{Err: fmt.Errorf("read response: %w", err)}
	}

	slog.Debug("analytics request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &failure.ServerError{
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
			Body:       failure.ParseBody(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &failure.ClientError{Err: fmt.Errorf("decode %s response: %w", path, err)}
	}
	return nil
}

// statusText extracts the reason phrase, e.g. "Not Found" from "404 Not Found".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
