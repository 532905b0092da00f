package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/shashin/internal/models"
)

// Client talks to a running Shashin server, so CLI commands do not need
// the index and database locks the server holds.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// Search runs GET /search and wraps the result list in a response.
func (c *Client) Search(ctx context.Context, query string) (*models.SearchResponse, error) {
	start := time.Now()
	var results []*models.PhotoResult
	if err := c.do(ctx, http.MethodGet, "/search?q="+url.QueryEscape(query), nil, nil, &results); err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:     query,
		Results:   results,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// Status runs GET /api/v1/status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UploadResult is the server's answer to an upload.
type UploadResult struct {
	Container string   `json:"container"`
	Key       string   `json:"key"`
	Size      int64    `json:"size"`
	Status    string   `json:"status"`
	Labels    []string `json:"labels,omitempty"`
}

// Upload stores body as container/key with the given custom labels.
func (c *Client) Upload(ctx context.Context, container, key, contentType string, customLabels []string, body io.Reader) (*UploadResult, error) {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	if len(customLabels) > 0 {
		header.Set("x-amz-meta-customLabels", strings.Join(customLabels, ","))
	}
	var out UploadResult
	if err := c.do(ctx, http.MethodPut, "/upload/"+url.PathEscape(container)+"/"+escapeKey(key), header, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes container/key from storage and the index.
func (c *Client) Delete(ctx context.Context, container, key string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/photos/"+url.PathEscape(container)+"/"+escapeKey(key), nil, nil, nil)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return serverError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func serverError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}
