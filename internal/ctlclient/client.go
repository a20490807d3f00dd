// Package ctlclient talks to the coordinator's control API.
package ctlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inboxtriage/internal/api"
	"inboxtriage/internal/model"
	"inboxtriage/internal/repository"
	"inboxtriage/pkg/otel"
	"inboxtriage/pkg/trace"
)

// APIError 控制接口返回的非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("control api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("control api returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient 替换底层 http.Client（测试用）
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// CategoryInfo GET /categories 中的一项
type CategoryInfo struct {
	Category        model.Category `json:"category"`
	Title           string         `json:"title"`
	BackgroundColor model.Color    `json:"background_color"`
	ForegroundColor model.Color    `json:"foreground_color"`
}

type Vocabulary struct {
	Version     int            `json:"version"`
	Categories  []CategoryInfo `json:"categories"`
	GuardTitles []string       `json:"guard_titles"`
}

type CategoryBreakdown struct {
	Since  string                     `json:"since"`
	Counts []repository.CategoryCount `json:"counts"`
}

type ResetResult struct {
	Reset bool        `json:"reset"`
	Stats model.Stats `json:"stats"`
}

func (c *Client) State(ctx context.Context) (api.StateResponse, error) {
	var out api.StateResponse
	err := c.do(ctx, http.MethodGet, "/state", nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var out model.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &out)
	return out, err
}

func (c *Client) Categories(ctx context.Context) (Vocabulary, error) {
	var out Vocabulary
	err := c.do(ctx, http.MethodGet, "/categories", nil, &out)
	return out, err
}

// CategoryCounts since 为 0 时使用服务端默认窗口
func (c *Client) CategoryCounts(ctx context.Context, since time.Duration) (CategoryBreakdown, error) {
	path := "/stats/categories"
	if since > 0 {
		path += "?since=" + url.QueryEscape(since.String())
	}
	var out CategoryBreakdown
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Enable(ctx context.Context) (api.StateResponse, error) {
	var out api.StateResponse
	err := c.do(ctx, http.MethodPost, "/enable", nil, &out)
	return out, err
}

func (c *Client) Disable(ctx context.Context) (api.StateResponse, error) {
	var out api.StateResponse
	err := c.do(ctx, http.MethodPost, "/disable", nil, &out)
	return out, err
}

// SetBackend url 为空时恢复默认地址
func (c *Client) SetBackend(ctx context.Context, backendURL string) (api.StateResponse, error) {
	var out api.StateResponse
	err := c.do(ctx, http.MethodPut, "/backend", map[string]string{"url": backendURL}, &out)
	return out, err
}

func (c *Client) ResetCheck(ctx context.Context) (ResetResult, error) {
	var out ResetResult
	err := c.do(ctx, http.MethodPost, "/stats/reset-check", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	ctx = trace.Ensure(ctx)
	req.Header.Set(trace.HeaderName(), trace.FromContext(ctx))
	otel.InjectHTTP(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
