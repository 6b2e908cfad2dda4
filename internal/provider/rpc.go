package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// 共享 HTTP 客户端（带超时配置）
var httpClient = &http.Client{
	Timeout: 15 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// SetHTTPTimeout 设置外部请求超时
func SetHTTPTimeout(seconds int) {
	if seconds > 0 {
		httpClient.Timeout = time.Duration(seconds) * time.Second
	}
}

// Client 浏览器API客户端, 支持重试和指数退避
type Client struct {
	base       string
	headers    map[string]string
	maxRetries int
	retryDelay time.Duration
}

// NewClient 创建客户端
func NewClient(base string, headers map[string]string) *Client {
	return &Client{
		base:       base,
		headers:    headers,
		maxRetries: 2,
		retryDelay: 500 * time.Millisecond,
	}
}

// Get 执行 GET 请求, 5xx或传输错误时重试
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// PostJSON 执行 JSON POST 请求
func (c *Client) PostJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, "application/json")
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	var lastErr error

	for retry := 0; retry <= c.maxRetries; retry++ {
		if retry > 0 {
			// 指数退避
			delay := c.retryDelay * time.Duration(1<<uint(retry-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			log.Printf("RPC %s %s retrying (attempt %d/%d): %v", method, path, retry+1, c.maxRetries+1, lastErr)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for k, v := range c.headers {
			if v != "" {
				req.Header.Set(k, v)
			}
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("all attempts failed: %w", lastErr)
}
