package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chaos-shop/internal/catalog"
)

// DefaultTimeout はバックエンド呼び出しのタイムアウト
// フロントエンドは1秒しか待たない
const DefaultTimeout = 1 * time.Second

const maxBodyBytes = 256 * 1024 // 256KB

// BackendClient はバックエンドAPIのHTTPクライアント
type BackendClient struct {
	baseURL string
	client  *http.Client
}

// NewBackendClient は新しいバックエンドクライアントを作成する
// timeoutが0以下の場合はDefaultTimeoutを使う
func NewBackendClient(baseURL string, timeout time.Duration) *BackendClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &BackendClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL はバックエンドのベースURLを返す
func (c *BackendClient) BaseURL() string {
	return c.baseURL
}

// FetchProducts はバックエンドから商品一覧を取得する
func (c *BackendClient) FetchProducts(ctx context.Context) ([]catalog.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/products", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var body struct {
		Status   string            `json:"status"`
		Products []catalog.Product `json:"products"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}

	return body.Products, nil
}

// CheckHealth はバックエンドのヘルスチェックを行う
func (c *BackendClient) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health returned status %d", resp.StatusCode)
	}
	return nil
}
