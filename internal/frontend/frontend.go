package frontend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"chaos-shop/internal/breaker"
	"chaos-shop/internal/cache"
	"chaos-shop/internal/catalog"
	"chaos-shop/internal/events"
	"chaos-shop/internal/logger"
	"chaos-shop/internal/metrics"
)

// Variant はフロントエンドの実装バリアントを表す
type Variant string

const (
	// VariantNaive は耐障害性パターンなしの実装（v1）
	VariantNaive Variant = "v1"
	// VariantResilient はサーキットブレーカー＋キャッシュ＋フォールバック付きの実装（v2）
	VariantResilient Variant = "v2"
)

// ParseVariant は文字列からバリアントをパースする
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "v1", "naive", "bad":
		return VariantNaive, nil
	case "v2", "resilient", "good":
		return VariantResilient, nil
	default:
		return "", fmt.Errorf("unknown frontend variant: %s", s)
	}
}

// Config はフロントエンドの設定
type Config struct {
	Variant    Variant
	BackendURL string
	Timeout    time.Duration  // バックエンド呼び出しのタイムアウト（0でDefaultTimeout）
	CacheTTL   time.Duration  // v2のキャッシュTTL（0でcache.DefaultTTL）
	Breaker    breaker.Config // v2のサーキットブレーカー設定
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig(backendURL string) Config {
	return Config{
		Variant:    VariantResilient,
		BackendURL: backendURL,
		Timeout:    DefaultTimeout,
		CacheTTL:   cache.DefaultTTL,
		Breaker:    breaker.DefaultConfig(),
	}
}

// Handler はフロントエンドのHTTPハンドラ
// バリアントに応じてバックエンド障害時の振る舞いが変わる
type Handler struct {
	serviceID string
	config    Config
	client    *BackendClient
	brk       *breaker.Breaker
	cache     *cache.Cache
	metrics   *metrics.Metrics
	eventBus  *events.Bus
}

// NewHandler は新しいフロントエンドハンドラを作成する
// mがnilの場合は専用のメトリクスを作成する
func NewHandler(serviceID string, config Config, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}

	h := &Handler{
		serviceID: serviceID,
		config:    config,
		client:    NewBackendClient(config.BackendURL, config.Timeout),
		metrics:   m,
	}

	if config.Variant == VariantResilient {
		h.brk = breaker.New(config.Breaker)
		h.cache = cache.New(config.CacheTTL)
		h.brk.OnStateChange(func(from, to breaker.State) {
			logger.Warn(serviceID, "Circuit breaker %s -> %s", from, to)
			if h.eventBus != nil {
				h.eventBus.Publish(events.NewBreakerStateChangeEvent(serviceID, to.String()))
			}
		})
	}

	return h
}

// SetEventBus はイベントバスを設定する
func (h *Handler) SetEventBus(bus *events.Bus) {
	h.eventBus = bus
}

// Metrics はメトリクスを返す
func (h *Handler) Metrics() *metrics.Metrics {
	return h.metrics
}

// Breaker はサーキットブレーカーを返す（v1ではnil）
func (h *Handler) Breaker() *breaker.Breaker {
	return h.brk
}

// Mux はルーティング済みのServeMuxを返す
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleIndex)
	mux.HandleFunc("/health", h.handleHealth)
	if h.config.Variant == VariantResilient {
		mux.HandleFunc("/circuit-breaker/status", h.handleBreakerStatus)
	}
	return mux
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch h.config.Variant {
	case VariantNaive:
		h.serveNaive(w, r)
	default:
		h.serveResilient(w, r)
	}
}

// serveNaive はv1の商品ページを返す
// バックエンドが遅い・落ちている場合はそのままエラーページになる
func (h *Handler) serveNaive(w http.ResponseWriter, r *http.Request) {
	products, err := h.client.FetchProducts(r.Context())
	if err != nil {
		logger.Error(h.serviceID, "Backend call failed: %v", err)
		h.renderPage(w, http.StatusServiceUnavailable, pageData{
			Version: "Frontend Version 1 (Naive - No Resilience)",
			Error:   fmt.Sprintf("Backend unavailable: %v", err),
		})
		return
	}

	h.metrics.RecordSource(metrics.SourceLive)
	h.renderPage(w, http.StatusOK, pageData{
		Version: "Frontend Version 1 (Naive - No Resilience)",
		Badge:   "live",
		Source:  "LIVE DATA",
		Message: "Successfully loaded products from backend!",
		Items:   toPageItems(products),
	})
}

// serveResilient はv2の商品ページを返す
// バックエンド障害時はキャッシュ、次いで静的フォールバックに切り替える
func (h *Handler) serveResilient(w http.ResponseWriter, r *http.Request) {
	var products []catalog.Product

	err := h.brk.Call(func() error {
		fetched, fetchErr := h.client.FetchProducts(r.Context())
		if fetchErr != nil {
			return fetchErr
		}
		products = fetched
		h.cache.Put(fetched)
		return nil
	})

	if err == nil {
		h.metrics.RecordSource(metrics.SourceLive)
		h.renderPage(w, http.StatusOK, pageData{
			Version: "Frontend Version 2 (Resilient - Circuit Breaker & Fallback)",
			Badge:   "live",
			Source:  "LIVE DATA",
			Message: "Backend is healthy and responding!",
			Items:   toPageItems(products),
		})
		return
	}

	if !errors.Is(err, breaker.ErrOpen) {
		logger.Warn(h.serviceID, "Backend call failed: %v", err)
	}

	// キャッシュを試す
	if cached, ok := h.cache.Get(); ok {
		h.metrics.RecordSource(metrics.SourceCache)
		h.renderPage(w, http.StatusOK, pageData{
			Version: "Frontend Version 2 (Resilient - Circuit Breaker & Fallback)",
			Badge:   "cached",
			Source:  "CACHED DATA",
			Message: fmt.Sprintf("Backend is slow or unavailable. Showing cached data (circuit breaker: %s).", h.brk.State()),
			Items:   toPageItems(cached),
		})
		return
	}

	// 静的フォールバック
	h.metrics.RecordSource(metrics.SourceFallback)
	h.renderPage(w, http.StatusOK, pageData{
		Version: "Frontend Version 2 (Resilient - Circuit Breaker & Fallback)",
		Badge:   "fallback",
		Source:  "FALLBACK DATA",
		Message: fmt.Sprintf("Backend is temporarily unavailable. Showing default catalog (circuit breaker: %s).", h.brk.State()),
		Items:   toPageItems(catalog.FallbackProducts()),
	})
}

// HealthResponse はヘルスチェックレスポンス
type HealthResponse struct {
	Status                 string `json:"status"`
	Service                string `json:"service"`
	CircuitBreakerState    string `json:"circuit_breaker_state,omitempty"`
	CircuitBreakerFailures int    `json:"circuit_breaker_failures,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:  "healthy",
		Service: h.serviceID,
	}
	if h.brk != nil {
		resp.CircuitBreakerState = h.brk.State().String()
		resp.CircuitBreakerFailures = h.brk.FailureCount()
	}
	h.writeJSON(w, resp)
}

// BreakerStatusResponse はサーキットブレーカー状態レスポンス
type BreakerStatusResponse struct {
	State        string `json:"state"`
	FailureCount int    `json:"failure_count"`
	LastFailure  string `json:"last_failure,omitempty"`
}

func (h *Handler) handleBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := BreakerStatusResponse{
		State:        h.brk.State().String(),
		FailureCount: h.brk.FailureCount(),
	}
	if last := h.brk.LastFailure(); !last.IsZero() {
		resp.LastFailure = last.Format(time.RFC3339)
	}
	h.writeJSON(w, resp)
}

func (h *Handler) renderPage(w http.ResponseWriter, code int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := pageTemplate.Execute(w, data); err != nil {
		logger.Error(h.serviceID, "Failed to render page: %v", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error(h.serviceID, "Failed to encode JSON: %v", err)
	}
}

func toPageItems(products []catalog.Product) []pageItem {
	items := make([]pageItem, 0, len(products))
	for _, p := range products {
		items = append(items, pageItem{Name: p.Name, Price: p.Price})
	}
	return items
}
