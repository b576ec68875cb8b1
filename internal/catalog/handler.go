package catalog

import (
	"encoding/json"
	"net/http"
	"time"

	"chaos-shop/internal/fault"
	"chaos-shop/internal/logger"
)

// Handler はバックエンドAPIのHTTPハンドラ
// 全エンドポイントがリクエスト処理前に障害状態を適用する
type Handler struct {
	serviceID string
	store     *Store
	faults    *fault.State
}

// NewHandler は新しいバックエンドハンドラを作成する
func NewHandler(serviceID string, store *Store, faults *fault.State) *Handler {
	return &Handler{
		serviceID: serviceID,
		store:     store,
		faults:    faults,
	}
}

// Faults は障害状態を返す
func (h *Handler) Faults() *fault.State {
	return h.faults
}

// Mux はルーティング済みのServeMuxを返す
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/products", h.handleProducts)
	mux.HandleFunc("/admin/fault", h.handleFault)
	return mux
}

// HealthResponse はヘルスチェックレスポンス
type HealthResponse struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	DelayConfigured string `json:"delay_configured"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.faults.Suspended() {
		h.writeError(w, http.StatusServiceUnavailable, "service suspended")
		return
	}

	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "healthy",
		Service:         h.serviceID,
		DelayConfigured: h.faults.Delay().String(),
	})
}

// ProductsResponse は商品一覧レスポンス
type ProductsResponse struct {
	Status   string    `json:"status"`
	Products []Product `json:"products"`
	Source   string    `json:"source"`
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.faults.Suspended() {
		h.writeError(w, http.StatusServiceUnavailable, "service suspended")
		return
	}

	// 注入された遅延を適用する
	if d := h.faults.Delay(); d > 0 {
		logger.Info(h.serviceID, "Sleeping for %v (chaos injection)", d)
	}
	h.faults.ApplyDelay()

	if h.faults.ShouldFail() {
		h.writeError(w, http.StatusInternalServerError, "injected failure")
		return
	}

	h.writeJSON(w, http.StatusOK, ProductsResponse{
		Status:   "success",
		Products: h.store.List(),
		Source:   "backend-database",
	})
}

// FaultRequest は障害注入リクエスト
// 指定されたフィールドだけが適用される
type FaultRequest struct {
	Delay     string   `json:"delay,omitempty"`
	Suspend   *bool    `json:"suspend,omitempty"`
	ErrorRate *float64 `json:"error_rate,omitempty"`
}

// FaultStatus は現在の障害状態レスポンス
type FaultStatus struct {
	Delay     string  `json:"delay"`
	Suspended bool    `json:"suspended"`
	ErrorRate float64 `json:"error_rate"`
	Active    bool    `json:"active"`
}

// handleFault は障害の注入・参照・解除を行う管理エンドポイント
// 一時停止中でも必ず応答する（解除手段を塞がないため）
func (h *Handler) handleFault(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, h.faultStatus())

	case http.MethodPost:
		var req FaultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.Delay != "" {
			d, err := time.ParseDuration(req.Delay)
			if err != nil || d < 0 {
				h.writeError(w, http.StatusBadRequest, "invalid delay")
				return
			}
			h.faults.SetDelay(d)
			logger.Warn(h.serviceID, "Fault injected: delay=%v", d)
		}
		if req.Suspend != nil {
			if *req.Suspend {
				h.faults.Suspend()
				logger.Warn(h.serviceID, "Fault injected: suspended")
			} else {
				h.faults.Resume()
				logger.Info(h.serviceID, "Fault cleared: resumed")
			}
		}
		if req.ErrorRate != nil {
			h.faults.SetErrorRate(*req.ErrorRate)
			logger.Warn(h.serviceID, "Fault injected: error_rate=%.2f", *req.ErrorRate)
		}

		h.writeJSON(w, http.StatusOK, h.faultStatus())

	case http.MethodDelete:
		h.faults.Clear()
		logger.Info(h.serviceID, "All faults cleared")
		h.writeJSON(w, http.StatusOK, h.faultStatus())

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) faultStatus() FaultStatus {
	return FaultStatus{
		Delay:     h.faults.Delay().String(),
		Suspended: h.faults.Suspended(),
		ErrorRate: h.faults.ErrorRate(),
		Active:    h.faults.Active(),
	}
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, code int, msg string) {
	h.writeJSON(w, code, ErrorResponse{Status: "error", Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error(h.serviceID, "Failed to encode JSON: %v", err)
	}
}
