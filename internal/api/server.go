package api

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"chaos-shop/internal/events"
	"chaos-shop/internal/experiment"
	"chaos-shop/internal/frontend"
	"chaos-shop/internal/logger"
	"chaos-shop/internal/metrics"
	"chaos-shop/internal/scenario"
)

//go:embed static/*
var staticFiles embed.FS

const maxExperimentBytes = 1 << 20

// Server はダッシュボードAPIサーバー
type Server struct {
	addr string
	bus  *events.Bus

	mu             sync.RWMutex
	running        bool
	engine         *scenario.Engine
	config         scenario.Config
	cancelScenario context.CancelFunc
	wsClients      map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
// bus が nil の場合は専用のイベントバスを作成する
func NewServer(addr string, bus *events.Bus) *Server {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Server{
		addr:      addr,
		bus:       bus,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Start はサーバーを開始する
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.routes()
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	// バックグラウンドでイベントとステータスを配信
	go s.eventLoop(ctx)
	go s.statusLoop(ctx)

	logger.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// routes はルーティング済みのハンドラを返す
func (s *Server) routes() (http.Handler, error) {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/services", s.handleServices)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/scenario/start", s.handleScenarioStart)
	mux.HandleFunc("/api/scenario/stop", s.handleScenarioStop)
	mux.HandleFunc("/api/experiment/run", s.handleExperimentRun)
	mux.HandleFunc("/api/presets", s.handlePresets)

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	// Static files
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to get static files: %w", err)
	}
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	return mux, nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running           bool   `json:"running"`
	ScenarioName      string `json:"scenario_name,omitempty"`
	FrontendVariant   string `json:"frontend_variant,omitempty"`
	ServiceCount      int    `json:"service_count"`
	RunningServices   int    `json:"running_services"`
	StoppedServices   int    `json:"stopped_services"`
	SuspendedServices int    `json:"suspended_services"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		Running: s.running,
	}

	if s.config.Name != "" {
		resp.ScenarioName = s.config.Name
		resp.FrontendVariant = string(s.config.FrontendVariant)
	}

	if s.engine != nil {
		if d := s.engine.Deployment(); d != nil {
			resp.ServiceCount = d.Size()
			resp.RunningServices = d.RunningCount()
			resp.StoppedServices = d.StoppedCount()
			resp.SuspendedServices = d.SuspendedCount()
		}
	}

	return resp
}

// ServiceInfo はサービス情報
type ServiceInfo struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	BaseURL string `json:"base_url,omitempty"`
	Delay   string `json:"delay,omitempty"`
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	services := []ServiceInfo{}
	if engine != nil {
		if d := engine.Deployment(); d != nil {
			for _, svc := range d.Services() {
				info := ServiceInfo{
					ID:      svc.ID(),
					Status:  svc.Status().String(),
					BaseURL: svc.BaseURL(),
				}
				if delay := svc.Delay(); delay > 0 {
					info.Delay = delay.String()
				}
				services = append(services, info)
			}
		}
	}

	s.writeJSON(w, services)
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	TotalRequests     uint64  `json:"total_requests"`
	SuccessRequests   uint64  `json:"success_requests"`
	FailedRequests    uint64  `json:"failed_requests"`
	RPS               float64 `json:"rps"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	P99LatencyMs      float64 `json:"p99_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	LiveResponses     uint64  `json:"live_responses"`
	CacheResponses    uint64  `json:"cache_responses"`
	FallbackResponses uint64  `json:"fallback_responses"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	resp := MetricsResponse{}
	if engine != nil {
		if snap := engine.Metrics(); snap != nil {
			resp = toMetricsResponse(*snap)
		}
	}

	s.writeJSON(w, resp)
}

func toMetricsResponse(snap metrics.Snapshot) MetricsResponse {
	return MetricsResponse{
		TotalRequests:     snap.TotalRequests,
		SuccessRequests:   snap.SuccessRequests,
		FailedRequests:    snap.FailedRequests,
		RPS:               snap.RPS,
		AvgLatencyMs:      float64(snap.AverageLatency) / float64(time.Millisecond),
		P99LatencyMs:      float64(snap.P99Latency) / float64(time.Millisecond),
		ErrorRate:         snap.ErrorRate,
		LiveResponses:     snap.BySource[metrics.SourceLive],
		CacheResponses:    snap.BySource[metrics.SourceCache],
		FallbackResponses: snap.BySource[metrics.SourceFallback],
	}
}

// ScenarioRequest はシナリオ開始リクエスト
type ScenarioRequest struct {
	Preset   string `json:"preset"`
	Duration string `json:"duration,omitempty"`
	Frontend string `json:"frontend,omitempty"`
	Workers  int    `json:"workers,omitempty"`
}

func (s *Server) handleScenarioStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// プリセット取得
	config, ok := scenario.GetPreset(req.Preset)
	if !ok {
		config = scenario.QuickScenario()
	}

	// オーバーライド
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, "Invalid duration", http.StatusBadRequest)
			return
		}
		config.Duration = d
	}
	if req.Frontend != "" {
		variant, err := frontend.ParseVariant(req.Frontend)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		config.FrontendVariant = variant
	}
	if req.Workers > 0 {
		config.LoadWorkers = req.Workers
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Scenario already running", http.StatusConflict)
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.config = config
	s.engine = scenario.New(config)
	s.engine.SetEventBus(s.bus)
	s.cancelScenario = cancel
	s.running = true
	engine := s.engine
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		defer cancel()
		result, err := engine.Run(runCtx)

		s.mu.Lock()
		s.running = false
		s.cancelScenario = nil
		s.mu.Unlock()

		if err != nil {
			logger.Error("", "Scenario failed: %v", err)
			s.broadcast(map[string]any{
				"type":  "scenario_failed",
				"error": err.Error(),
			})
			return
		}

		logger.Info("", "Scenario completed: %d requests", result.TotalRequests)
		s.broadcast(map[string]any{
			"type":   "scenario_complete",
			"result": result,
		})
	}()

	s.writeJSON(w, map[string]string{"status": "started", "scenario": config.Name})
}

func (s *Server) handleScenarioStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	cancel := s.cancelScenario
	running := s.running
	s.mu.Unlock()

	if !running || cancel == nil {
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}

	cancel()
	s.writeJSON(w, map[string]string{"status": "stopping"})
}

func (s *Server) handleExperimentRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxExperimentBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	exp, err := experiment.ParseJSON(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	// 実行中シナリオのデプロイメントをserviceプロバイダの対象にする
	executor := experiment.NewExecutor(nil)
	if engine != nil {
		executor = experiment.NewExecutor(engine.Deployment())
	}

	runner := experiment.NewRunner(executor)
	runner.SetEventBus(s.bus)

	journal := runner.Run(r.Context(), exp)
	s.writeJSON(w, journal)
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	presets := []PresetInfo{}
	for _, name := range scenario.ListPresets() {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{Name: name, Description: config.Description})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// 接続時に直近のイベント履歴を送る
	for _, e := range s.bus.Recent(50) {
		data, err := json.Marshal(map[string]any{"type": "event", "event": e})
		if err != nil {
			continue
		}
		if err := websocket.Message.Send(ws, string(data)); err != nil {
			return
		}
	}

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// eventLoop はイベントバスのイベントを全クライアントへ転送する
func (s *Server) eventLoop(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(map[string]any{"type": "event", "event": e})
		}
	}
}

// statusLoop は実行中、定期的にステータスとメトリクスを配信する
func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			running := s.running
			engine := s.engine
			s.mu.RUnlock()

			if !running {
				continue
			}

			payload := map[string]any{
				"type":   "status",
				"status": s.status(),
			}
			if engine != nil {
				if snap := engine.Metrics(); snap != nil {
					payload["metrics"] = toMetricsResponse(*snap)
				}
			}
			s.broadcast(payload)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
