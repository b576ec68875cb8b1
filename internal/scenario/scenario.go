package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chaos-shop/internal/catalog"
	"chaos-shop/internal/chaos"
	"chaos-shop/internal/deployment"
	"chaos-shop/internal/events"
	"chaos-shop/internal/fault"
	"chaos-shop/internal/frontend"
	"chaos-shop/internal/loadgen"
	"chaos-shop/internal/logger"
	"chaos-shop/internal/metrics"
	"chaos-shop/internal/recovery"
	"chaos-shop/internal/service"
)

// デプロイメント内の固定サービスID
const (
	BackendID  = "backend"
	FrontendID = "frontend"
)

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	Duration    time.Duration // 実行時間

	FrontendVariant frontend.Variant // v1（naive）またはv2（resilient）
	BackendDelay    time.Duration    // バックエンドの初期遅延
	BackendAddr     string           // バックエンドのリッスンアドレス（空で動的ポート）
	FrontendAddr    string           // フロントエンドのリッスンアドレス（空で動的ポート）

	// 負荷設定
	LoadWorkers  int           // 同時ワーカー数
	LoadInterval time.Duration // リクエスト送信間隔

	// カオス設定
	EnableChaos    bool               // カオス注入を有効化
	ChaosInterval  time.Duration      // 攻撃間隔
	ChaosTargets   int                // 同時攻撃対象数
	ChaosTargetIDs []string           // 攻撃対象のサービスID（空で全サービス）
	AttackTypes    []chaos.AttackType // 有効な攻撃タイプ

	// 復旧設定
	EnableRecovery bool          // 復旧を有効化
	RecoveryDelay  time.Duration // 復旧までの待機時間
	MaxRetries     int           // 最大リトライ回数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		Description:     "Default scenario",
		Duration:        10 * time.Second,
		FrontendVariant: frontend.VariantResilient,
		LoadWorkers:     4,
		LoadInterval:    100 * time.Millisecond,
		EnableChaos:     true,
		ChaosInterval:   2 * time.Second,
		ChaosTargets:    1,
		ChaosTargetIDs:  []string{BackendID},
		AttackTypes:     []chaos.AttackType{chaos.AttackKill, chaos.AttackSuspend, chaos.AttackDelay},
		EnableRecovery:  true,
		RecoveryDelay:   1 * time.Second,
		MaxRetries:      3,
	}
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName    string
	FrontendVariant string
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration

	// トラフィックメトリクス
	TotalRequests   uint64
	SuccessRequests uint64
	FailedRequests  uint64
	ErrorRate       float64
	AvgLatency      time.Duration
	P99Latency      time.Duration

	// レスポンスソース（フロントエンドが返したデータの出どころ）
	LiveResponses     uint64
	CacheResponses    uint64
	FallbackResponses uint64

	// カオス統計
	TotalAttacks uint64

	// 復旧統計
	TotalRecoveries   uint64
	SuccessRecoveries uint64
	FailedRecoveries  uint64

	// サービス状態
	FinalServiceStatus map[string]string
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus

	deployment *deployment.Deployment
	frontend   *frontend.Handler
	generator  *loadgen.Generator
	monkey     *chaos.Monkey
	recovery   *recovery.Manager
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	running bool
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// Run はシナリオを実行する
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	logger.Info("", "=== Scenario '%s' started ===", e.config.Name)
	logger.Info("", "Description: %s", e.config.Description)

	result := &Result{
		ScenarioName:    e.config.Name,
		FrontendVariant: string(e.config.FrontendVariant),
		StartTime:       time.Now(),
	}

	// セットアップ
	if err := e.setup(ctx); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	defer e.teardown()

	// シナリオ実行
	scenarioCtx, cancel := context.WithTimeout(ctx, e.config.Duration)
	defer cancel()

	e.runScenario(scenarioCtx)

	// 結果収集
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(result)

	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)

	return result, nil
}

// setup はシナリオ実行前のセットアップ
// フロントエンドはバックエンドのURLを必要とするため、バックエンドを先に起動する
func (e *Engine) setup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.deployment = deployment.New()
	e.metrics = metrics.New()

	// バックエンド
	backendAddr := e.config.BackendAddr
	if backendAddr == "" {
		backendAddr = "127.0.0.1:0"
	}
	backendFaults := fault.NewState()
	if e.config.BackendDelay > 0 {
		backendFaults.SetDelay(e.config.BackendDelay)
	}
	backendHandler := catalog.NewHandler(BackendID, catalog.NewStore(), backendFaults)
	backend := service.New(BackendID, backendAddr, backendHandler.Mux(), backendFaults)
	if err := e.deployment.Add(backend); err != nil {
		return err
	}
	if err := backend.Start(ctx); err != nil {
		return fmt.Errorf("failed to start backend: %w", err)
	}

	// フロントエンド
	frontendAddr := e.config.FrontendAddr
	if frontendAddr == "" {
		frontendAddr = "127.0.0.1:0"
	}
	feConfig := frontend.DefaultConfig(backend.BaseURL())
	feConfig.Variant = e.config.FrontendVariant
	e.frontend = frontend.NewHandler(FrontendID, feConfig, e.metrics)
	if e.eventBus != nil {
		e.frontend.SetEventBus(e.eventBus)
	}

	feFaults := fault.NewState()
	fe := service.New(FrontendID, frontendAddr,
		service.FaultMiddleware(feFaults, e.frontend.Mux()), feFaults)
	if err := e.deployment.Add(fe); err != nil {
		return err
	}
	if err := fe.Start(ctx); err != nil {
		return fmt.Errorf("failed to start frontend: %w", err)
	}

	// 負荷生成
	loadConfig := loadgen.DefaultConfig()
	loadConfig.TargetURL = fe.BaseURL() + "/"
	loadConfig.Workers = e.config.LoadWorkers
	if e.config.LoadInterval > 0 {
		loadConfig.Interval = e.config.LoadInterval
	}
	e.generator = loadgen.New(loadConfig, e.metrics)

	// カオスモンキー
	if e.config.EnableChaos {
		chaosConfig := chaos.DefaultConfig()
		chaosConfig.Interval = e.config.ChaosInterval
		chaosConfig.TargetCount = e.config.ChaosTargets
		chaosConfig.TargetIDs = e.config.ChaosTargetIDs
		chaosConfig.AttackTypes = e.config.AttackTypes
		e.monkey = chaos.New(e.deployment, chaosConfig)
		if e.eventBus != nil {
			e.monkey.SetEventBus(e.eventBus)
		}
	}

	// 復旧マネージャー
	if e.config.EnableRecovery {
		recoveryConfig := recovery.DefaultConfig()
		recoveryConfig.RecoveryDelay = e.config.RecoveryDelay
		recoveryConfig.MaxRetries = e.config.MaxRetries
		e.recovery = recovery.New(e.deployment, recoveryConfig)
		if e.eventBus != nil {
			e.recovery.SetEventBus(e.eventBus)
		}
	}

	return nil
}

// teardown はシナリオ実行後のクリーンアップ
func (e *Engine) teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.generator != nil {
		e.generator.Stop()
	}
	if e.monkey != nil {
		e.monkey.Stop()
	}
	if e.recovery != nil {
		e.recovery.Stop()
	}
	if e.deployment != nil {
		_ = e.deployment.StopAll()
	}
}

// runScenario はシナリオのメイン処理
func (e *Engine) runScenario(ctx context.Context) {
	e.generator.Start(ctx)

	if e.monkey != nil {
		e.monkey.Start(ctx)
	}
	if e.recovery != nil {
		e.recovery.Start(ctx)
	}

	<-ctx.Done()

	logger.Info("", "Scenario duration completed, stopping components...")
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snapshot := e.metrics.Snapshot()
	result.TotalRequests = snapshot.TotalRequests
	result.SuccessRequests = snapshot.SuccessRequests
	result.FailedRequests = snapshot.FailedRequests
	result.ErrorRate = snapshot.ErrorRate
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	result.LiveResponses = snapshot.BySource[metrics.SourceLive]
	result.CacheResponses = snapshot.BySource[metrics.SourceCache]
	result.FallbackResponses = snapshot.BySource[metrics.SourceFallback]

	if e.monkey != nil {
		result.TotalAttacks = e.monkey.AttackCount()
	}

	if e.recovery != nil {
		stats := e.recovery.Stats()
		result.TotalRecoveries = stats.TotalRecoveries
		result.SuccessRecoveries = stats.SuccessRecoveries
		result.FailedRecoveries = stats.FailedRecoveries
	}

	result.FinalServiceStatus = make(map[string]string)
	for _, svc := range e.deployment.Services() {
		result.FinalServiceStatus[svc.ID()] = svc.Status().String()
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Frontend:       %s
  Start Time:     %s
  End Time:       %s
  Duration:       %v

TRAFFIC METRICS
---------------
  Total Requests:   %d
  Success:          %d
  Failed:           %d
  Error Rate:       %.2f%%
  Avg Latency:      %v
  P99 Latency:      %v

RESPONSE SOURCES
----------------
  Live:             %d
  Cache:            %d
  Fallback:         %d

CHAOS STATISTICS
----------------
  Total Attacks:    %d

RECOVERY STATISTICS
-------------------
  Total Recoveries:   %d
  Successful:         %d
  Failed:             %d

FINAL SERVICE STATUS
--------------------
`,
		r.ScenarioName,
		r.FrontendVariant,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.TotalRequests,
		r.SuccessRequests,
		r.FailedRequests,
		r.ErrorRate*100,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.LiveResponses,
		r.CacheResponses,
		r.FallbackResponses,
		r.TotalAttacks,
		r.TotalRecoveries,
		r.SuccessRecoveries,
		r.FailedRecoveries,
	)

	for serviceID, status := range r.FinalServiceStatus {
		report += fmt.Sprintf("  %-20s %s\n", serviceID+":", status)
	}

	report += "\n================================================================================"

	return report
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// ChaosStats はカオス統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.monkey == nil {
		return nil
	}
	stats := e.monkey.Stats()
	return &stats
}

// RecoveryStats は復旧統計を返す
func (e *Engine) RecoveryStats() *recovery.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.recovery == nil {
		return nil
	}
	stats := e.recovery.Stats()
	return &stats
}

// Metrics はトラフィックメトリクスのスナップショットを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metrics == nil {
		return nil
	}
	snapshot := e.metrics.Snapshot()
	return &snapshot
}

// Deployment はデプロイメントを返す
func (e *Engine) Deployment() *deployment.Deployment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deployment
}
