package recovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chaos-shop/internal/deployment"
	"chaos-shop/internal/events"
	"chaos-shop/internal/logger"
	"chaos-shop/internal/service"
)

// Config はRecoveryManagerの設定
type Config struct {
	HealthCheckInterval time.Duration // ヘルスチェック間隔
	RecoveryDelay       time.Duration // 復旧までの待機時間
	MaxRetries          int           // 最大リトライ回数（0で無制限）
	AutoRestart         bool          // 停止サービスの自動再起動
	AutoResume          bool          // 一時停止サービスの自動再開
	ClearDelay          bool          // 注入された遅延のクリア
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		HealthCheckInterval: 1 * time.Second,
		RecoveryDelay:       2 * time.Second,
		MaxRetries:          3,
		AutoRestart:         true,
		AutoResume:          true,
		ClearDelay:          true,
	}
}

// ServiceState はサービスの状態追跡
type ServiceState struct {
	LastSeen    time.Time
	FailedAt    time.Time
	RetryCount  int
	IsRecovered bool
}

// Stats は復旧統計
type Stats struct {
	TotalRecoveries   uint64
	SuccessRecoveries uint64
	FailedRecoveries  uint64
	CurrentlyFailed   int
}

// Manager は障害からの復旧を管理する
type Manager struct {
	config     Config
	deployment *deployment.Deployment
	eventBus   *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu            sync.RWMutex
	serviceStates map[string]*ServiceState
	stats         Stats
}

// New は新しいRecoveryManagerを作成する
func New(d *deployment.Deployment, config Config) *Manager {
	return &Manager{
		config:        config,
		deployment:    d,
		serviceStates: make(map[string]*ServiceState),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Manager) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// publishEvent はイベントを発行する
func (m *Manager) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start は復旧マネージャーを開始する
func (m *Manager) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.healthCheckLoop()

	logger.Info("", "RecoveryManager started (interval: %v, delay: %v)",
		m.config.HealthCheckInterval, m.config.RecoveryDelay)
}

// Stop は復旧マネージャーを停止する
func (m *Manager) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()

	m.mu.RLock()
	stats := m.stats
	m.mu.RUnlock()

	logger.Info("", "RecoveryManager stopped (recoveries: %d success, %d failed)",
		stats.SuccessRecoveries, stats.FailedRecoveries)
}

// healthCheckLoop は定期的にヘルスチェックを実行する
func (m *Manager) healthCheckLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAndRecover()
		}
	}
}

// checkAndRecover は全サービスをチェックし、必要に応じて復旧する
func (m *Manager) checkAndRecover() {
	services := m.deployment.Services()
	now := time.Now()

	for _, svc := range services {
		m.checkService(svc, now)
	}
}

// checkService は個々のサービスをチェックする
func (m *Manager) checkService(svc *service.Service, now time.Time) {
	serviceID := svc.ID()
	status := svc.Status()

	m.mu.Lock()
	state, exists := m.serviceStates[serviceID]
	if !exists {
		state = &ServiceState{LastSeen: now}
		m.serviceStates[serviceID] = state
	}
	m.mu.Unlock()

	switch status {
	case service.StatusRunning:
		m.handleRunningService(svc, state, now)
	case service.StatusStopped:
		m.handleStoppedService(svc, state, now)
	case service.StatusSuspended:
		m.handleSuspendedService(svc, state, now)
	}
}

// handleRunningService は稼働中のサービスを処理する
func (m *Manager) handleRunningService(svc *service.Service, state *ServiceState, now time.Time) {
	m.mu.Lock()

	// 注入された遅延のクリア
	clearedDelay := false
	if m.config.ClearDelay && svc.Delay() > 0 {
		svc.SetDelay(0)
		clearedDelay = true
		logger.Info("", "RecoveryManager: cleared delay on service %s", svc.ID())
	}

	// 復旧完了を記録
	shouldPublish := false
	if !state.IsRecovered && state.RetryCount > 0 {
		state.IsRecovered = true
		m.stats.SuccessRecoveries++
		shouldPublish = true
		logger.Info("", "RecoveryManager: service %s recovered successfully", svc.ID())
	}

	// マネージャーの再起動を経ずに外部から復旧された場合も
	// 障害中の記録を消す。残しておくと次の停止検出が古い
	// FailedAtを引き継ぎ、待機なしで即リトライしてしまう
	if !state.FailedAt.IsZero() {
		state.FailedAt = time.Time{}
		if m.stats.CurrentlyFailed > 0 {
			m.stats.CurrentlyFailed--
		}
		logger.Info("", "RecoveryManager: service %s restored externally", svc.ID())
	}

	state.LastSeen = now
	state.RetryCount = 0
	state.IsRecovered = false
	m.mu.Unlock()

	if clearedDelay {
		m.publishEvent(events.NewFaultClearedEvent(svc.ID(), events.FaultDelay))
	}
	if shouldPublish {
		m.publishEvent(events.NewRecoverySuccessEvent(svc.ID()))
	}
}

// handleStoppedService は停止したサービスを処理する
func (m *Manager) handleStoppedService(svc *service.Service, state *ServiceState, now time.Time) {
	if !m.config.AutoRestart {
		return
	}

	m.mu.Lock()

	// 初回検出
	if state.FailedAt.IsZero() {
		state.FailedAt = now
		m.stats.CurrentlyFailed++
		m.mu.Unlock()
		logger.Warn("", "RecoveryManager: detected stopped service %s", svc.ID())
		return
	}

	// 復旧待機時間チェック
	if now.Sub(state.FailedAt) < m.config.RecoveryDelay {
		m.mu.Unlock()
		return
	}

	// リトライ上限チェック
	if m.config.MaxRetries > 0 && state.RetryCount >= m.config.MaxRetries {
		m.mu.Unlock()
		return
	}

	state.RetryCount++
	state.FailedAt = now
	m.stats.TotalRecoveries++
	retryCount := state.RetryCount
	m.mu.Unlock()

	m.publishEvent(events.NewRecoveryStartEvent(svc.ID(), retryCount))

	// 再起動を試みる
	if err := svc.Start(m.ctx); err != nil {
		m.mu.Lock()
		m.stats.FailedRecoveries++
		m.mu.Unlock()
		logger.Error("", "RecoveryManager: failed to restart service %s: %v", svc.ID(), err)
		m.publishEvent(events.NewRecoveryFailedEvent(svc.ID(), err))
		return
	}

	m.mu.Lock()
	m.stats.CurrentlyFailed--
	state.FailedAt = time.Time{}
	m.mu.Unlock()

	logger.Info("", "RecoveryManager: restarted service %s (attempt %d)", svc.ID(), retryCount)
}

// handleSuspendedService は一時停止中のサービスを処理する
func (m *Manager) handleSuspendedService(svc *service.Service, state *ServiceState, now time.Time) {
	if !m.config.AutoResume {
		return
	}

	m.mu.Lock()

	// 初回検出
	if state.FailedAt.IsZero() {
		state.FailedAt = now
		m.mu.Unlock()
		logger.Warn("", "RecoveryManager: detected suspended service %s", svc.ID())
		return
	}

	// 復旧待機時間チェック
	if now.Sub(state.FailedAt) < m.config.RecoveryDelay {
		m.mu.Unlock()
		return
	}

	state.RetryCount++
	state.FailedAt = time.Time{}
	m.stats.TotalRecoveries++
	retryCount := state.RetryCount
	m.mu.Unlock()

	m.publishEvent(events.NewRecoveryStartEvent(svc.ID(), retryCount))

	// 再開を試みる
	if err := svc.Resume(); err != nil {
		m.mu.Lock()
		m.stats.FailedRecoveries++
		m.mu.Unlock()
		logger.Error("", "RecoveryManager: failed to resume service %s: %v", svc.ID(), err)
		m.publishEvent(events.NewRecoveryFailedEvent(svc.ID(), err))
		return
	}

	m.mu.Lock()
	m.stats.SuccessRecoveries++
	m.mu.Unlock()

	logger.Info("", "RecoveryManager: resumed service %s", svc.ID())
	m.publishEvent(events.NewRecoverySuccessEvent(svc.ID()))
}

// IsRunning は実行中かどうかを返す
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// Stats は復旧統計を返す
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// ResetStats は統計をリセットする
func (m *Manager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
}
