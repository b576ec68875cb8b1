package chaos

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"chaos-shop/internal/deployment"
	"chaos-shop/internal/events"
	"chaos-shop/internal/logger"
	"chaos-shop/internal/service"
)

// AttackType は障害の種類を表す
type AttackType int

const (
	AttackKill AttackType = iota
	AttackSuspend
	AttackDelay
)

func (a AttackType) String() string {
	switch a {
	case AttackKill:
		return "kill"
	case AttackSuspend:
		return "suspend"
	case AttackDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// Config はChaosMonkeyの設定
type Config struct {
	Interval      time.Duration // 攻撃間隔
	TargetCount   int           // 同時攻撃対象数
	TargetIDs     []string      // 攻撃対象のサービスID（空で全サービス）
	AttackTypes   []AttackType  // 有効な攻撃タイプ
	DelayDuration time.Duration // Delay攻撃時の遅延時間
	SuspendTime   time.Duration // Suspend攻撃の継続時間（0で手動Resume）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		TargetCount:   1,
		AttackTypes:   []AttackType{AttackKill, AttackSuspend, AttackDelay},
		DelayDuration: 2 * time.Second,
		SuspendTime:   3 * time.Second,
	}
}

// Stats はカオス攻撃の統計情報
type Stats struct {
	TotalAttacks uint64            `json:"total_attacks"`
	ByType       map[string]uint64 `json:"attacks_by_type"`
}

// Monkey はデプロイメント内のサービスに障害を注入する
type Monkey struct {
	config     Config
	deployment *deployment.Deployment
	eventBus   *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	attackCount  uint64
	attackByType map[AttackType]uint64
	lastAttack   time.Time
	suspendedIDs map[string]time.Time
}

// New は新しいChaosMonkeyを作成する
func New(d *deployment.Deployment, config Config) *Monkey {
	return &Monkey{
		config:       config,
		deployment:   d,
		suspendedIDs: make(map[string]time.Time),
		attackByType: make(map[AttackType]uint64),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// publishEvent はイベントを発行する
func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start はカオス注入を開始する
func (m *Monkey) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.attackLoop()

	if m.config.SuspendTime > 0 {
		m.wg.Add(1)
		go m.resumeLoop()
	}

	logger.Info("", "ChaosMonkey started (interval: %v, targets: %d)",
		m.config.Interval, m.config.TargetCount)
}

// Stop はカオス注入を停止する
func (m *Monkey) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()

	// 残っているsuspendedサービスをresumeする
	m.resumeAll()

	logger.Info("", "ChaosMonkey stopped (total attacks: %d)", m.attackCount)
}

// attackLoop は定期的に攻撃を実行する
func (m *Monkey) attackLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.attack()
		}
	}
}

// resumeLoop はsuspendされたサービスを自動的にresumeする
func (m *Monkey) resumeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAndResume()
		}
	}
}

// attack は攻撃を実行する
func (m *Monkey) attack() {
	targets := m.selectTargets()
	if len(targets) == 0 {
		return
	}

	attackType := m.selectAttackType()

	for _, svc := range targets {
		m.executeAttack(svc, attackType)
	}

	m.mu.Lock()
	m.attackCount++
	m.lastAttack = time.Now()
	m.mu.Unlock()
}

// selectTargets は攻撃対象のサービスを選択する
func (m *Monkey) selectTargets() []*service.Service {
	services := m.deployment.Services()
	if len(services) == 0 {
		return nil
	}

	// 稼働中かつ対象IDに合致するサービスのみ
	candidates := make([]*service.Service, 0)
	for _, svc := range services {
		if svc.Status() != service.StatusRunning {
			continue
		}
		if len(m.config.TargetIDs) > 0 && !slices.Contains(m.config.TargetIDs, svc.ID()) {
			continue
		}
		candidates = append(candidates, svc)
	}

	if len(candidates) == 0 {
		return nil
	}

	count := m.config.TargetCount
	if count > len(candidates) {
		count = len(candidates)
	}

	// ランダムに選択
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	return candidates[:count]
}

// selectAttackType は攻撃タイプをランダムに選択する
func (m *Monkey) selectAttackType() AttackType {
	if len(m.config.AttackTypes) == 0 {
		return AttackKill
	}
	return m.config.AttackTypes[rand.Intn(len(m.config.AttackTypes))]
}

// executeAttack は指定された攻撃を実行する
func (m *Monkey) executeAttack(svc *service.Service, attackType AttackType) {
	switch attackType {
	case AttackKill:
		m.attackKill(svc)
	case AttackSuspend:
		m.attackSuspend(svc)
	case AttackDelay:
		m.attackDelay(svc)
	}
}

// attackKill はサービスを強制停止する
func (m *Monkey) attackKill(svc *service.Service) {
	if err := svc.Stop(); err != nil {
		logger.Warn("", "ChaosMonkey: failed to kill service %s: %v", svc.ID(), err)
		return
	}
	logger.Warn("", "ChaosMonkey: killed service %s", svc.ID())
	m.publishEvent(events.NewFaultInjectedEvent(svc.ID(), events.FaultKill))

	m.mu.Lock()
	m.attackByType[AttackKill]++
	m.mu.Unlock()
}

// attackSuspend はサービスを一時停止する
func (m *Monkey) attackSuspend(svc *service.Service) {
	if err := svc.Suspend(); err != nil {
		logger.Warn("", "ChaosMonkey: failed to suspend service %s: %v", svc.ID(), err)
		return
	}

	m.mu.Lock()
	m.suspendedIDs[svc.ID()] = time.Now()
	m.attackByType[AttackSuspend]++
	m.mu.Unlock()

	logger.Warn("", "ChaosMonkey: suspended service %s", svc.ID())
	m.publishEvent(events.NewFaultInjectedEvent(svc.ID(), events.FaultSuspend))
}

// attackDelay はサービスに遅延を注入する
func (m *Monkey) attackDelay(svc *service.Service) {
	svc.SetDelay(m.config.DelayDuration)
	logger.Warn("", "ChaosMonkey: injected %v delay to service %s", m.config.DelayDuration, svc.ID())
	m.publishEvent(events.NewDelayInjectedEvent(svc.ID(), m.config.DelayDuration))

	m.mu.Lock()
	m.attackByType[AttackDelay]++
	m.mu.Unlock()
}

// checkAndResume はsuspend時間が経過したサービスをresumeする
func (m *Monkey) checkAndResume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for serviceID, suspendTime := range m.suspendedIDs {
		if now.Sub(suspendTime) >= m.config.SuspendTime {
			if svc, exists := m.deployment.Get(serviceID); exists {
				if err := svc.Resume(); err == nil {
					logger.Info("", "ChaosMonkey: auto-resumed service %s", serviceID)
					m.publishEvent(events.NewFaultClearedEvent(serviceID, events.FaultSuspend))
				}
			}
			delete(m.suspendedIDs, serviceID)
		}
	}
}

// resumeAll は全てのsuspendedサービスをresumeする
func (m *Monkey) resumeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for serviceID := range m.suspendedIDs {
		if svc, exists := m.deployment.Get(serviceID); exists {
			if err := svc.Resume(); err == nil {
				logger.Info("", "ChaosMonkey: resumed service %s on shutdown", serviceID)
			}
		}
	}
	m.suspendedIDs = make(map[string]time.Time)
}

// IsRunning は実行中かどうかを返す
func (m *Monkey) IsRunning() bool {
	return m.running.Load()
}

// AttackCount は攻撃回数を返す
func (m *Monkey) AttackCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attackCount
}

// Stats は攻撃統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range m.attackByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalAttacks: m.attackCount,
		ByType:       byType,
	}
}
