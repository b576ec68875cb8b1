package scenario

import (
	"time"

	"chaos-shop/internal/chaos"
	"chaos-shop/internal/frontend"
)

// BaselineScenario はベースラインシナリオを返す
// 障害注入なし、全レスポンスがライブになることを確認する
func BaselineScenario() Config {
	return Config{
		Name:            "baseline",
		Description:     "Baseline load test without fault injection",
		Duration:        10 * time.Second,
		FrontendVariant: frontend.VariantResilient,
		LoadWorkers:     4,
		LoadInterval:    100 * time.Millisecond,
		EnableChaos:     false,
		EnableRecovery:  false,
	}
}

// BadLatencyScenario は素朴なフロントエンドへの遅延注入シナリオを返す
// バックエンドの遅延がそのままエラーページとして利用者に届く
func BadLatencyScenario() Config {
	return Config{
		Name:            "bad-latency",
		Description:     "Backend latency against the naive frontend",
		Duration:        15 * time.Second,
		FrontendVariant: frontend.VariantNaive,
		LoadWorkers:     4,
		LoadInterval:    200 * time.Millisecond,
		EnableChaos:     true,
		ChaosInterval:   3 * time.Second,
		ChaosTargets:    1,
		ChaosTargetIDs:  []string{BackendID},
		AttackTypes:     []chaos.AttackType{chaos.AttackDelay},
		EnableRecovery:  true,
		RecoveryDelay:   2 * time.Second,
		MaxRetries:      3,
	}
}

// ResilientLatencyScenario は耐障害性フロントエンドへの遅延注入シナリオを返す
// 同じ障害でもサーキットブレーカーとフォールバックでページは返り続ける
func ResilientLatencyScenario() Config {
	config := BadLatencyScenario()
	config.Name = "resilient-latency"
	config.Description = "Backend latency against the resilient frontend"
	config.FrontendVariant = frontend.VariantResilient
	return config
}

// KillBackendScenario はバックエンド停止と復旧のシナリオを返す
func KillBackendScenario() Config {
	return Config{
		Name:            "kill-backend",
		Description:     "Backend kills with automatic recovery",
		Duration:        20 * time.Second,
		FrontendVariant: frontend.VariantResilient,
		LoadWorkers:     4,
		LoadInterval:    200 * time.Millisecond,
		EnableChaos:     true,
		ChaosInterval:   4 * time.Second,
		ChaosTargets:    1,
		ChaosTargetIDs:  []string{BackendID},
		AttackTypes:     []chaos.AttackType{chaos.AttackKill},
		EnableRecovery:  true,
		RecoveryDelay:   1 * time.Second,
		MaxRetries:      3,
	}
}

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	return Config{
		Name:            "quick",
		Description:     "Quick test for verification",
		Duration:        5 * time.Second,
		FrontendVariant: frontend.VariantResilient,
		LoadWorkers:     2,
		LoadInterval:    100 * time.Millisecond,
		EnableChaos:     true,
		ChaosInterval:   1 * time.Second,
		ChaosTargets:    1,
		ChaosTargetIDs:  []string{BackendID},
		AttackTypes:     []chaos.AttackType{chaos.AttackSuspend},
		EnableRecovery:  true,
		RecoveryDelay:   500 * time.Millisecond,
		MaxRetries:      2,
	}
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	presets := map[string]func() Config{
		"baseline":          BaselineScenario,
		"bad-latency":       BadLatencyScenario,
		"resilient-latency": ResilientLatencyScenario,
		"kill-backend":      KillBackendScenario,
		"quick":             QuickScenario,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"baseline", "bad-latency", "resilient-latency", "kill-backend", "quick"}
}
