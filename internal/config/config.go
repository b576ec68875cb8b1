package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chaos-shop/internal/chaos"
	"chaos-shop/internal/frontend"
	"chaos-shop/internal/scenario"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description" json:"description"`
	Duration     string `yaml:"duration" json:"duration"`
	Frontend     string `yaml:"frontend" json:"frontend"`
	BackendDelay string `yaml:"backend_delay" json:"backend_delay"`

	Load     LoadConfig     `yaml:"load" json:"load"`
	Chaos    ChaosConfig    `yaml:"chaos" json:"chaos"`
	Recovery RecoveryConfig `yaml:"recovery" json:"recovery"`
}

// LoadConfig は負荷生成の設定
type LoadConfig struct {
	Workers  int    `yaml:"workers" json:"workers"`
	Interval string `yaml:"interval" json:"interval"`
}

// ChaosConfig はカオス設定
type ChaosConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Interval    string   `yaml:"interval" json:"interval"`
	Targets     int      `yaml:"targets" json:"targets"`
	TargetIDs   []string `yaml:"target_ids" json:"target_ids"`
	AttackTypes []string `yaml:"attack_types" json:"attack_types"`
}

// RecoveryConfig は復旧設定
type RecoveryConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Delay      string `yaml:"delay" json:"delay"`
	MaxRetries int    `yaml:"max_retries" json:"max_retries"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	// デフォルト値の設定
	config := scenario.DefaultConfig()

	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if sc.Duration != "" {
		d, err := time.ParseDuration(sc.Duration)
		if err != nil {
			return config, fmt.Errorf("invalid duration: %w", err)
		}
		config.Duration = d
	}
	if sc.Frontend != "" {
		variant, err := frontend.ParseVariant(sc.Frontend)
		if err != nil {
			return config, err
		}
		config.FrontendVariant = variant
	}
	if sc.BackendDelay != "" {
		d, err := time.ParseDuration(sc.BackendDelay)
		if err != nil {
			return config, fmt.Errorf("invalid backend_delay: %w", err)
		}
		config.BackendDelay = d
	}

	// Load設定
	if sc.Load.Workers > 0 {
		config.LoadWorkers = sc.Load.Workers
	}
	if sc.Load.Interval != "" {
		d, err := time.ParseDuration(sc.Load.Interval)
		if err != nil {
			return config, fmt.Errorf("invalid load interval: %w", err)
		}
		config.LoadInterval = d
	}

	// Chaos設定
	config.EnableChaos = sc.Chaos.Enabled
	if sc.Chaos.Interval != "" {
		d, err := time.ParseDuration(sc.Chaos.Interval)
		if err != nil {
			return config, fmt.Errorf("invalid chaos interval: %w", err)
		}
		config.ChaosInterval = d
	}
	if sc.Chaos.Targets > 0 {
		config.ChaosTargets = sc.Chaos.Targets
	}
	if len(sc.Chaos.TargetIDs) > 0 {
		config.ChaosTargetIDs = sc.Chaos.TargetIDs
	}
	if len(sc.Chaos.AttackTypes) > 0 {
		attacks, err := parseAttackTypes(sc.Chaos.AttackTypes)
		if err != nil {
			return config, err
		}
		config.AttackTypes = attacks
	}

	// Recovery設定
	config.EnableRecovery = sc.Recovery.Enabled
	if sc.Recovery.Delay != "" {
		d, err := time.ParseDuration(sc.Recovery.Delay)
		if err != nil {
			return config, fmt.Errorf("invalid recovery delay: %w", err)
		}
		config.RecoveryDelay = d
	}
	if sc.Recovery.MaxRetries > 0 {
		config.MaxRetries = sc.Recovery.MaxRetries
	}

	return config, nil
}

// parseAttackTypes は文字列の攻撃タイプをパースする
func parseAttackTypes(types []string) ([]chaos.AttackType, error) {
	var attacks []chaos.AttackType

	for _, t := range types {
		switch strings.ToLower(t) {
		case "kill":
			attacks = append(attacks, chaos.AttackKill)
		case "suspend":
			attacks = append(attacks, chaos.AttackSuspend)
		case "delay":
			attacks = append(attacks, chaos.AttackDelay)
		default:
			return nil, fmt.Errorf("unknown attack type: %s", t)
		}
	}

	return attacks, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	sc := f.Scenario

	if sc.Frontend != "" {
		if _, err := frontend.ParseVariant(sc.Frontend); err != nil {
			return err
		}
	}

	if sc.Load.Workers < 0 {
		return fmt.Errorf("load.workers must be non-negative")
	}

	if sc.Chaos.Targets < 0 {
		return fmt.Errorf("chaos.targets must be non-negative")
	}

	if sc.Recovery.MaxRetries < 0 {
		return fmt.Errorf("recovery.max_retries must be non-negative")
	}

	return nil
}
