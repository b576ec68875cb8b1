// Package main is the entry point for chaos-shop.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"chaos-shop/internal/api"
	"chaos-shop/internal/catalog"
	"chaos-shop/internal/config"
	"chaos-shop/internal/deployment"
	"chaos-shop/internal/experiment"
	"chaos-shop/internal/fault"
	"chaos-shop/internal/frontend"
	"chaos-shop/internal/logger"
	"chaos-shop/internal/scenario"
	"chaos-shop/internal/service"
)

var (
	version = "dev"
)

// 実験モードの固定リッスンアドレス
const (
	defaultBackendAddr  = "127.0.0.1:5001"
	defaultFrontendAddr = "127.0.0.1:5000"
)

func main() {
	// フラグ定義
	var (
		configFile      = flag.String("config", "", "設定ファイルパス (YAML/JSON)")
		presetName      = flag.String("preset", "", "プリセットシナリオ名 (baseline, bad-latency, resilient-latency, kill-backend, quick)")
		experimentFile  = flag.String("experiment", "", "実験定義ファイルパス (JSON/YAML)")
		duration        = flag.Duration("duration", 0, "シナリオ実行時間 (例: 10s, 1m)")
		workers         = flag.Int("workers", 0, "負荷生成ワーカー数")
		frontendVariant = flag.String("frontend", "", "フロントエンドのバリアント (v1, v2)")
		backendDelay    = flag.Duration("backend-delay", 0, "バックエンドの初期遅延 (BACKEND_DELAY環境変数でも指定可)")
		enableChaos     = flag.Bool("chaos", true, "カオス注入を有効化")
		enableRecovery  = flag.Bool("recovery", true, "自動復旧を有効化")
		listPresets     = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion     = flag.Bool("version", false, "バージョンを表示")
		serverMode      = flag.Bool("server", false, "Web UI サーバーモードで起動")
		serverAddr      = flag.String("addr", ":8080", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `chaos-shop - Resilience Pattern Demo with Chaos Injection

Usage:
  chaos-shop [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # プリセットシナリオを実行
  chaos-shop --preset quick

  # 素朴なフロントエンドと耐障害性フロントエンドを比較
  chaos-shop --preset bad-latency
  chaos-shop --preset resilient-latency

  # 設定ファイルから実行
  chaos-shop --config scenario.yaml

  # フラグでカスタマイズ
  chaos-shop --preset baseline --duration 30s --frontend v1

  # 宣言的な実験を実行
  chaos-shop --experiment experiments/backend_latency.json

  # プリセット一覧を表示
  chaos-shop --list-presets

  # Web UIサーバーモードで起動
  chaos-shop --server --addr :8080
`)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("chaos-shop version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	// Web UIサーバーモード
	if *serverMode {
		if err := runServer(*serverAddr); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// 実験モード
	if *experimentFile != "" {
		if err := runExperiment(*experimentFile, *backendDelay, *frontendVariant); err != nil {
			logger.Error("", "実験実行エラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// シナリオ設定の決定
	scenarioConfig, err := buildScenarioConfig(
		*configFile, *presetName, *frontendVariant,
		*duration, *backendDelay, *workers, *enableChaos, *enableRecovery,
	)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// シナリオ実行
	if err := runScenario(scenarioConfig); err != nil {
		logger.Error("", "シナリオ実行エラー: %v", err)
		os.Exit(1)
	}
}

// buildScenarioConfig はシナリオ設定を構築する
func buildScenarioConfig(
	configFile, presetName, frontendVariant string,
	duration, backendDelay time.Duration, workers int,
	enableChaos, enableRecovery bool,
) (scenario.Config, error) {
	var cfg scenario.Config

	// 1. 設定ファイルから読み込み
	if configFile != "" {
		fileConfig, err := config.LoadFile(configFile)
		if err != nil {
			return cfg, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, fmt.Errorf("設定検証エラー: %w", err)
		}
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
	} else if presetName != "" {
		// 2. プリセットから読み込み
		preset, ok := scenario.GetPreset(presetName)
		if !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", presetName, scenario.ListPresets())
		}
		cfg = preset
	} else {
		// 3. デフォルト（quickシナリオ）
		cfg = scenario.QuickScenario()
	}

	// フラグでオーバーライド
	if duration > 0 {
		cfg.Duration = duration
	}
	if workers > 0 {
		cfg.LoadWorkers = workers
	}
	if frontendVariant != "" {
		variant, err := frontend.ParseVariant(frontendVariant)
		if err != nil {
			return cfg, err
		}
		cfg.FrontendVariant = variant
	}
	if d, ok := resolveBackendDelay(backendDelay); ok {
		cfg.BackendDelay = d
	}

	cfg.EnableChaos = enableChaos
	cfg.EnableRecovery = enableRecovery

	return cfg, nil
}

// resolveBackendDelay はフラグとBACKEND_DELAY環境変数から初期遅延を決める
// 環境変数は秒数の小数として解釈する（フラグが優先）
func resolveBackendDelay(flagDelay time.Duration) (time.Duration, bool) {
	if flagDelay > 0 {
		return flagDelay, true
	}
	if env := os.Getenv("BACKEND_DELAY"); env != "" {
		seconds, err := strconv.ParseFloat(env, 64)
		if err != nil || seconds < 0 {
			logger.Warn("", "Ignoring invalid BACKEND_DELAY=%q", env)
			return 0, false
		}
		return time.Duration(seconds * float64(time.Second)), true
	}
	return 0, false
}

// runScenario はシナリオを実行する
func runScenario(cfg scenario.Config) error {
	fmt.Println("chaos-shop - Resilience Pattern Demo")
	fmt.Println("====================================================")
	fmt.Printf("Scenario: %s\n", cfg.Name)
	fmt.Printf("Duration: %v\n", cfg.Duration)
	fmt.Printf("Frontend: %s, Workers: %d\n", cfg.FrontendVariant, cfg.LoadWorkers)
	fmt.Printf("Chaos: %v, Recovery: %v\n", cfg.EnableChaos, cfg.EnableRecovery)
	fmt.Println("====================================================")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n中断シグナルを受信、シナリオを終了中...")
		cancel()
	}()

	// シナリオ実行
	engine := scenario.New(cfg)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	// レポート出力
	fmt.Println(result.Report())

	return nil
}

// runExperiment はバックエンドとフロントエンドを固定ポートで起動し、
// 実験定義を実行してジャーナルを出力する
func runExperiment(path string, backendDelay time.Duration, frontendVariant string) error {
	exp, err := experiment.LoadFile(path)
	if err != nil {
		return err
	}

	variant := frontend.VariantResilient
	if frontendVariant != "" {
		variant, err = frontend.ParseVariant(frontendVariant)
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n中断シグナルを受信、実験を終了中...")
		cancel()
	}()

	// バックエンド
	backendFaults := fault.NewState()
	if d, ok := resolveBackendDelay(backendDelay); ok {
		backendFaults.SetDelay(d)
	}
	backendHandler := catalog.NewHandler(scenario.BackendID, catalog.NewStore(), backendFaults)
	backend := service.New(scenario.BackendID, defaultBackendAddr, backendHandler.Mux(), backendFaults)

	d := deployment.New()
	if err := d.Add(backend); err != nil {
		return err
	}
	if err := backend.Start(ctx); err != nil {
		return fmt.Errorf("failed to start backend: %w", err)
	}

	// フロントエンド
	feConfig := frontend.DefaultConfig(backend.BaseURL())
	feConfig.Variant = variant
	feHandler := frontend.NewHandler(scenario.FrontendID, feConfig, nil)
	feFaults := fault.NewState()
	fe := service.New(scenario.FrontendID, defaultFrontendAddr,
		service.FaultMiddleware(feFaults, feHandler.Mux()), feFaults)
	if err := d.Add(fe); err != nil {
		return err
	}
	if err := fe.Start(ctx); err != nil {
		return fmt.Errorf("failed to start frontend: %w", err)
	}
	defer func() { _ = d.StopAll() }()

	fmt.Printf("Backend:  %s\n", backend.BaseURL())
	fmt.Printf("Frontend: %s (%s)\n", fe.BaseURL(), variant)
	fmt.Println()

	// 実験実行
	runner := experiment.NewRunner(experiment.NewExecutor(d))
	journal := runner.Run(ctx, exp)

	out, err := json.MarshalIndent(journal, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if journal.Verdict != experiment.VerdictCompleted {
		return fmt.Errorf("experiment %s: verdict %s", exp.Title, journal.Verdict)
	}
	return nil
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットシナリオ:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		cfg, _ := scenario.GetPreset(name)
		fmt.Printf("  %-20s %s\n", name, cfg.Description)
	}

	fmt.Println()
	fmt.Println("使用例: chaos-shop --preset quick")
}

// runServer はWeb UIサーバーを起動する
func runServer(addr string) error {
	fmt.Println("chaos-shop - Web UI Server")
	fmt.Println("==========================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n中断シグナルを受信、サーバーを終了中...")
		cancel()
	}()

	server := api.NewServer(addr, nil)
	return server.Start(ctx)
}
