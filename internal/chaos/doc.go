// Package chaos はカオスエンジニアリング機能を提供する。
//
// ChaosMonkeyはデプロイメント内のHTTPサービスに対して様々な障害を注入し、
// フロントエンドの耐障害性パターンをテストするために使用される。
//
// # 障害タイプ
//
// - Kill: サービスのリスナーを強制停止
// - Suspend: サービスを一時停止（全リクエストが503になる）
// - Delay: サービスのレスポンスに遅延を注入
//
// # 使用例
//
//	config := chaos.DefaultConfig()
//	config.Interval = 3 * time.Second
//	config.TargetIDs = []string{"backend"}
//
//	monkey := chaos.New(deploy, config)
//	monkey.Start(ctx)
//	defer monkey.Stop()
package chaos
