// Package scenario は統合シナリオ実行機能を提供する。
//
// シナリオエンジンはバックエンドとフロントエンドのデプロイメントを構築し、
// 負荷生成、カオス注入、自動復旧を連携させて実行する。
//
// # 機能
//
// - シナリオ定義と実行
// - 定義済みプリセットシナリオ
// - 実行結果のレポート生成
//
// # プリセットシナリオ
//
// - baseline: 障害注入なしの基本負荷テスト
// - bad-latency: 素朴なフロントエンドへの遅延注入
// - resilient-latency: 耐障害性フロントエンドへの遅延注入
// - kill-backend: バックエンド停止と自動復旧
// - quick: 短時間の動作確認
//
// # 使用例
//
//	config := scenario.KillBackendScenario()
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
