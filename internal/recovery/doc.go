// Package recovery はサービス障害からの自動復旧を提供する。
//
// RecoveryManagerは定期的に全サービスの状態をチェックし、
// 停止したサービスの再起動、一時停止したサービスの再開、
// 注入された遅延のクリアを行う。ChaosMonkeyの対向として動き、
// 「障害は起こるが、システムは戻る」側を担当する。
//
// 復旧はRecoveryDelayの待機後に行われ、再起動はMaxRetriesで
// 上限を設けられる。
package recovery
