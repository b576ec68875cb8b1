// Package service はローカルHTTPサービスのライフサイクル管理を提供する。
//
// Serviceはnet/httpサーバーを1つ包み、カオス注入の対象となる操作を公開する:
//
//   - Start / Stop: リスナーの起動と停止（kill攻撃相当）
//   - Suspend / Resume: リクエストの一時拒否（503）
//   - SetDelay: レスポンス遅延の注入
//
// 状態はStopped / Running / Suspendedの3値。Suspendと遅延は共有する
// fault.Stateを通じて反映されるため、バックエンドのように自前で障害状態を
// 参照するハンドラとも、FaultMiddlewareで包んだだけのハンドラとも組み合わ
// せられる。addrに":0"を渡すと空きポートが使われ、BaseURLで実際のURLを
// 取得できる。
package service
