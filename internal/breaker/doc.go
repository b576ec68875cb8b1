// Package breaker はサーキットブレーカーを提供する。
//
// 耐障害性フロントエンドがバックエンド呼び出しを保護するために使う。
// 連続失敗が閾値（デフォルト3回）に達するとOpenになり、OpenTimeout
// （デフォルト30秒）の間は即座にErrOpenを返す。タイムアウト経過後は
// HalfOpenで試験呼び出しを1回通し、結果に応じてClosedかOpenへ遷移する。
//
// # 使用例
//
//	b := breaker.New(breaker.DefaultConfig())
//	err := b.Call(func() error {
//		return fetchFromBackend()
//	})
//	if errors.Is(err, breaker.ErrOpen) {
//		// フォールバックを使う
//	}
package breaker
