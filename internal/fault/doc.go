// Package fault はサービス単位の障害注入状態を管理する。
//
// Stateは3種類の障害を表現する:
//
//   - Delay: 全リクエストに人工遅延を加える（BACKEND_DELAY相当）
//   - Suspend: 全リクエストを503で拒否する
//   - ErrorRate: 指定した確率でリクエストを失敗させる
//
// バックエンドのHTTPハンドラはリクエストごとにStateを参照し、
// カオス注入・実験のアクション・管理APIがStateを書き換える。
//
// # 使用例
//
//	st := fault.NewState()
//	st.SetDelay(2 * time.Second)
//
//	// ハンドラ内
//	st.ApplyDelay()
//	if st.Suspended() || st.ShouldFail() {
//		// 503を返す
//	}
package fault
