package service

import (
	"net/http"

	"chaos-shop/internal/fault"
)

// FaultMiddleware は障害状態をハンドラに適用するミドルウェア
//
// バックエンドのハンドラは自前で障害状態を参照する（管理エンドポイントを
// 一時停止中でも生かすため）が、フロントエンドのように障害を意識しない
// ハンドラはこのミドルウェアで包むことで、chaosのsuspend/delay攻撃の
// 対象にできる
func FaultMiddleware(st *fault.State, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if st.Suspended() {
			http.Error(w, "service suspended", http.StatusServiceUnavailable)
			return
		}
		st.ApplyDelay()
		next.ServeHTTP(w, r)
	})
}
