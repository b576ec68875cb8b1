// Package catalog はバックエンドの商品カタログAPIを提供する。
//
// インメモリの商品ストアと、その上のHTTPハンドラからなる:
//
//   - GET /health        ヘルスチェック（設定中の遅延を含む）
//   - GET /api/products  商品一覧
//   - POST /admin/fault  障害注入（delay / suspend / error_rate）
//   - DELETE /admin/fault 全障害の解除
//
// ハンドラはリクエストごとにfault.Stateを参照する。遅延が設定されていれば
// スリープし、一時停止中は503を返し、エラー率に当たれば500を返す。
// 管理エンドポイントは一時停止中でも応答する。
package catalog
