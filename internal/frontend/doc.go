// Package frontend はECデモのフロントエンドを提供する。
//
// 同じ商品ページを2つのバリアントで実装している:
//
//   - v1 (naive): バックエンドを1秒だけ待ち、失敗したらそのまま
//     エラーページ（503）を返す。耐障害性パターンなし。
//   - v2 (resilient): サーキットブレーカー経由でバックエンドを呼び、
//     失敗時はTTLキャッシュ、次いで静的フォールバックカタログに
//     切り替える。ページは常に200を返す。
//
// どちらのバリアントがカオス実験に耐えるかを比較するのがこのデモの主題。
// v2のレスポンス供給元（live / cache / fallback）はメトリクスに記録される。
package frontend
