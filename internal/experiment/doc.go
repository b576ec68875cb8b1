// Package experiment は宣言的なカオス実験の定義と実行を提供する。
//
// 実験はJSONまたはYAMLで記述し、定常状態仮説（プローブ）、メソッド
// （アクションとプローブの列）、ロールバックで構成される。メソッド実行の
// 前後で定常状態を検証し、completed / deviated / aborted / failed の
// いずれかの判定を持つジャーナルを生成する。
package experiment
