// Package model はドメインモデルを定義する。
package model

// TrendKeyword はキーワードトレンド分析の1語を表す。
// 読み取り専用で、フェッチのたびに全件置き換えられる（マージしない）。
type TrendKeyword struct {
	Text  string `json:"text"`
	Value int    `json:"value"` // 出現頻度
}
