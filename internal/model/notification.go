// Package model はドメインモデルを定義する。
package model

// Notification はサーバー側で生成される通知を表す。
// 未読から既読への遷移は明示的なackによって一度だけ行われ、
// クライアント側で削除されることはない。
type Notification struct {
	ID         string `json:"id"`
	UserID     int    `json:"userId"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
	IsRead     bool   `json:"isRead"`
	ArticleURL string `json:"articleUrl,omitempty"`
}
