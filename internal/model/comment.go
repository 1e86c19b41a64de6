// Package model はドメインモデルを定義する。
package model

// Comment は記事へのコメントを表す。
// IDはクライアント側で生成するUUID。ParentIDが空文字列の場合はトップレベルコメント、
// 非空の場合は同一記事内のトップレベルコメントへの返信を表す。
// 返信の入れ子は2階層まで（返信への返信は許可しない）。投稿後は不変。
type Comment struct {
	ID         string `json:"id"`
	ArticleURL string `json:"articleUrl"`
	UserID     int    `json:"userId"`
	UserName   string `json:"userName"`
	Content    string `json:"content"` // サニタイズ済み
	Timestamp  int64  `json:"timestamp"` // エポックミリ秒
	ParentID   string `json:"parentId,omitempty"`
}

// IsTopLevel はトップレベルコメント（返信でない）かどうかを返す。
func (c Comment) IsTopLevel() bool {
	return c.ParentID == ""
}
