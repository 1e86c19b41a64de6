// Package model はドメインモデルを定義する。
package model

// DefaultCategory はカテゴリ未設定の記事に割り当てる既定値。
const DefaultCategory = "Uncategorized"

// Article はバックエンドから取得した記事を表す。
// URLが記事の自然キーであり、重複排除・お気に入り判定・コメント紐付けの
// すべてがURLをキーとして行われる。IDはサーバー側の補助的な連番に過ぎない。
type Article struct {
	ID           int    `json:"id,omitempty"`
	Title        string `json:"title"`
	Desc         string `json:"desc"` // サニタイズ済み
	URL          string `json:"url"`
	Author       string `json:"author"`
	Date         string `json:"date"` // ISO形式の文字列。辞書順ソート可能
	LikeCount    string `json:"like_count"`
	CommentCount string `json:"comment_count"`
	ViewCount    string `json:"view_count"`
	Source       string `json:"source"`   // 記事の出自タグ（例: "iThome", "Threads"）
	Category     string `json:"category"` // 未設定の場合はDefaultCategory
	IsBookmarked bool   `json:"is_bookmarked"`
}
