// Package model はドメインモデルを定義する。
package model

import "time"

// FavoriteRecord はローカルストアに永続化されたお気に入りを表す。
// (UserID, ArticleURL) の組はUNIQUE制約で保護され、同一ペアのレコードは
// 最大1件しか存在しない。重複挿入はエラーにならずUPSERTされる。
// 所有ユーザーが削除されるとCASCADEで全件削除される。
type FavoriteRecord struct {
	ID         int64     `db:"id"`
	UserID     int       `db:"user_id"`
	ArticleURL string    `db:"article_url"`
	Title      string    `db:"title"` // オフライン表示用に記事メタデータを保持する
	Author     string    `db:"author"`
	Date       string    `db:"date"`
	Category   string    `db:"category"`
	CreatedAt  time.Time `db:"created_at"`
}

// NewFavoriteRecord は記事からお気に入りレコードを構築する。
func NewFavoriteRecord(userID int, article Article) FavoriteRecord {
	category := article.Category
	if category == "" {
		category = DefaultCategory
	}
	return FavoriteRecord{
		UserID:     userID,
		ArticleURL: article.URL,
		Title:      article.Title,
		Author:     article.Author,
		Date:       article.Date,
		Category:   category,
	}
}
