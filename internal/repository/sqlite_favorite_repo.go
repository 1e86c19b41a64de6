package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/hitoshi/devradar/internal/model"
)

// SQLiteFavoriteRepo はSQLiteを使用したお気に入りリポジトリ。
type SQLiteFavoriteRepo struct {
	db *sqlx.DB
}

// dbFavorite はfavoritesテーブルの行を表す。
type dbFavorite struct {
	ID         int64     `db:"id"`
	UserID     int       `db:"user_id"`
	ArticleURL string    `db:"article_url"`
	Title      string    `db:"title"`
	Author     string    `db:"author"`
	Date       string    `db:"date"`
	Category   string    `db:"category"`
	CreatedAt  time.Time `db:"created_at"`
}

func (f dbFavorite) toModel() model.FavoriteRecord {
	return model.FavoriteRecord{
		ID:         f.ID,
		UserID:     f.UserID,
		ArticleURL: f.ArticleURL,
		Title:      f.Title,
		Author:     f.Author,
		Date:       f.Date,
		Category:   f.Category,
		CreatedAt:  f.CreatedAt,
	}
}

// NewSQLiteFavoriteRepo はSQLiteFavoriteRepoを生成する。
func NewSQLiteFavoriteRepo(db *sqlx.DB) *SQLiteFavoriteRepo {
	return &SQLiteFavoriteRepo{db: db}
}

// ListByUser は指定ユーザーの全お気に入りを新しい順で返す。
// ローカルのautoincrement idの降順が「最近追加した順」に一致する。
func (r *SQLiteFavoriteRepo) ListByUser(ctx context.Context, userID int) ([]model.FavoriteRecord, error) {
	var rows []dbFavorite
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, article_url, title, author, date, category, created_at
		 FROM favorites WHERE user_id = ? ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}

	return lo.Map(rows, func(f dbFavorite, _ int) model.FavoriteRecord {
		return f.toModel()
	}), nil
}

// Upsert はお気に入りを挿入する。(user_id, article_url)のUNIQUE制約に
// 衝突した場合はメタデータを置き換える（idは維持される）。
func (r *SQLiteFavoriteRepo) Upsert(ctx context.Context, record model.FavoriteRecord) error {
	category := record.Category
	if category == "" {
		category = model.DefaultCategory
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, article_url, title, author, date, category)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, article_url) DO UPDATE SET
		     title = excluded.title,
		     author = excluded.author,
		     date = excluded.date,
		     category = excluded.category`,
		record.UserID, record.ArticleURL, record.Title, record.Author, record.Date, category,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの保存に失敗しました: %w", err)
	}

	return nil
}

// Delete は指定ユーザー・記事URLのお気に入りを削除する。
func (r *SQLiteFavoriteRepo) Delete(ctx context.Context, userID int, articleURL string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND article_url = ?`,
		userID, articleURL,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}

	return nil
}

// Exists は指定ユーザー・記事URLのお気に入りが存在するかを返す。
func (r *SQLiteFavoriteRepo) Exists(ctx context.Context, userID int, articleURL string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM favorites WHERE user_id = ? AND article_url = ?`,
		userID, articleURL,
	)
	if err != nil {
		return false, fmt.Errorf("お気に入りの存在確認に失敗しました: %w", err)
	}

	return count > 0, nil
}
