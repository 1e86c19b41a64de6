package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLiteSettingsRepo はSQLiteを使用したキー・バリュー設定リポジトリ。
type SQLiteSettingsRepo struct {
	db *sqlx.DB
}

// NewSQLiteSettingsRepo はSQLiteSettingsRepoを生成する。
func NewSQLiteSettingsRepo(db *sqlx.DB) *SQLiteSettingsRepo {
	return &SQLiteSettingsRepo{db: db}
}

// Get は指定キーの値を返す。キーが存在しない場合は空文字列とfalseを返す。
func (r *SQLiteSettingsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}

	return value, true, nil
}

// Set は指定キーの値を保存する。既存キーは上書きされる。
func (r *SQLiteSettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("設定の保存に失敗しました: %w", err)
	}

	return nil
}
