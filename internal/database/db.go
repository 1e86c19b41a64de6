// Package database はローカルキャッシュDBの接続とマイグレーション管理を提供する。
package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open はローカルキャッシュ用のSQLiteデータベース接続を開く。
// pathにはDBファイルのパス、またはテスト用に":memory:"を指定する。
// 外部キー制約（お気に入りのCASCADE削除に必要）はDSNのpragmaで有効化する。
func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは単一ライターのため接続を1本に絞る。
	// ":memory:"の場合も接続ごとに別DBになる事故を防げる。
	db.SetMaxOpenConns(1)

	return db, nil
}
