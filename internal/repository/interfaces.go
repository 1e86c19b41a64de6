// Package repository はローカルキャッシュDBへの永続化インターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/devradar/internal/model"
)

// FavoriteRepository はお気に入りデータの永続化インターフェース。
// オフライン時の「ブックマーク済みか」の真実の源となる。
type FavoriteRepository interface {
	// ListByUser は指定ユーザーの全お気に入りを新しい順（ローカル挿入順の降順）で返す。
	ListByUser(ctx context.Context, userID int) ([]model.FavoriteRecord, error)

	// Upsert はお気に入りを挿入する。(user_id, article_url)が既に存在する場合は
	// エラーにせずメタデータを置き換える。
	Upsert(ctx context.Context, record model.FavoriteRecord) error

	// Delete は指定ユーザー・記事URLのお気に入りを削除する。存在しない場合も成功する。
	Delete(ctx context.Context, userID int, articleURL string) error

	// Exists は指定ユーザー・記事URLのお気に入りが存在するかを返す。
	// トグル判定の権威ある存在確認として使う（インメモリミラーは表示専用）。
	Exists(ctx context.Context, userID int, articleURL string) (bool, error)
}

// UserRepository はローカルユーザープロフィールの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.User, error)

	// UpdateAvatarURL は指定ユーザーのアバターURLを更新する。
	// ユーザーが存在しない場合はエラーを返す。
	UpdateAvatarURL(ctx context.Context, id int, avatarURL string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// そのユーザーのお気に入りはCASCADE削除される。
	DeleteByID(ctx context.Context, id int) error
}

// SettingsRepository はキー・バリュー形式のアプリ設定の永続化インターフェース。
// ゲストIDの保存とフィードのソース別表示トグルに使う。
type SettingsRepository interface {
	// Get は指定キーの値を返す。キーが存在しない場合は空文字列とfalseを返す。
	Get(ctx context.Context, key string) (string, bool, error)

	// Set は指定キーの値を保存する。既存キーは上書きされる。
	Set(ctx context.Context, key, value string) error
}
