// Package model はドメインモデルを定義する。
package model

import "time"

// User はローカルストアに保存されたユーザープロフィールを表す。
// 認証情報の管理自体はこのレイヤーの責務外で、お気に入りの所有者
// （CASCADE削除の親）としての最小限のフィールドのみを持つ。
type User struct {
	ID        int       `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	AvatarURL string    `db:"avatar_url"`
	CreatedAt time.Time `db:"created_at"`
}
