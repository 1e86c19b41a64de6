// Package session はアクティブなアクター（認証ユーザーまたはゲスト）の管理を担当する。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/hitoshi/devradar/internal/model"
	"github.com/hitoshi/devradar/internal/repository"
)

// 設定テーブル上のゲストIDの保存キー
const guestIDKey = "guest_id"

// Manager はセッション状態を保持する。未ログイン時は負の乱数ゲストIDが
// アクターとなり、リアルタイム購読やお気に入りのスコープキーとして使われる。
// ゲストIDは初回生成後に設定テーブルへ永続化され、プロセス再起動をまたいで
// 同じ匿名アイデンティティを維持する。
type Manager struct {
	users    repository.UserRepository
	settings repository.SettingsRepository
	logger   *slog.Logger

	mu      sync.Mutex
	current *model.User
	guestID int
}

func NewManager(users repository.UserRepository, settings repository.SettingsRepository, logger *slog.Logger) *Manager {
	return &Manager{
		users:    users,
		settings: settings,
		logger:   logger,
	}
}

// EnsureGuestID は永続化済みのゲストIDを読み込み、存在しなければ生成して保存する。
// 実ユーザーIDとの衝突を避けるため常に負の値を使う。
func (m *Manager) EnsureGuestID(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.guestID != 0 {
		return m.guestID, nil
	}

	value, ok, err := m.settings.Get(ctx, guestIDKey)
	if err != nil {
		return 0, fmt.Errorf("ゲストIDの読み込みに失敗しました: %w", err)
	}
	if ok {
		if id, parseErr := strconv.Atoi(value); parseErr == nil && id < 0 {
			m.guestID = id
			return id, nil
		}
		m.logger.Warn("保存済みゲストIDが不正なため再生成します", slog.String("value", value))
	}

	id := -(rand.IntN(1_000_000) + 1)
	if err := m.settings.Set(ctx, guestIDKey, strconv.Itoa(id)); err != nil {
		return 0, fmt.Errorf("ゲストIDの保存に失敗しました: %w", err)
	}

	m.guestID = id
	m.logger.Info("ゲストIDを生成しました", slog.Int("guest_id", id))
	return id, nil
}

// SignIn はユーザープロフィールをローカルストアに保存してセッションを切り替える。
// 既にローカルに存在するユーザーの場合は保存をスキップする。
func (m *Manager) SignIn(ctx context.Context, user model.User) error {
	existing, err := m.users.FindByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("ユーザーの確認に失敗しました: %w", err)
	}
	if existing == nil {
		if err := m.users.Create(ctx, &user); err != nil {
			return err
		}
	} else {
		user = *existing
	}

	m.mu.Lock()
	m.current = &user
	m.mu.Unlock()

	m.logger.Info("サインインしました", slog.Int("user_id", user.ID))
	return nil
}

// SignOut は現在のユーザーを解除してゲストセッションに戻る。
// ローカルのプロフィールとお気に入りは保持される。
func (m *Manager) SignOut() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.logger.Info("サインアウトしました")
}

// UpdateAvatarURL は現在のユーザーのアバターURLをローカルストアと
// セッション状態の両方に反映する。
func (m *Manager) UpdateAvatarURL(ctx context.Context, avatarURL string) error {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current == nil {
		return model.ErrNotSignedIn
	}

	if err := m.users.UpdateAvatarURL(ctx, current.ID, avatarURL); err != nil {
		return err
	}

	m.mu.Lock()
	if m.current != nil && m.current.ID == current.ID {
		m.current.AvatarURL = avatarURL
	}
	m.mu.Unlock()

	return nil
}

// DeleteAccount は現在のユーザーのローカルデータを削除してゲストに戻る。
// お気に入りは外部キーによりCASCADE削除される。
func (m *Manager) DeleteAccount(ctx context.Context) error {
	m.mu.Lock()
	current := m.current
	m.mu.Unlock()

	if current == nil {
		return model.ErrNotSignedIn
	}

	if err := m.users.DeleteByID(ctx, current.ID); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.logger.Info("アカウントを削除しました", slog.Int("user_id", current.ID))
	return nil
}

// CurrentUser は現在のユーザーを返す。ゲストセッションではnilを返す。
func (m *Manager) CurrentUser() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// ActorID は現在のアクターIDを返す。ログイン中はユーザーID、
// 未ログイン時はゲストIDを返す。
func (m *Manager) ActorID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		return m.current.ID
	}
	return m.guestID
}
