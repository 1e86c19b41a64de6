// Package favorite はお気に入り状態の管理機能を提供する。
// ローカルストアとセッションユーザーの突き合わせ、O(1)判定用のURL集合ミラー、
// ログイン/ログアウトに伴う読み込み/クリアを含む。
package favorite

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/hitoshi/devradar/internal/model"
	"github.com/hitoshi/devradar/internal/repository"
)

// Coordinator はお気に入りのトグルとミラー管理を行う。
//
// ミラー（URL集合と整列リスト）は表示専用のビューで、トグルの
// 挿入/削除判定には使わない。判定はストアへの権威ある存在確認を
// (userID, articleURL) ごとのロック内で行い、高速な二重タップでも
// 状態がずれないようにする。
type Coordinator struct {
	repo   repository.FavoriteRepository
	logger *slog.Logger

	mu     sync.RWMutex
	urls   map[string]struct{}
	list   []model.FavoriteRecord
	userID int
	loaded bool

	onChange func()

	keysMu sync.Mutex
	keys   map[string]*sync.Mutex
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。
func NewCoordinator(repo repository.FavoriteRepository, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		repo:   repo,
		logger: logger,
		urls:   make(map[string]struct{}),
		keys:   make(map[string]*sync.Mutex),
	}
}

// SetOnChange はミラー更新のたびに呼ばれるコールバックを設定する。
// ストアのライブクエリ購読に相当する。読み込み開始前に設定すること。
func (c *Coordinator) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// LoadFavorites は指定ユーザーのお気に入りをストアから読み込み、
// URL集合ミラーと整列リスト（最近追加した順）を更新する。
// ログイン時とミラーの再同期時に呼ぶ。
func (c *Coordinator) LoadFavorites(ctx context.Context, userID int) error {
	c.mu.Lock()
	c.userID = userID
	c.loaded = true
	c.mu.Unlock()

	return c.refresh(ctx, userID)
}

// ClearFavorites は両ビューをリセットする。セッションが未認証になったときに呼ぶ。
func (c *Coordinator) ClearFavorites() {
	c.mu.Lock()
	c.urls = make(map[string]struct{})
	c.list = nil
	c.userID = 0
	c.loaded = false
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// ToggleFavorite はお気に入り状態を切り替える。
// 未ログイン（userがnil）の場合はErrNotSignedInを返す。
// 存在すれば削除、なければ挿入し、ミラーを再同期する。
func (c *Coordinator) ToggleFavorite(ctx context.Context, user *model.User, article model.Article) error {
	if user == nil {
		return model.ErrNotSignedIn
	}

	unlock := c.lockKey(user.ID, article.URL)
	defer unlock()

	exists, err := c.repo.Exists(ctx, user.ID, article.URL)
	if err != nil {
		return err
	}

	if exists {
		if err := c.repo.Delete(ctx, user.ID, article.URL); err != nil {
			return err
		}
	} else {
		if err := c.repo.Upsert(ctx, model.NewFavoriteRecord(user.ID, article)); err != nil {
			return err
		}
	}

	return c.refreshIfLoaded(ctx, user.ID)
}

// RemoveFavorite はトグルを経由しない直接削除。お気に入り管理画面から使う。
func (c *Coordinator) RemoveFavorite(ctx context.Context, userID int, articleURL string) error {
	unlock := c.lockKey(userID, articleURL)
	defer unlock()

	if err := c.repo.Delete(ctx, userID, articleURL); err != nil {
		return err
	}

	return c.refreshIfLoaded(ctx, userID)
}

// IsFavorite は指定URLが現在のミラーに含まれるかをO(1)で返す。
func (c *Coordinator) IsFavorite(articleURL string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.urls[articleURL]
	return ok
}

// Favorites は整列リスト（最近追加した順）のスナップショットを返す。
func (c *Coordinator) Favorites() []model.FavoriteRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.FavoriteRecord, len(c.list))
	copy(out, c.list)
	return out
}

// refresh はストアから読み直して両ビューを置き換える。
func (c *Coordinator) refresh(ctx context.Context, userID int) error {
	records, err := c.repo.ListByUser(ctx, userID)
	if err != nil {
		c.logger.Error("お気に入りミラーの再同期に失敗しました",
			slog.Int("user_id", userID),
			slog.String("error", err.Error()),
		)
		return err
	}

	urls := lo.SliceToMap(records, func(r model.FavoriteRecord) (string, struct{}) {
		return r.ArticleURL, struct{}{}
	})

	c.mu.Lock()
	// 再同期中にユーザーが切り替わっていたら古い結果は捨てる
	if !c.loaded || c.userID != userID {
		c.mu.Unlock()
		return nil
	}
	c.urls = urls
	c.list = records
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}

	return nil
}

func (c *Coordinator) refreshIfLoaded(ctx context.Context, userID int) error {
	c.mu.RLock()
	active := c.loaded && c.userID == userID
	c.mu.RUnlock()

	if !active {
		return nil
	}
	return c.refresh(ctx, userID)
}

// lockKey は(userID, articleURL)ごとのロックを取得し、解放関数を返す。
func (c *Coordinator) lockKey(userID int, articleURL string) func() {
	key := fmt.Sprintf("%d|%s", userID, articleURL)

	c.keysMu.Lock()
	m, ok := c.keys[key]
	if !ok {
		m = &sync.Mutex{}
		c.keys[key] = m
	}
	c.keysMu.Unlock()

	m.Lock()
	return m.Unlock
}
