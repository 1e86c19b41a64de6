// Package notification は通知一覧の同期と既読制御を担当する。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/hitoshi/devradar/internal/metrics"
	"github.com/hitoshi/devradar/internal/model"
)

// Gateway は通知APIへのアクセスを抽象化する。
type Gateway interface {
	ListNotifications(ctx context.Context, userID int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
}

// Coordinator は通知一覧と未読数を保持し、既読化をack-then-reloadで行う。
// 一覧は常にサーバー応答で丸ごと置き換えられ、差分マージは行わない。
type Coordinator struct {
	gateway Gateway
	logger  *slog.Logger
	metrics metrics.Collector

	mu            sync.Mutex
	notifications []model.Notification
	unreadCount   int

	// arrivals は容量1のバッファ付きチャネル。受信者が追いつかない間の
	// 到着は1件に潰れる（高々1件のシグナル合体）。
	arrivals chan model.Notification
}

func NewCoordinator(gateway Gateway, logger *slog.Logger, collector metrics.Collector) *Coordinator {
	return &Coordinator{
		gateway:  gateway,
		logger:   logger,
		metrics:  collector,
		arrivals: make(chan model.Notification, 1),
	}
}

// LoadNotifications は指定ユーザーの通知一覧を取得して保持中の一覧を置き換える。
// 取得に失敗した場合は一覧を空に退化させた上でエラーを返す。
func (c *Coordinator) LoadNotifications(ctx context.Context, userID int) error {
	fetched, err := c.gateway.ListNotifications(ctx, userID)
	if err != nil {
		c.mu.Lock()
		c.notifications = nil
		c.unreadCount = 0
		c.mu.Unlock()
		return fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}

	unread := lo.CountBy(fetched, func(n model.Notification) bool {
		return !n.IsRead
	})

	c.mu.Lock()
	c.notifications = fetched
	c.unreadCount = unread
	c.mu.Unlock()

	c.logger.Debug("通知一覧を更新しました",
		slog.Int("user_id", userID),
		slog.Int("count", len(fetched)),
		slog.Int("unread", unread),
	)

	return nil
}

// Clear は保持中の一覧と未読数を破棄する。サインアウト時に呼ばれる。
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = nil
	c.unreadCount = 0
}

// MarkRead は通知をサーバー側で既読化してから一覧を再取得する。
// 既読済みの通知に対する呼び出しは安全で、状態は変化しない。
func (c *Coordinator) MarkRead(ctx context.Context, userID int, notificationID string) error {
	if err := c.gateway.MarkNotificationRead(ctx, notificationID); err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}

	c.metrics.RecordNotificationAcked()

	// ackの成功が確定してから再取得する。ローカルだけの先行既読はしない。
	return c.LoadNotifications(ctx, userID)
}

// NotifyArrival は新着通知を到着チャネルに非ブロッキングで送る。
// 受信者が滞留している場合は黙って捨てる。
func (c *Coordinator) NotifyArrival(notification model.Notification) {
	select {
	case c.arrivals <- notification:
	default:
	}
}

// Arrivals は新着通知の受信チャネルを返す。
func (c *Coordinator) Arrivals() <-chan model.Notification {
	return c.arrivals
}

// Notifications は保持中の一覧のコピーを返す。
func (c *Coordinator) Notifications() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Notification(nil), c.notifications...)
}

// UnreadCount は未読数を返す。
func (c *Coordinator) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unreadCount
}
