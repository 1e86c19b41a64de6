// Package trend はキーワードトレンドの取得と保持を担当する。
package trend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/devradar/internal/model"
)

// Gateway はトレンドAPIへのアクセスを抽象化する。
type Gateway interface {
	ListTrends(ctx context.Context) ([]model.TrendKeyword, error)
}

// Service はトレンドキーワードの読み取り専用スナップショットを保持する。
// 取得のたびに一覧は丸ごと置き換えられる。
type Service struct {
	gateway Gateway
	logger  *slog.Logger

	mu       sync.Mutex
	keywords []model.TrendKeyword
}

func NewService(gateway Gateway, logger *slog.Logger) *Service {
	return &Service{gateway: gateway, logger: logger}
}

// LoadTrends は最新のトレンド一覧を取得して保持中の一覧を置き換える。
// 失敗した場合は直前のスナップショットを保ったままエラーを返す。
func (s *Service) LoadTrends(ctx context.Context) error {
	fetched, err := s.gateway.ListTrends(ctx)
	if err != nil {
		return fmt.Errorf("トレンドの取得に失敗しました: %w", err)
	}

	s.mu.Lock()
	s.keywords = fetched
	s.mu.Unlock()

	s.logger.Debug("トレンドを更新しました", slog.Int("count", len(fetched)))
	return nil
}

// Keywords は保持中のトレンド一覧のコピーを返す。
func (s *Service) Keywords() []model.TrendKeyword {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TrendKeyword(nil), s.keywords...)
}
