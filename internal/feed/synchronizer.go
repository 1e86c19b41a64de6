// Package feed は記事フィードの増分同期を提供する。
// ページングカーソルの管理、ページのマージ、ローカルのソースフィルタ適用を含む。
package feed

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/hitoshi/devradar/internal/metrics"
	"github.com/hitoshi/devradar/internal/model"
)

// DefaultPageSize は1ページあたりの記事数の既定値。
const DefaultPageSize = 20

// ArticleGateway は記事ページ取得のインターフェース。
type ArticleGateway interface {
	// ListArticles は指定範囲の記事ページを取得する。
	ListArticles(ctx context.Context, skip, limit int, category string) ([]model.Article, error)
}

// Synchronizer はページングカーソルを所有し、取得ページをマージして
// ソースフィルタ適用済みの記事リストを公開する。
//
// カーソルはネットワークから受信した生の件数分だけ進める。フィルタを
// 通過した件数ではない。フィルタで間引かれてもサーバー側のページングと
// カーソルがずれないことを、ページが満たされないことより優先する。
type Synchronizer struct {
	gateway  ArticleGateway
	prefs    PreferenceLoader
	logger   *slog.Logger
	metrics  metrics.Collector
	pageSize int

	mu        sync.Mutex
	articles  []model.Article
	skip      int
	endOfList bool
	loading   bool
}

// NewSynchronizer はSynchronizerの新しいインスタンスを生成する。
// pageSizeが0以下の場合はDefaultPageSizeを使用する。
func NewSynchronizer(gateway ArticleGateway, prefs PreferenceLoader, pageSize int, logger *slog.Logger, collector metrics.Collector) *Synchronizer {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Synchronizer{
		gateway:  gateway,
		prefs:    prefs,
		logger:   logger,
		metrics:  collector,
		pageSize: pageSize,
	}
}

// Reset はカーソルと終端フラグをクリアし、先頭ページを読み直す。
func (s *Synchronizer) Reset(ctx context.Context) error {
	return s.loadPage(ctx, true)
}

// LoadNextPage は内部カーソルを使って次のページを取得し、
// フィルタ通過分を表示リストに追記する。
// 終端到達後はReset()されるまで何もしない。
// 取得中の多重呼び出しはキューに積まず無視する。
func (s *Synchronizer) LoadNextPage(ctx context.Context) error {
	return s.loadPage(ctx, false)
}

func (s *Synchronizer) loadPage(ctx context.Context, reset bool) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	if !reset && s.endOfList {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	if reset {
		s.skip = 0
		s.endOfList = false
		s.articles = nil
	}
	skip := s.skip
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	toggles, err := s.prefs.SourceToggles(ctx)
	if err != nil {
		// トグルが読めなくても記事を落とさない。両ソース有効として続行する。
		s.logger.Warn("ソーストグルの読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
		toggles = SourceToggles{IThome: true, Threads: true}
	}

	raw, err := s.gateway.ListArticles(ctx, skip, s.pageSize, "")
	if err != nil {
		// 失敗したページは空として扱うが終端にはしない。
		// カーソルも進めないため、次の呼び出しが事実上のリトライになる。
		s.logger.Error("記事ページの取得に失敗しました",
			slog.Int("skip", skip),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(raw) == 0 {
		s.endOfList = true
		return nil
	}

	filtered := lo.Filter(raw, func(a model.Article, _ int) bool {
		return sourceAllowed(a.Source, toggles)
	})

	s.articles = append(s.articles, filtered...)
	// 生の受信件数でカーソルを進める（フィルタ通過件数ではない）
	s.skip += len(raw)

	s.metrics.RecordPageFetched(len(raw), len(raw)-len(filtered))

	return nil
}

// sourceAllowed は記事のソースが現在のトグルで表示対象かを判定する。
// 未知のソースは既定で有効なソース（iThome側）に属するものとして扱い、
// 両トグル有効時に黙って消えないようにする。
func sourceAllowed(source string, toggles SourceToggles) bool {
	src := strings.ToLower(source)
	unknown := src != "" && !strings.Contains(src, "ithome") && !strings.Contains(src, "thread")

	allowIThome := toggles.IThome && (strings.Contains(src, "ithome") || src == "" || unknown)
	allowThreads := toggles.Threads && strings.Contains(src, "thread")

	return allowIThome || allowThreads
}

// Articles は現在の表示リストのスナップショットを返す。
func (s *Synchronizer) Articles() []model.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Article, len(s.articles))
	copy(out, s.articles)
	return out
}

// EndOfList は終端に到達しているかを返す。
func (s *Synchronizer) EndOfList() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endOfList
}

// Cursor は次のページ取得に使うskip値を返す。
func (s *Synchronizer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip
}
