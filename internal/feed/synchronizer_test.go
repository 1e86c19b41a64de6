package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/hitoshi/devradar/internal/metrics"
	"github.com/hitoshi/devradar/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- テスト用モック ---

// mockArticleGateway はArticleGatewayのモック。
type mockArticleGateway struct {
	listFn func(ctx context.Context, skip, limit int, category string) ([]model.Article, error)
	calls  []int // 呼び出しごとのskip値
	mu     sync.Mutex
}

func (m *mockArticleGateway) ListArticles(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
	m.mu.Lock()
	m.calls = append(m.calls, skip)
	m.mu.Unlock()
	if m.listFn != nil {
		return m.listFn(ctx, skip, limit, category)
	}
	return nil, nil
}

// fixedPrefs は固定トグルを返すPreferenceLoader。
type fixedPrefs struct {
	toggles SourceToggles
	err     error
}

func (p fixedPrefs) SourceToggles(ctx context.Context) (SourceToggles, error) {
	return p.toggles, p.err
}

func bothEnabled() fixedPrefs {
	return fixedPrefs{toggles: SourceToggles{IThome: true, Threads: true}}
}

// makePage はsource巡回つきのn件の記事ページを生成する。
func makePage(start, n int, sources ...string) []model.Article {
	page := make([]model.Article, n)
	for i := 0; i < n; i++ {
		source := ""
		if len(sources) > 0 {
			source = sources[i%len(sources)]
		}
		page[i] = model.Article{
			Title:  fmt.Sprintf("記事%d", start+i),
			URL:    fmt.Sprintf("https://example.com/%d", start+i),
			Source: source,
		}
	}
	return page
}

// TestSynchronizer_CursorAdvancesByRawCount はフィルタで間引かれても
// カーソルが生の受信件数で進むことを検証する。
func TestSynchronizer_CursorAdvancesByRawCount(t *testing.T) {
	// Threadsのみ有効: iThome記事はフィルタで消えるがカーソルは20進む
	gw := &mockArticleGateway{
		listFn: func(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
			return makePage(skip, 20, "iThome", "Threads"), nil
		},
	}
	prefs := fixedPrefs{toggles: SourceToggles{IThome: false, Threads: true}}
	s := NewSynchronizer(gw, prefs, 20, testLogger(), metrics.NopCollector{})

	if err := s.LoadNextPage(context.Background()); err != nil {
		t.Fatalf("LoadNextPage returned error: %v", err)
	}

	if got := s.Cursor(); got != 20 {
		t.Errorf("Cursor = %d, want 20", got)
	}
	// 交互に混じったiThome記事10件が除外される
	if got := len(s.Articles()); got != 10 {
		t.Errorf("articles count = %d, want 10", got)
	}

	if err := s.LoadNextPage(context.Background()); err != nil {
		t.Fatalf("second LoadNextPage returned error: %v", err)
	}
	if got := s.Cursor(); got != 40 {
		t.Errorf("Cursor after 2 pages = %d, want 40", got)
	}
	if gw.calls[1] != 20 {
		t.Errorf("second fetch skip = %d, want 20", gw.calls[1])
	}
}

// TestSynchronizer_UnknownSourceCountsAsDefault は未知ソースが既定側として
// 扱われ、両トグル有効時に1件も落ちないことを検証する（シナリオA相当）。
func TestSynchronizer_UnknownSourceCountsAsDefault(t *testing.T) {
	gw := &mockArticleGateway{
		listFn: func(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
			// 3件ごとにsource="unknown"
			page := makePage(skip, 20, "iThome", "Threads", "unknown")
			return page, nil
		},
	}
	s := NewSynchronizer(gw, bothEnabled(), 20, testLogger(), metrics.NopCollector{})

	if err := s.LoadNextPage(context.Background()); err != nil {
		t.Fatalf("LoadNextPage returned error: %v", err)
	}

	if got := len(s.Articles()); got != 20 {
		t.Errorf("articles count = %d, want 20", got)
	}
	if got := s.Cursor(); got != 20 {
		t.Errorf("Cursor = %d, want 20", got)
	}
}

// TestSynchronizer_EmptyPageSetsEndOfList は空ページで終端フラグが立ち、
// 以降のLoadNextPageがReset()まで何もしないことを検証する。
func TestSynchronizer_EmptyPageSetsEndOfList(t *testing.T) {
	var fetches int
	gw := &mockArticleGateway{
		listFn: func(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
			fetches++
			if fetches == 1 {
				return makePage(skip, 5, "iThome"), nil
			}
			return nil, nil
		},
	}
	s := NewSynchronizer(gw, bothEnabled(), 20, testLogger(), metrics.NopCollector{})
	ctx := context.Background()

	if err := s.LoadNextPage(ctx); err != nil {
		t.Fatalf("LoadNextPage returned error: %v", err)
	}
	if err := s.LoadNextPage(ctx); err != nil {
		t.Fatalf("LoadNextPage returned error: %v", err)
	}
	if !s.EndOfList() {
		t.Fatal("EndOfList = false after empty page, want true")
	}

	// 終端後の呼び出しはフェッチを発行しない
	for i := 0; i < 3; i++ {
		if err := s.LoadNextPage(ctx); err != nil {
			t.Fatalf("LoadNextPage after end returned error: %v", err)
		}
	}
	if fetches != 2 {
		t.Errorf("fetch count = %d, want 2", fetches)
	}

	// Resetで解除される
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if fetches != 3 {
		t.Errorf("fetch count after Reset = %d, want 3", fetches)
	}
}

// TestSynchronizer_ConcurrentLoad_SecondCallIgnored は取得中の多重呼び出しが
// キューに積まれず無視されることを検証する。
func TestSynchronizer_ConcurrentLoad_SecondCallIgnored(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var fetches int
	var mu sync.Mutex

	gw := &mockArticleGateway{
		listFn: func(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
			mu.Lock()
			fetches++
			first := fetches == 1
			mu.Unlock()
			if first {
				close(started)
				<-release
			}
			return makePage(skip, 20, "iThome"), nil
		},
	}
	s := NewSynchronizer(gw, bothEnabled(), 20, testLogger(), metrics.NopCollector{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.LoadNextPage(ctx)
	}()

	<-started
	// 1回目が進行中の間の呼び出しは即座に戻り、フェッチを発行しない
	if err := s.LoadNextPage(ctx); err != nil {
		t.Fatalf("concurrent LoadNextPage returned error: %v", err)
	}
	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if fetches != 1 {
		t.Errorf("fetch count = %d, want 1", fetches)
	}
}

// TestSynchronizer_FetchError_ReturnsErrorAndKeepsCursor は取得失敗時に
// エラーが返り、カーソルと終端フラグが変化しないことを検証する。
func TestSynchronizer_FetchError_ReturnsErrorAndKeepsCursor(t *testing.T) {
	transportErr := errors.New("connection refused")
	var fail bool
	gw := &mockArticleGateway{
		listFn: func(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
			if fail {
				return nil, transportErr
			}
			return makePage(skip, 20, "iThome"), nil
		},
	}
	s := NewSynchronizer(gw, bothEnabled(), 20, testLogger(), metrics.NopCollector{})
	ctx := context.Background()

	if err := s.LoadNextPage(ctx); err != nil {
		t.Fatalf("LoadNextPage returned error: %v", err)
	}

	fail = true
	err := s.LoadNextPage(ctx)
	if !errors.Is(err, transportErr) {
		t.Errorf("error = %v, want wrapped %v", err, transportErr)
	}
	if got := s.Cursor(); got != 20 {
		t.Errorf("Cursor after failure = %d, want 20", got)
	}
	if s.EndOfList() {
		t.Error("EndOfList = true after failure, want false")
	}

	// 次の呼び出しが事実上のリトライになる
	fail = false
	if err := s.LoadNextPage(ctx); err != nil {
		t.Fatalf("retry LoadNextPage returned error: %v", err)
	}
	if got := s.Cursor(); got != 40 {
		t.Errorf("Cursor after retry = %d, want 40", got)
	}
}

// TestSynchronizer_Reset_ClearsList はResetでリストとカーソルが初期化されることを検証する。
func TestSynchronizer_Reset_ClearsList(t *testing.T) {
	gw := &mockArticleGateway{
		listFn: func(ctx context.Context, skip, limit int, category string) ([]model.Article, error) {
			return makePage(skip, 20, "iThome"), nil
		},
	}
	s := NewSynchronizer(gw, bothEnabled(), 20, testLogger(), metrics.NopCollector{})
	ctx := context.Background()

	_ = s.LoadNextPage(ctx)
	_ = s.LoadNextPage(ctx)
	if got := len(s.Articles()); got != 40 {
		t.Fatalf("articles count = %d, want 40", got)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if got := len(s.Articles()); got != 20 {
		t.Errorf("articles count after Reset = %d, want 20", got)
	}
	if got := s.Cursor(); got != 20 {
		t.Errorf("Cursor after Reset = %d, want 20", got)
	}
}

// TestSourceAllowed はソース判定のテーブルテスト。
func TestSourceAllowed(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		toggles SourceToggles
		want    bool
	}{
		{"ithome enabled", "iThome", SourceToggles{IThome: true, Threads: true}, true},
		{"ithome disabled", "iThome", SourceToggles{IThome: false, Threads: true}, false},
		{"threads enabled", "Threads", SourceToggles{IThome: true, Threads: true}, true},
		{"threads variant", "threads.net", SourceToggles{IThome: false, Threads: true}, true},
		{"threads disabled", "Threads", SourceToggles{IThome: true, Threads: false}, false},
		{"unknown counts as default source", "unknown", SourceToggles{IThome: true, Threads: true}, true},
		{"empty source counts as default source", "", SourceToggles{IThome: true, Threads: true}, true},
		{"unknown dropped when default disabled", "unknown", SourceToggles{IThome: false, Threads: true}, false},
		{"both disabled drops everything", "iThome", SourceToggles{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sourceAllowed(tt.source, tt.toggles); got != tt.want {
				t.Errorf("sourceAllowed(%q, %+v) = %v, want %v", tt.source, tt.toggles, got, tt.want)
			}
		})
	}
}
