// Package comment は記事コメントのスレッド組み立て機能を提供する。
// フラットなコメントリストの取得、トップレベル/返信への分割、
// 親指定つき投稿、リアルタイムイベントによる再取得を含む。
package comment

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/hitoshi/devradar/internal/metrics"
	"github.com/hitoshi/devradar/internal/model"
	"github.com/hitoshi/devradar/internal/realtime"
)

// Gateway はコメントの取得/投稿のインターフェース。
type Gateway interface {
	// ListComments は指定記事の全コメントをフラットなリストで取得する。
	ListComments(ctx context.Context, articleURL string) ([]model.Comment, error)

	// CreateComment はコメントを投稿し、保存されたコメントを返す。
	CreateComment(ctx context.Context, comment model.Comment) (model.Comment, error)
}

// Thread は表示用に分割されたコメントスレッドを表す。
// 全コメントはトップレベルか、いずれか1つの返信グループにちょうど1回現れる。
type Thread struct {
	// TopLevel はトップレベルコメント。新しい順。
	TopLevel []model.Comment
	// Replies は親コメントIDごとの返信グループ。グループ内は取得順（古い順）。
	Replies map[string][]model.Comment
}

// Assembler はコメントスレッドの取得と組み立てを行う。
//
// 「現在フォーカス中の記事URL」を1つだけ保持し、リアルタイムの
// コメント更新イベントはフォーカスと一致する場合のみ再取得を起こす。
// 記事画面を離れるときは必ずClearCurrentComments()を呼ぶこと。
// 呼ばないと古いフォーカスが誤った再取得を引き起こす。
type Assembler struct {
	gateway Gateway
	logger  *slog.Logger
	metrics metrics.Collector

	mu       sync.Mutex
	focusURL string
	comments []model.Comment
}

// NewAssembler はAssemblerの新しいインスタンスを生成する。
func NewAssembler(gateway Gateway, logger *slog.Logger, collector metrics.Collector) *Assembler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Assembler{
		gateway: gateway,
		logger:  logger,
		metrics: collector,
	}
}

// LoadComments は指定記事のコメント集合を取得し直し、
// その記事URLを現在のフォーカスとして記録する。
// 取得失敗時は空集合に退化しエラーを返す。
func (a *Assembler) LoadComments(ctx context.Context, articleURL string) error {
	a.mu.Lock()
	a.focusURL = articleURL
	a.mu.Unlock()

	comments, err := a.gateway.ListComments(ctx, articleURL)
	if err != nil {
		a.logger.Error("コメント一覧の取得に失敗しました",
			slog.String("article_url", articleURL),
			slog.String("error", err.Error()),
		)
		comments = nil
	}

	a.mu.Lock()
	// 取得中にフォーカスが移っていたら古い結果は捨てる
	if a.focusURL == articleURL {
		a.comments = comments
	}
	a.mu.Unlock()

	return err
}

// ClearCurrentComments はフォーカスを解除しコメント集合を空にする。
func (a *Assembler) ClearCurrentComments() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.focusURL = ""
	a.comments = nil
}

// AddComment はコメントを構築して投稿し、投稿後に全件を再取得する。
// 楽観的なローカル挿入はせず、サーバーとの往復を真実とする。
// parentIDを指定する場合、その親は同一記事のトップレベルコメントで
// なければならない（返信への返信は拒否する）。
func (a *Assembler) AddComment(ctx context.Context, articleURL, content string, user *model.User, parentID string) (model.Comment, error) {
	if user == nil {
		return model.Comment{}, model.ErrNotSignedIn
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, model.NewEmptyContentError()
	}

	if parentID != "" {
		if err := a.validateParent(ctx, articleURL, parentID); err != nil {
			return model.Comment{}, err
		}
	}

	comment := model.Comment{
		ID:         uuid.New().String(),
		ArticleURL: articleURL,
		UserID:     user.ID,
		UserName:   user.Name,
		Content:    content,
		Timestamp:  time.Now().UnixMilli(),
		ParentID:   parentID,
	}

	stored, err := a.gateway.CreateComment(ctx, comment)
	if err != nil {
		return model.Comment{}, err
	}

	a.metrics.RecordCommentPosted()

	// 往復完了後の再取得が表示状態の真実の源
	if err := a.LoadComments(ctx, articleURL); err != nil {
		return stored, err
	}

	return stored, nil
}

// validateParent は返信先がその記事のトップレベルコメントであることを確認する。
// フォーカス中の記事であればキャッシュ済み集合を使い、そうでなければ取得する。
func (a *Assembler) validateParent(ctx context.Context, articleURL, parentID string) error {
	a.mu.Lock()
	comments := a.comments
	focused := a.focusURL == articleURL
	a.mu.Unlock()

	if !focused {
		fetched, err := a.gateway.ListComments(ctx, articleURL)
		if err != nil {
			return err
		}
		comments = fetched
	}

	parent, found := lo.Find(comments, func(c model.Comment) bool {
		return c.ID == parentID
	})
	if !found || !parent.IsTopLevel() {
		return model.NewInvalidParentError(parentID)
	}

	return nil
}

// HandleRealtime はリアルタイムイベントを処理する。
// コメント更新イベントが現在のフォーカス記事に言及している場合のみ再取得する。
func (a *Assembler) HandleRealtime(ctx context.Context, msg realtime.Message) {
	if msg.Kind != realtime.KindCommentUpdate {
		return
	}

	a.mu.Lock()
	focus := a.focusURL
	a.mu.Unlock()

	if focus == "" || !msg.MatchesArticle(focus) {
		return
	}

	if err := a.LoadComments(ctx, focus); err != nil {
		a.logger.Warn("リアルタイムイベントによるコメント再取得に失敗しました",
			slog.String("article_url", focus),
			slog.String("error", err.Error()),
		)
	}
}

// Focus は現在フォーカス中の記事URLを返す。フォーカスがない場合は空文字列。
func (a *Assembler) Focus() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.focusURL
}

// Comments は現在のフラットなコメント集合のスナップショットを返す。
func (a *Assembler) Comments() []model.Comment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Comment, len(a.comments))
	copy(out, a.comments)
	return out
}

// Thread は現在のコメント集合を表示用に分割する。
// トップレベルは新しい順、返信グループ内は取得順（古い順）。
func (a *Assembler) Thread() Thread {
	comments := a.Comments()

	topLevel := lo.Filter(comments, func(c model.Comment, _ int) bool {
		return c.IsTopLevel()
	})
	sort.SliceStable(topLevel, func(i, j int) bool {
		return topLevel[i].Timestamp > topLevel[j].Timestamp
	})

	replies := lo.GroupBy(
		lo.Filter(comments, func(c model.Comment, _ int) bool {
			return !c.IsTopLevel()
		}),
		func(c model.Comment) string { return c.ParentID },
	)

	return Thread{TopLevel: topLevel, Replies: replies}
}
