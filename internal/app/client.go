// Package app はクライアント全体の依存関係を組み立てるコンポジションルート。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/devradar/internal/comment"
	"github.com/hitoshi/devradar/internal/config"
	"github.com/hitoshi/devradar/internal/database"
	"github.com/hitoshi/devradar/internal/favorite"
	"github.com/hitoshi/devradar/internal/feed"
	"github.com/hitoshi/devradar/internal/gateway"
	"github.com/hitoshi/devradar/internal/logger"
	"github.com/hitoshi/devradar/internal/metrics"
	"github.com/hitoshi/devradar/internal/model"
	"github.com/hitoshi/devradar/internal/notification"
	"github.com/hitoshi/devradar/internal/realtime"
	"github.com/hitoshi/devradar/internal/repository"
	"github.com/hitoshi/devradar/internal/session"
	"github.com/hitoshi/devradar/internal/trend"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Client はセッションごとに1つ生成される同期レイヤーの入口。
// ローカルストア、APIゲートウェイ、リアルタイムチャンネルと
// 各コーディネーターをワイヤリングして保持する。
type Client struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics metrics.Collector

	db      *sqlx.DB
	gateway *gateway.Client
	channel *realtime.Channel

	Session       *session.Manager
	Feed          *feed.Synchronizer
	Preferences   *feed.Preferences
	Favorites     *favorite.Coordinator
	Comments      *comment.Assembler
	Notifications *notification.Coordinator
	Trends        *trend.Service
}

// Open は全依存関係をワイヤリングしたClientを生成する。
// ローカルストアを開いてマイグレーションを適用するが、
// リアルタイム接続はStart()が呼ばれるまで開かない。
func Open(cfg *config.Config, log *slog.Logger, collector metrics.Collector) (*Client, error) {
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	// 1. ローカルストア
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := database.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("ローカルストアを開きました", slog.String("path", cfg.DatabasePath))

	// 2. リポジトリ
	userRepo := repository.NewSQLiteUserRepo(db)
	favoriteRepo := repository.NewSQLiteFavoriteRepo(db)
	settingsRepo := repository.NewSQLiteSettingsRepo(db)

	// 3. APIゲートウェイ
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	gw := gateway.NewClient(httpClient, cfg.APIBaseURL, cfg.RequestsPerSecond, log)

	// 4. コーディネーター
	prefs := feed.NewPreferences(settingsRepo)
	c := &Client{
		cfg:           cfg,
		logger:        log,
		metrics:       collector,
		db:            db,
		gateway:       gw,
		Session:       session.NewManager(userRepo, settingsRepo, log),
		Feed:          feed.NewSynchronizer(gw, prefs, cfg.PageSize, log, collector),
		Preferences:   prefs,
		Favorites:     favorite.NewCoordinator(favoriteRepo, log),
		Comments:      comment.NewAssembler(gw, log, collector),
		Notifications: notification.NewCoordinator(gw, log, collector),
		Trends:        trend.NewService(gw, log),
	}

	// 5. リアルタイムチャンネル
	// ハンドラは読み取りゴルーチン上で呼ばれる
	c.channel = realtime.NewChannel(cfg.WSBaseURL, cfg.ReconnectDelay, c.handleRealtime, log, collector)

	return c, nil
}

// Start はゲスト（または復元済みセッション）のアクターIDで
// リアルタイム接続を開く。接続失敗時もチャンネル自身が再接続を
// 予約するためエラーにはしない。
func (c *Client) Start(ctx context.Context) error {
	if _, err := c.Session.EnsureGuestID(ctx); err != nil {
		return err
	}

	if err := c.channel.Connect(c.Session.ActorID()); err != nil {
		c.logger.Warn("リアルタイム接続の初回確立に失敗しました。再接続します",
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// SignIn はユーザーセッションに切り替え、そのユーザーのデータを読み込む。
// お気に入りの読み込みとリアルタイム購読の切り替えは失敗するとエラーになるが、
// 通知一覧の読み込み失敗はサインイン自体を妨げない。
func (c *Client) SignIn(ctx context.Context, user model.User) error {
	if err := c.Session.SignIn(ctx, user); err != nil {
		return err
	}

	userID := c.Session.ActorID()

	if err := c.Favorites.LoadFavorites(ctx, userID); err != nil {
		return err
	}

	if err := c.channel.Connect(userID); err != nil {
		return err
	}

	if err := c.Notifications.LoadNotifications(ctx, userID); err != nil {
		c.logger.Warn("サインイン直後の通知読み込みに失敗しました",
			slog.Int("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// SignOut はゲストセッションに戻り、ユーザー固有の状態をすべて破棄する。
// リアルタイム購読はゲストIDで開き直される。
func (c *Client) SignOut(ctx context.Context) error {
	c.Session.SignOut()
	c.Favorites.ClearFavorites()
	c.Notifications.Clear()
	c.Comments.ClearCurrentComments()

	return c.channel.Connect(c.Session.ActorID())
}

// UpdateAvatar は現在のユーザーのアバター画像をアップロードし、
// 返された保存先URLをローカルプロフィールに反映する。
func (c *Client) UpdateAvatar(ctx context.Context, filename string, file io.Reader) (string, error) {
	user := c.Session.CurrentUser()
	if user == nil {
		return "", model.ErrNotSignedIn
	}

	avatarURL, err := c.gateway.UploadAvatar(ctx, user.ID, filename, file)
	if err != nil {
		return "", err
	}

	if err := c.Session.UpdateAvatarURL(ctx, avatarURL); err != nil {
		return "", err
	}

	return avatarURL, nil
}

// ChannelState はリアルタイムチャンネルの現在の接続状態を返す。
func (c *Client) ChannelState() realtime.State {
	return c.channel.State()
}

// Close はリアルタイム接続とローカルストアを同期的に解放する。
func (c *Client) Close() error {
	c.channel.Close()
	return c.db.Close()
}

// handleRealtime はリアルタイムイベントを種類別に各コーディネーターへ配送する。
// チャンネルの読み取りゴルーチン上で呼ばれるため、ゲートウェイ呼び出しには
// リクエストタイムアウト付きの独立したコンテキストを使う。
func (c *Client) handleRealtime(msg realtime.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout())
	defer cancel()

	switch msg.Kind {
	case realtime.KindNotification:
		if err := c.Notifications.LoadNotifications(ctx, c.Session.ActorID()); err != nil {
			c.logger.Warn("プッシュ通知後の一覧再取得に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		c.Notifications.NotifyArrival(model.Notification{
			UserID:     c.Session.ActorID(),
			Message:    msg.Message,
			ArticleURL: msg.ArticleURL,
			Timestamp:  time.Now().UnixMilli(),
		})

	case realtime.KindCommentUpdate:
		c.Comments.HandleRealtime(ctx, msg)
	}
}

func (c *Client) requestTimeout() time.Duration {
	if c.cfg.RequestTimeout > 0 {
		return c.cfg.RequestTimeout
	}
	return 10 * time.Second
}
