package realtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/devradar/internal/metrics"
)

// State はチャンネルの接続状態を表す。
type State string

const (
	// StateDisconnected は未接続状態。
	StateDisconnected State = "disconnected"
	// StateConnecting は接続試行中の状態。
	StateConnecting State = "connecting"
	// StateConnected は接続確立済みの状態。
	StateConnected State = "connected"
	// StateFailed は直近の接続試行が失敗した状態。再接続待ちを含む。
	StateFailed State = "failed"
)

// Handler は受信メッセージを処理するコールバック。
// トランスポートの読み取りゴルーチン上で呼ばれるため、
// 共有状態の更新は各コーディネーター自身のロックで行うこと。
type Handler func(Message)

// Channel はアクターごとのエンドポイントに張る永続WebSocket接続。
// 切断時は対象アクターIDが設定されている限り固定遅延で無期限に再接続する。
// Close()は対象IDを解除し、保留中の再接続も取り消す。
type Channel struct {
	dialer  *websocket.Dialer
	baseURL string
	delay   time.Duration
	handler Handler
	logger  *slog.Logger
	metrics metrics.Collector

	mu             sync.Mutex
	state          State
	actorID        int
	hasActor       bool
	conn           *websocket.Conn
	loopDone       chan struct{}
	reconnectTimer *time.Timer
}

// NewChannel はChannelの新しいインスタンスを生成する。接続はまだ開かない。
// delayが0以下の場合は既定の3秒を使用する。
func NewChannel(baseURL string, delay time.Duration, handler Handler, logger *slog.Logger, collector metrics.Collector) *Channel {
	if delay <= 0 {
		delay = 3 * time.Second
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Channel{
		dialer:  websocket.DefaultDialer,
		baseURL: baseURL,
		delay:   delay,
		handler: handler,
		logger:  logger,
		metrics: collector,
		state:   StateDisconnected,
	}
}

// State は現在の接続状態を返す。
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActorID は現在の接続対象のアクターIDを返す。対象がない場合は(0, false)。
func (c *Channel) ActorID() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actorID, c.hasActor
}

// Connect は指定アクターIDで接続を開く。
// 同一IDで既に接続済み（または接続試行中）の場合は何もしない。
// 別IDで接続中の場合は先にその接続を閉じてから新しいIDで開き直す。
// ゲストとログインユーザーの切り替えで前の購読を漏らさないための挙動。
func (c *Channel) Connect(actorID int) error {
	c.mu.Lock()
	if c.hasActor && c.actorID == actorID &&
		(c.state == StateConnected || c.state == StateConnecting) {
		c.mu.Unlock()
		return nil
	}

	oldConn, oldDone := c.detachLocked()
	c.actorID = actorID
	c.hasActor = true
	c.state = StateConnecting
	c.mu.Unlock()

	closeConn(oldConn, oldDone)

	return c.dial(actorID)
}

// Close は接続と保留中の再接続を解放する。
// 読み取りゴルーチンの終了を待ってから返るため、呼び出し後に
// バックグラウンド処理が残ることはない。
func (c *Channel) Close() {
	c.mu.Lock()
	c.hasActor = false
	c.state = StateDisconnected
	conn, done := c.detachLocked()
	c.mu.Unlock()

	closeConn(conn, done)
}

// detachLocked は現在の接続と読み取りループを切り離して返す。
// 呼び出し側がロック外でクローズと終了待ちを行う。
func (c *Channel) detachLocked() (*websocket.Conn, chan struct{}) {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	done := c.loopDone
	c.conn = nil
	c.loopDone = nil
	return conn, done
}

func closeConn(conn *websocket.Conn, done chan struct{}) {
	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

// dial は指定アクターIDのエンドポイントに接続し、読み取りループを開始する。
func (c *Channel) dial(actorID int) error {
	endpoint := fmt.Sprintf("%s/ws/%d", c.baseURL, actorID)

	conn, resp, err := c.dialer.Dial(endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.metrics.RecordConnectFailure()
		c.logger.Error("リアルタイム接続に失敗しました",
			slog.Int("actor_id", actorID),
			slog.String("error", err.Error()),
		)
		c.mu.Lock()
		if c.hasActor && c.actorID == actorID {
			c.state = StateFailed
			c.scheduleReconnectLocked(actorID)
		}
		c.mu.Unlock()
		return fmt.Errorf("リアルタイム接続に失敗しました: %w", err)
	}

	c.mu.Lock()
	// 接続確立までの間にClose()またはID切り替えが走った場合は破棄する
	if !c.hasActor || c.actorID != actorID {
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateConnected
	done := make(chan struct{})
	c.loopDone = done
	c.mu.Unlock()

	c.logger.Info("リアルタイム接続を確立しました", slog.Int("actor_id", actorID))

	go c.readLoop(conn, done)

	return nil
}

// readLoop は接続からフレームを読み続け、デコードしてハンドラに渡す。
// 読み取りエラーで終了し、対象アクターIDがまだ設定されていれば再接続を予約する。
func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		msg := ParseMessage(data)
		c.metrics.RecordRealtimeMessage(string(msg.Kind))
		if msg.Kind == KindUnknown {
			c.logger.Warn("分類できないリアルタイムメッセージを受信しました",
				slog.String("raw", msg.Raw),
			)
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Close()やConnect()で既に切り離されている場合は何もしない
	if c.conn != conn {
		return
	}
	c.conn = nil
	c.loopDone = nil
	c.state = StateDisconnected
	if c.hasActor {
		c.logger.Warn("リアルタイム接続が切断されました。再接続します",
			slog.Int("actor_id", c.actorID),
			slog.Duration("delay", c.delay),
		)
		c.scheduleReconnectLocked(c.actorID)
	}
}

// scheduleReconnectLocked は固定遅延後の再接続を予約する。
// 予約時点のアクターIDと実行時点のアクターIDが一致する場合のみ接続する。
func (c *Channel) scheduleReconnectLocked(actorID int) {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		if !c.hasActor || c.actorID != actorID || c.conn != nil {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		c.metrics.RecordReconnect()
		_ = c.dial(actorID)
	})
}
