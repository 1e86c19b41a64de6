// Package metrics はPrometheusメトリクスの収集を提供する。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector は同期レイヤーのメトリクス収集インターフェース。
// 各コーディネーターとリアルタイムチャンネルから利用する。
type Collector interface {
	RecordPageFetched(rawCount, filteredOut int)
	RecordRealtimeMessage(kind string)
	RecordReconnect()
	RecordConnectFailure()
	RecordCommentPosted()
	RecordNotificationAcked()
}

// PrometheusCollector はPrometheusメトリクスを収集する実装。
type PrometheusCollector struct {
	pagesFetched      prometheus.Counter
	articlesReceived  prometheus.Counter
	articlesFiltered  prometheus.Counter
	realtimeMessages  *prometheus.CounterVec
	reconnects        prometheus.Counter
	connectFailures   prometheus.Counter
	commentsPosted    prometheus.Counter
	notificationsAcked prometheus.Counter
}

// NewPrometheusCollector は新しいPrometheusCollectorを生成し、
// 指定されたレジストリにメトリクスを登録する。
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devradar_feed_pages_fetched_total",
			Help: "フィードページ取得の合計数",
		}),
		articlesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devradar_feed_articles_received_total",
			Help: "フィルタ前に受信した記事の合計数",
		}),
		articlesFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devradar_feed_articles_filtered_total",
			Help: "ソースフィルタで除外された記事の合計数",
		}),
		realtimeMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devradar_realtime_messages_total",
			Help: "受信したリアルタイムメッセージの種別ごとの合計数",
		}, []string{"kind"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devradar_realtime_reconnects_total",
			Help: "リアルタイムチャンネルの再接続試行の合計数",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devradar_realtime_connect_failures_total",
			Help: "リアルタイムチャンネルの接続失敗の合計数",
		}),
		commentsPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devradar_comments_posted_total",
			Help: "投稿したコメントの合計数",
		}),
		notificationsAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devradar_notifications_acked_total",
			Help: "既読化した通知の合計数",
		}),
	}

	reg.MustRegister(
		c.pagesFetched,
		c.articlesReceived,
		c.articlesFiltered,
		c.realtimeMessages,
		c.reconnects,
		c.connectFailures,
		c.commentsPosted,
		c.notificationsAcked,
	)

	return c
}

// RecordPageFetched はフィードページ取得を記録する。
func (c *PrometheusCollector) RecordPageFetched(rawCount, filteredOut int) {
	c.pagesFetched.Inc()
	c.articlesReceived.Add(float64(rawCount))
	c.articlesFiltered.Add(float64(filteredOut))
}

// RecordRealtimeMessage は受信メッセージを種別付きで記録する。
func (c *PrometheusCollector) RecordRealtimeMessage(kind string) {
	c.realtimeMessages.WithLabelValues(kind).Inc()
}

// RecordReconnect は再接続試行を記録する。
func (c *PrometheusCollector) RecordReconnect() {
	c.reconnects.Inc()
}

// RecordConnectFailure は接続失敗を記録する。
func (c *PrometheusCollector) RecordConnectFailure() {
	c.connectFailures.Inc()
}

// RecordCommentPosted はコメント投稿を記録する。
func (c *PrometheusCollector) RecordCommentPosted() {
	c.commentsPosted.Inc()
}

// RecordNotificationAcked は通知の既読化を記録する。
func (c *PrometheusCollector) RecordNotificationAcked() {
	c.notificationsAcked.Inc()
}

// NopCollector は何も記録しないCollector実装。
// レジストリを持たない組み込み構成で使う。
type NopCollector struct{}

func (NopCollector) RecordPageFetched(rawCount, filteredOut int) {}
func (NopCollector) RecordRealtimeMessage(kind string)           {}
func (NopCollector) RecordReconnect()                            {}
func (NopCollector) RecordConnectFailure()                       {}
func (NopCollector) RecordCommentPosted()                        {}
func (NopCollector) RecordNotificationAcked()                    {}
