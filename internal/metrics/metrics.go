// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ライブ配信・ミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignup()
	RecordLogin(success bool)
	RecordCommunityCreated()
	RecordMessageSent()
	RecordSnapshotDelivered()
	SubscriptionOpened()
	SubscriptionClosed()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signups            prometheus.Counter
	logins             *prometheus.CounterVec
	communitiesCreated prometheus.Counter
	messagesSent       prometheus.Counter
	snapshots          prometheus.Counter
	liveSubscriptions  prometheus.Gauge
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nakama_signups_total",
			Help: "サインアップ完了の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nakama_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		communitiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nakama_communities_created_total",
			Help: "作成されたコミュニティの合計数",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nakama_messages_sent_total",
			Help: "送信されたチャットメッセージの合計数",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nakama_snapshots_delivered_total",
			Help: "購読者に配信したメッセージスナップショットの合計数",
		}),
		liveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nakama_live_subscriptions",
			Help: "現在アクティブなライブ購読数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nakama_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.signups,
		c.logins,
		c.communitiesCreated,
		c.messagesSent,
		c.snapshots,
		c.liveSubscriptions,
		c.httpStatus,
	)

	return c
}

// RecordSignup はサインアップ完了を記録する。
func (c *Collector) RecordSignup() {
	c.signups.Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordCommunityCreated はコミュニティ作成を記録する。
func (c *Collector) RecordCommunityCreated() {
	c.communitiesCreated.Inc()
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordSnapshotDelivered はスナップショット配信を記録する。
func (c *Collector) RecordSnapshotDelivered() {
	c.snapshots.Inc()
}

// SubscriptionOpened はライブ購読数を1増やす。
func (c *Collector) SubscriptionOpened() {
	c.liveSubscriptions.Inc()
}

// SubscriptionClosed はライブ購読数を1減らす。
func (c *Collector) SubscriptionClosed() {
	c.liveSubscriptions.Dec()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
