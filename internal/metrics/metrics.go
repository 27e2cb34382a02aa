// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// 集約ドライバ・APIクライアント・画像ローダーから利用する。
type Recorder interface {
	RecordPageFetch(collection, result string, duration time.Duration)
	RecordItemsAppended(collection string, count int)
	RecordAssetFallback(reason string)
	RecordUpstreamStatus(statusCode int)
	SetActiveViews(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	pageFetch      *prometheus.CounterVec
	pageLatency    prometheus.Histogram
	itemsAppended  *prometheus.CounterVec
	assetFallback  *prometheus.CounterVec
	upstreamStatus *prometheus.CounterVec
	activeViews    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pageFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "musa_page_fetch_total",
			Help: "コレクション・結果別のページ取得数",
		}, []string{"collection", "result"}),
		pageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "musa_page_fetch_latency_seconds",
			Help:    "ページ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "musa_items_appended_total",
			Help: "描画先に追加されたアイテムの合計数",
		}, []string{"collection"}),
		assetFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "musa_asset_fallback_total",
			Help: "画像取得に失敗してプレースホルダーを使った回数",
		}, []string{"reason"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "musa_upstream_status_total",
			Help: "コンテンツAPIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		activeViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "musa_active_views",
			Help: "生存中のビュー数",
		}),
	}

	reg.MustRegister(
		c.pageFetch,
		c.pageLatency,
		c.itemsAppended,
		c.assetFallback,
		c.upstreamStatus,
		c.activeViews,
	)

	return c
}

// RecordPageFetch はページ取得の結果とレイテンシを記録する。
func (c *Collector) RecordPageFetch(collection, result string, duration time.Duration) {
	c.pageFetch.WithLabelValues(collection, result).Inc()
	c.pageLatency.Observe(duration.Seconds())
}

// RecordItemsAppended は追加されたアイテム数を記録する。
func (c *Collector) RecordItemsAppended(collection string, count int) {
	c.itemsAppended.WithLabelValues(collection).Add(float64(count))
}

// RecordAssetFallback は画像のフォールバックを記録する。
func (c *Collector) RecordAssetFallback(reason string) {
	c.assetFallback.WithLabelValues(reason).Inc()
}

// RecordUpstreamStatus はコンテンツAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetActiveViews は生存中のビュー数を設定する。
func (c *Collector) SetActiveViews(n int) {
	c.activeViews.Set(float64(n))
}

var _ Recorder = (*Collector)(nil)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
