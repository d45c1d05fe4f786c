package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aliaskit"

// Metrics 监控指标
//
// 所有方法对 nil 接收者安全，未启用监控的组件可以直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	// 服务端 API 调用指标
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// 别名同步指标
	FetchesTotal      *prometheus.CounterVec
	StaleFetchesTotal prometheus.Counter
	AliasesLoaded     prometheus.Gauge
	MutationsTotal    *prometheus.CounterVec

	// 本地桥接 HTTP 指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	WebSocketClients    prometheus.Gauge
	PanicsTotal         prometheus.Counter
}

// NewMetrics 创建监控指标，使用独立的注册表，便于测试中重复创建。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of requests sent to the alias service",
			},
			[]string{"operation", "outcome"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Alias service request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alias_fetches_total",
				Help:      "Total number of alias page fetches by outcome",
			},
			[]string{"outcome"},
		),

		StaleFetchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alias_stale_fetches_total",
				Help:      "Total number of fetch results discarded after a reset or new search",
			},
		),

		AliasesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "aliases_loaded",
				Help:      "Number of aliases in the in-memory list",
			},
		),

		MutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alias_mutations_total",
				Help:      "Total number of alias mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests served by the local bridge",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Local bridge request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		WebSocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Number of connected observer clients",
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panics_total",
				Help:      "Total number of recovered panics",
			},
		),
	}
}

// RecordAPIRequest 记录一次服务端调用
func (m *Metrics) RecordAPIRequest(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.APIRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFetch 记录一次分页拉取
func (m *Metrics) RecordFetch(outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
}

// RecordStaleFetch 记录被丢弃的过期拉取结果
func (m *Metrics) RecordStaleFetch() {
	if m == nil {
		return
	}
	m.StaleFetchesTotal.Inc()
}

// RecordMutation 记录一次别名变更
func (m *Metrics) RecordMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// UpdateAliasesLoaded 更新内存列表长度
func (m *Metrics) UpdateAliasesLoaded(count int) {
	if m == nil {
		return
	}
	m.AliasesLoaded.Set(float64(count))
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateWebSocketClients 更新在线观察者数
func (m *Metrics) UpdateWebSocketClients(count int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Set(float64(count))
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
