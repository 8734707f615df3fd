// Package metrics Prometheus 指标定义
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fast_note_anchor"

var (
	// AnchorOperations 锚定操作计数, result 取值 success / 错误码
	AnchorOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anchor_operations_total",
		Help:      "Anchor operations by action and result.",
	}, []string{"action", "result"})

	// AnchorDuration 锚定耗时(含钱包签名等待)
	AnchorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "anchor_duration_seconds",
		Help:      "Anchor operation latency including wallet interaction.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"action"})

	// VerificationResults 校验结果计数
	VerificationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_results_total",
		Help:      "Transaction verification outcomes by resulting status.",
	}, []string{"status"})

	// PendingCreates 未完成的两阶段创建数
	PendingCreates = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_creates",
		Help:      "Notes persisted but not yet anchored.",
	})

	// HTTPRequests 控制接口请求计数
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Control API requests by method, route and status.",
	}, []string{"method", "route", "status"})

	// HTTPDuration 控制接口耗时
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Control API latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// BridgePages 已连接的钱包桥接页面数
	BridgePages = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bridge_pages",
		Help:      "Wallet bridge pages currently connected.",
	})
)

// ObserveAnchor 记录一次锚定操作
func ObserveAnchor(action, result string, started time.Time) {
	AnchorOperations.WithLabelValues(action, result).Inc()
	AnchorDuration.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

// ObserveHTTP 记录一次控制接口请求
func ObserveHTTP(method, route string, status int, cost time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(cost.Seconds())
}
