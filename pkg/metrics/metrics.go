// Package metrics 提供 Prometheus 指标.
//
// 应用自身的指标注册在独立的 registry 上；启用 runtime_metrics 时，
// 默认 registry（Go 运行时、进程以及 GORM 连接池指标）一并暴露.
//
// Example:
//
//	if err := metrics.Init(cfg.Metrics); err != nil {
//		log.Fatal(err)
//	}
//
//	metrics.IngestTotal.WithLabelValues(".docx", "ok").Inc()
package metrics

import (
	"net/http"
	"net/http/pprof"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/carevault/pkg/configs"
)

const namespace = configs.AppName

var (
	// RequestCounter HTTP 请求计数，route 使用 gin 的路由模板，避免病历号进入标签.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration HTTP 请求耗时.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// InFlightRequests 正在处理的请求数.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// IngestTotal 文档入库次数，result 取 ok / validation / unsupported / invalid / error.
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Number of document ingest attempts",
		},
		[]string{"format", "result"},
	)

	// ExtractDuration 文本提取耗时.
	ExtractDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Time spent extracting text from documents",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"format"},
	)

	// DecryptFailures 解密失败次数，reason 取 decode / padding / custody.
	DecryptFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypt_failures_total",
			Help:      "Number of failed payload decryptions",
		},
		[]string{"reason"},
	)

	// RecordEvents 已发布的病历事件.
	RecordEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_events_total",
			Help:      "Number of record events published",
		},
		[]string{"action"},
	)

	// PayloadAuditFailures 最近一次密文巡检中无法解密的记录数.
	PayloadAuditFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "payload_audit_failures",
			Help:      "Records whose payload failed to decrypt during the last audit",
		},
	)

	// OrphanBlobsRemoved 孤儿文档清理累计删除数.
	OrphanBlobsRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_blobs_removed_total",
			Help:      "Number of stored documents removed because no record references them",
		},
	)

	registry   = prometheus.NewRegistry()
	registerer prometheus.Registerer = registry

	initOnce sync.Once
	initErr  error
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RequestCounter, RequestDuration, InFlightRequests,
		IngestTotal, ExtractDuration, DecryptFailures, RecordEvents,
		PayloadAuditFailures, OrphanBlobsRemoved,
	}
}

// Init 注册应用指标，重复调用只有第一次生效.
// 配置的 labels 作为常量标签附加到所有应用指标上.
func Init(cfg configs.MetricsConfig) error {
	initOnce.Do(func() {
		if len(cfg.Labels) > 0 {
			registerer = prometheus.WrapRegistererWith(prometheus.Labels(cfg.Labels), registry)
		}

		for _, c := range collectors() {
			if err := registerer.Register(c); err != nil {
				initErr = err

				return
			}
		}
	})

	return initErr
}

// Handler 返回指标输出的 http.Handler.
func Handler(cfg configs.MetricsConfig) http.Handler {
	gatherers := prometheus.Gatherers{registry}
	if cfg.RuntimeMetrics {
		gatherers = append(gatherers, prometheus.DefaultGatherer)
	}

	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError})
}

// Mount 在 engine 上挂载指标端点，启用 pprof 时一并挂载 /debug/pprof.
func Mount(engine *gin.Engine, cfg configs.MetricsConfig) {
	if !cfg.Enabled {
		return
	}

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	engine.GET(path, gin.WrapH(Handler(cfg)))

	if cfg.Pprof {
		pp := engine.Group("/debug/pprof")
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
		pp.GET("/:name", func(c *gin.Context) {
			pprof.Handler(c.Param("name")).ServeHTTP(c.Writer, c.Request)
		})
	}
}

// GetRegistry 获取应用 Prometheus 注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Registerer 返回带常量标签的注册器，供 MQ 等组件注册自己的指标.
func Registerer() prometheus.Registerer {
	return registerer
}
