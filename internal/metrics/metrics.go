package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comment_ws_connections",
		Help: "Current number of joined websocket sessions",
	})
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comment_rooms_active",
		Help: "Current number of post rooms with at least one session",
	})
	CommentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comment_created_total",
		Help: "Total number of persisted comments by entry point",
	}, []string{"via"})
	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comment_deliveries_total",
		Help: "Per-session comment event deliveries by result",
	}, []string{"result"})
	GateDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comment_gate_decisions_total",
		Help: "Entitlement gate decisions by path and outcome",
	}, []string{"path", "decision"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(WsConnections, ActiveRooms, CommentsTotal, DeliveriesTotal, GateDecisionsTotal, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
