package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_client_api_requests_total",
			Help: "Total number of REST calls made to the social service.",
		},
		[]string{"method", "endpoint", "status"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_client_api_request_duration_seconds",
			Help:    "REST call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	controlRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_client_control_requests_total",
			Help: "Total number of requests served by the local control API.",
		},
		[]string{"method", "route", "status"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_client_ws_active_connections",
			Help: "Number of open realtime channels.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_client_ws_events_total",
			Help: "Total number of realtime channel events by direction and name.",
		},
		[]string{"direction", "event"},
	)
	feedPageLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_client_feed_page_loads_total",
			Help: "Feed page loads by result.",
		},
		[]string{"result"},
	)
	chatMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_client_chat_mutations_total",
			Help: "Chat send/edit/delete operations by result.",
		},
		[]string{"op", "result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "social_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		controlRequestsTotal,
		wsActiveConnections,
		wsEventsTotal,
		feedPageLoadsTotal,
		chatMutationsTotal,
		amqpPublishErrorsTotal,
	)
}

// HTTPMetricsMiddleware records control API requests.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		controlRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// ObserveAPIRequest records one REST call. status is 0 for transport errors.
func ObserveAPIRequest(method, endpoint string, status int, took time.Duration) {
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(method, endpoint, label).Inc()
	apiRequestDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

// IncWSEvent counts a channel event; direction is "in" or "out".
func IncWSEvent(direction, event string) {
	wsEventsTotal.WithLabelValues(direction, event).Inc()
}

func IncFeedPageLoad(result string) {
	feedPageLoadsTotal.WithLabelValues(result).Inc()
}

func IncChatMutation(op, result string) {
	chatMutationsTotal.WithLabelValues(op, result).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
