package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	QuestionSourceFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "question_source_fallback_total",
			Help: "Question batches served from the static fallback set",
		},
		[]string{"type", "reason"},
	)

	QuestionSourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "question_source_duration_seconds",
			Help:    "Latency of question generation calls",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60},
		},
		[]string{"type"},
	)

	CodingEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coding_evaluations_total",
			Help: "Coding submissions evaluated, by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	EvaluationCaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coding_evaluation_case_duration_seconds",
			Help:    "Wall-clock time of a single test case run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"backend"},
	)

	LeaveResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leave_resolutions_total",
			Help: "Leave requests resolved, by resulting status",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			QuestionSourceFallbacks,
			QuestionSourceDuration,
			CodingEvaluations,
			EvaluationCaseDuration,
			LeaveResolutions,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
