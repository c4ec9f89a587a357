package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlogy_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// UploadOutcomes counts upload attempts by outcome.
	UploadOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlogy_upload_outcomes_total",
		Help: "Upload attempts by outcome",
	}, []string{"outcome"})

	// ChatOutcomes counts assistant replies by outcome.
	ChatOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlogy_chat_outcomes_total",
		Help: "Assistant chat replies by outcome",
	}, []string{"outcome"})

	// ProfileRefreshOutcomes counts identity profile fetches by outcome.
	ProfileRefreshOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlogy_profile_refresh_outcomes_total",
		Help: "Identity provider profile refreshes by outcome",
	}, []string{"outcome"})

	// UpstreamLatency records remote call latency by service.
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vlogy_upstream_latency_seconds",
		Help:    "Latency of calls to the blob store, assistant and identity provider",
		Buckets: prometheus.DefBuckets,
	}, []string{"service"})
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics creates the HTTP metrics collector. The collector registers with
// the default Prometheus registry, so it is built once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records per-request HTTP metrics.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
