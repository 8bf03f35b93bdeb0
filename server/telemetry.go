package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// telemetry holds the service's Prometheus collectors. Each Server owns a
// registry so that several servers can coexist in one process.
type telemetry struct {
	registry *prometheus.Registry

	// requests counts handled requests.
	// Labels: route, method, status
	requests *prometheus.CounterVec

	// requestDuration measures end-to-end handler latency.
	// Labels: route
	requestDuration *prometheus.HistogramVec

	// predictions counts prediction outcomes.
	// Labels: outcome (ok, invalid, error)
	predictions *prometheus.CounterVec

	// predictionLatency measures model inference time only.
	predictionLatency prometheus.Histogram

	// fallbacks counts categorical values encoded with the fallback code.
	// Labels: attribute
	fallbacks *prometheus.CounterVec
}

func newTelemetry() *telemetry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &telemetry{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wagewizard",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wagewizard",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route"}),
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wagewizard",
			Subsystem: "model",
			Name:      "predictions_total",
			Help:      "Total prediction requests by outcome",
		}, []string{"outcome"}),
		predictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wagewizard",
			Subsystem: "model",
			Name:      "prediction_latency_seconds",
			Help:      "Model inference latency in seconds",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wagewizard",
			Subsystem: "model",
			Name:      "category_fallbacks_total",
			Help:      "Categorical values outside the training vocabulary",
		}, []string{"attribute"}),
	}
}

// middleware records request counts and latency.
func (t *telemetry) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		t.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		t.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// handler exposes the registry in the Prometheus text format.
func (t *telemetry) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry}))
}
