package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"dedupe-go/internal/dedupe"
)

// Metrics holds the HTTP layer's Prometheus collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesServed     prometheus.Counter
	uploads         prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dedupe",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Requests for stored files by mount and outcome.",
			},
			[]string{"mount", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dedupe",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"mount"},
		),
		bytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "http",
			Name:      "served_bytes_total",
			Help:      "Response body bytes written for stored files.",
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "http",
			Name:      "uploads_total",
			Help:      "Files saved through the upload endpoint.",
		}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.bytesServed, m.uploads)
	return m
}

// Middleware records the outcome of every request under a mount.
func (m *Metrics) Middleware(classifier *dedupe.Classifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		mount, _, ok := classifier.Match(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		m.requests.WithLabelValues(mount.Prefix, outcome(status)).Inc()
		m.requestDuration.WithLabelValues(mount.Prefix).Observe(time.Since(start).Seconds())
		if (status == http.StatusOK || status == http.StatusPartialContent) && c.Writer.Size() > 0 {
			m.bytesServed.Add(float64(c.Writer.Size()))
		}
	}
}

func outcome(status int) string {
	switch {
	case status == http.StatusCreated:
		return "uploaded"
	case status == http.StatusFound:
		return "redirected"
	case status == http.StatusNotFound:
		return "missing"
	case status < 400:
		return "served"
	default:
		return "error"
	}
}
