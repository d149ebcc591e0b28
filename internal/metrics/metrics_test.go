package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/sanziv9999/GharkoSwad/internal/metrics"
)

func TestObserveTransition(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveTransition("", "PLACED")
	m.ObserveTransition("PLACED", "CONFIRMED")
	m.ObserveTransition("PLACED", "CONFIRMED")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("NEW", "PLACED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("PLACED", "CONFIRMED")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("PLACED", "CONFIRMED")
		m.ObserveVerification("verified")
	})
}

func TestMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues("/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "404")))
}
