package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveWrite(t *testing.T) {
	m := NewMetrics()
	m.ObserveWrite("alerts", "append", time.Millisecond, nil)
	m.ObserveWrite("alerts", "append", time.Millisecond, errors.New("disk full"))
	m.ObserveWrite("alerts", "rewrite", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeWritesTotal.WithLabelValues("alerts", "append", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeWritesTotal.WithLabelValues("alerts", "append", "error")))
}

func TestRecordPollCycle(t *testing.T) {
	m := NewMetrics()
	m.RecordPollCycle("requests", 3, nil)
	m.RecordPollCycle("requests", 0, errors.New("timeout"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.pollImportedTotal.WithLabelValues("requests")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollCyclesTotal.WithLabelValues("requests", "error")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(MonitorMiddleware(m))
	r.GET("/donors/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/donors/42", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/donors/:id", "204")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestCollectSystemStats(t *testing.T) {
	s := CollectSystemStats(context.Background(), t.TempDir())
	require.NotNil(t, s)
	assert.Positive(t, s.Runtime.Goroutines)
	assert.NotEmpty(t, s.Runtime.GoVersion)

	m := NewMetrics()
	m.SetSystemStats(s)
	m.SetSystemStats(nil)
}
