package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPlaceLoad("lib", nil, time.Millisecond)
		m.RecordReload("lib", "change")
		m.RecordStartHook(errors.New("boom"))
		m.RecordModuleStop("domain", nil)
		m.RecordDispatch("auth", "login", "ok", time.Millisecond)
		m.IncWSConnections()
	})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestRecordPlaceLoad(t *testing.T) {
	m := NewMetrics()
	m.RecordPlaceLoad("lib", nil, time.Millisecond)
	m.RecordPlaceLoad("static", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlaceLoads.WithLabelValues("lib", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlaceLoads.WithLabelValues("static", "error")))
}

func TestIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.RecordReload("api", "change")

	assert.Equal(t, int64(1), a.Snapshot().Reloads)
	assert.Equal(t, int64(0), b.Snapshot().Reloads)
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `apphost_http_requests_total{method="GET",path="/ping",status="200"} 1`))
	assert.Equal(t, int64(2), m.Snapshot().TotalRequests)
}
