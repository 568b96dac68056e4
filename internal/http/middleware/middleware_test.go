package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestTimerObservesMatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()

	engine := gin.New()
	engine.Use(RequestTimer(reg))
	engine.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	}

	got, err := testutil.GatherAndCount(reg, "bluereach_http_request_duration_seconds")
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected one labelled series, got %d", got)
	}
}
