package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/shop-api/internal/lib/metrics"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Handle("/metrics", metrics.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/17", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	metrics.Rejected("validation", http.StatusBadRequest)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.True(t, strings.Contains(body, `route="/products/{id}"`), "route label should be the chi pattern")
	assert.False(t, strings.Contains(body, `route="/products/17"`))
	assert.True(t, strings.Contains(body, `shop_requests_rejected_total{stage="validation",status="400"}`))
}
