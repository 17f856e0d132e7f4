package ratelimit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/linemk/shop-api/internal/lib/logger/handlers/slogdiscard"
	"github.com/linemk/shop-api/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_IncrementAndWindowInOneTransaction(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := ratelimit.New(db, 2, time.Minute)

	for i, count := range []int64{1, 2, 3} {
		mock.ExpectTxPipeline()
		mock.ExpectIncr("ratelimit:10.0.0.1").SetVal(count)
		mock.ExpectExpireNX("ratelimit:10.0.0.1", time.Minute).SetVal(i == 0)
		mock.ExpectTxPipelineExec()
	}

	ctx := context.Background()
	ok, err := limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddleware_Rejects(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := ratelimit.New(db, 1, time.Minute)
	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:192.0.2.1").SetVal(5)
	mock.ExpectExpireNX("ratelimit:192.0.2.1", time.Minute).SetVal(false)
	mock.ExpectTxPipelineExec()

	handler := ratelimit.Middleware(slogdiscard.NewDiscardLogger(), limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddleware_FailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := ratelimit.New(db, 1, time.Minute)
	mock.ExpectTxPipeline()
	mock.ExpectIncr("ratelimit:192.0.2.1").SetErr(errors.New("connection refused"))
	mock.ExpectExpireNX("ratelimit:192.0.2.1", time.Minute).SetErr(errors.New("connection refused"))
	mock.ExpectTxPipelineExec().SetErr(errors.New("connection refused"))

	called := false
	handler := ratelimit.Middleware(slogdiscard.NewDiscardLogger(), limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
