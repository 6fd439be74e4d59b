package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeSuccess, classify(200, nil))
	assert.Equal(t, outcomeRecoverable, classify(429, nil))
	assert.Equal(t, outcomeRecoverable, classify(500, nil))
	assert.Equal(t, outcomeRecoverable, classify(0, assertError{}))
	assert.Equal(t, outcomePermanent, classify(401, nil))
	assert.Equal(t, outcomePermanent, classify(404, nil))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestDeliveryWorker_FirstChanceSuccessCallsServerTimeAndGoesIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", "Mon, 01 Jan 2026 00:00:00 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newDeliveryWorker(srv.Client(), srv.URL, "sdk-key", time.Millisecond, zap.NewNop().Sugar())

	var gotTime time.Time
	var permFailures int32
	w.deliver(context.Background(), []byte(`[]`), func(t time.Time) { gotTime = t }, func(int) { atomic.AddInt32(&permFailures, 1) })

	assert.True(t, w.idle())
	assert.Equal(t, 2026, gotTime.Year())
	assert.Zero(t, atomic.LoadInt32(&permFailures))
}

func TestDeliveryWorker_FirstChanceRecoverableRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newDeliveryWorker(srv.Client(), srv.URL, "sdk-key", time.Millisecond, zap.NewNop().Sugar())
	w.deliver(context.Background(), []byte(`[]`), func(time.Time) {}, func(int) {})

	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.True(t, w.idle())
}

func TestDeliveryWorker_SecondChanceRecoverableDropsWithoutThirdAttempt(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	w := newDeliveryWorker(srv.Client(), srv.URL, "sdk-key", time.Millisecond, zap.NewNop().Sugar())
	w.deliver(context.Background(), []byte(`[]`), func(time.Time) {}, func(int) {})

	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.True(t, w.idle())
}

func TestDeliveryWorker_FirstChancePermanentFailsImmediately(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	w := newDeliveryWorker(srv.Client(), srv.URL, "sdk-key", time.Millisecond, zap.NewNop().Sugar())

	var gotStatus int
	w.deliver(context.Background(), []byte(`[]`), func(time.Time) {}, func(statusCode int) { gotStatus = statusCode })

	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Equal(t, http.StatusUnauthorized, gotStatus)
	assert.False(t, w.idle())
	assert.Equal(t, statePermanentlyFailed, w.state)
}

func TestDeliveryWorker_RetryThenPermanentFailureNotifiesOnce(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	w := newDeliveryWorker(srv.Client(), srv.URL, "sdk-key", time.Millisecond, zap.NewNop().Sugar())

	var failures int32
	w.deliver(context.Background(), []byte(`[]`), func(time.Time) {}, func(int) { atomic.AddInt32(&failures, 1) })

	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Equal(t, int32(1), atomic.LoadInt32(&failures))
	assert.Equal(t, statePermanentlyFailed, w.state)
}
