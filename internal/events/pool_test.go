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

func TestWorkerPool_AcquireReturnsFirstIdleWorkerAndNilWhenAllBusy(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool := NewWorkerPool(2, srv.Client(), srv.URL, "sdk-key", time.Millisecond, nil, nil, zap.NewNop().Sugar())

	w1 := pool.Acquire()
	require.NotNil(t, w1)
	w1.state = stateFirstChance

	w2 := pool.Acquire()
	require.NotNil(t, w2)
	assert.NotSame(t, w1, w2)
	w2.state = stateFirstChance

	assert.Nil(t, pool.Acquire())
	close(release)
}

func TestWorkerPool_DispatchDeliversAndFreesWorker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pool := NewWorkerPool(1, srv.Client(), srv.URL, "sdk-key", time.Millisecond, nil, nil, zap.NewNop().Sugar())
	w := pool.Acquire()
	require.NotNil(t, w)
	pool.Dispatch(context.Background(), w, []byte(`[]`))

	assert.Eventually(t, func() bool { return pool.Acquire() != nil }, time.Second, time.Millisecond)
}

func TestWorkerPool_PermanentFailureNotifiesAtMostOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var failures int32
	pool := NewWorkerPool(3, srv.Client(), srv.URL, "sdk-key", time.Millisecond,
		nil,
		func(int) { atomic.AddInt32(&failures, 1) },
		zap.NewNop().Sugar())

	for i := 0; i < 3; i++ {
		w := pool.Acquire()
		require.NotNil(t, w)
		pool.Dispatch(context.Background(), w, []byte(`[]`))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&failures) == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&failures))
}
