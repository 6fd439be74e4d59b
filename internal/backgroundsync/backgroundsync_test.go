package backgroundsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flagkit/core/internal/datasource/polling"
	"github.com/flagkit/core/internal/datasource/status"
)

func TestPollingSystem_InitializeReachesValid(t *testing.T) {
	body := `{"flags":{"f1":{"key":"f1","version":1,"on":true,"variations":[true],"fallthrough":{"variation":0}}},"segments":{}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	sys := NewPollingSystem(polling.Config{
		PollURI:    srv.URL,
		Interval:   time.Hour,
		HTTPClient: srv.Client(),
	}, zap.NewNop().Sugar())

	done := make(chan struct{})
	sys.AddStatusListener(func(s status.Status) {
		if s.State == status.Valid {
			close(done)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sys.Initialize(ctx)
	defer sys.Close()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for valid status")
	}

	flag, ok := sys.GetFlag("f1")
	require.True(t, ok)
	assert.Equal(t, "f1", flag.Key)
	assert.True(t, sys.Initialized())
}

func TestSystem_GetFlag_MissingKeyReturnsFalse(t *testing.T) {
	sys := NewPollingSystem(polling.Config{PollURI: "http://example.invalid", Interval: time.Hour}, zap.NewNop().Sugar())
	_, ok := sys.GetFlag("missing")
	assert.False(t, ok)
}

func TestSystem_Store_SatisfiesEvaluatorReaders(t *testing.T) {
	sys := NewPollingSystem(polling.Config{PollURI: "http://example.invalid", Interval: time.Hour}, zap.NewNop().Sugar())
	st := sys.Store()
	_, ok := st.GetFlag("nope")
	assert.False(t, ok)
}
