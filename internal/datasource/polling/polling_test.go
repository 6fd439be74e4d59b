package polling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flagkit/core/internal/datasource/status"
	"github.com/flagkit/core/internal/fmodel"
)

type fakeDestination struct {
	flags map[string]fmodel.FlagDescriptor
}

func (d *fakeDestination) Init(flags map[string]fmodel.FlagDescriptor, _ map[string]fmodel.SegmentDescriptor) {
	d.flags = flags
}

func newTestSource(t *testing.T, srv *httptest.Server) (*Source, *fakeDestination, *status.Manager) {
	t.Helper()
	dest := &fakeDestination{}
	statusMgr := status.NewManager(nil)
	cfg := Config{PollURI: srv.URL, Interval: time.Hour, HTTPClient: srv.Client()}
	return NewSource(cfg, dest, statusMgr, zap.NewNop().Sugar()), dest, statusMgr
}

func TestPoll_SuccessInitsStoreAndCapturesETag(t *testing.T) {
	body := `{"flags":{"f1":{"key":"f1","version":1,"on":true,"variations":[true],"fallthrough":{"variation":0}}},"segments":{}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s, dest, statusMgr := newTestSource(t, srv)
	terminal := s.poll(context.Background())
	require.False(t, terminal)
	assert.Contains(t, dest.flags, "f1")
	assert.Equal(t, `"v1"`, s.etag)
	assert.Equal(t, status.Valid, statusMgr.CurrentStatus().State)
}

func TestPoll_NotModifiedIsNoop(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, `"v1"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	s, dest, _ := newTestSource(t, srv)
	s.etag = `"v1"`
	terminal := s.poll(context.Background())
	assert.False(t, terminal)
	assert.Nil(t, dest.flags)
	assert.Equal(t, 1, calls)
}

func TestPoll_NonRecoverableStatusTerminatesLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, _, statusMgr := newTestSource(t, srv)
	terminal := s.poll(context.Background())
	assert.True(t, terminal)
	assert.Equal(t, status.Off, statusMgr.CurrentStatus().State)
}

func TestPoll_RecoverableStatusContinuesLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, _, statusMgr := newTestSource(t, srv)
	terminal := s.poll(context.Background())
	assert.False(t, terminal)
	assert.Equal(t, status.Interrupted, statusMgr.CurrentStatus().State)
}

func TestConfig_WithDefaults_ClampsInterval(t *testing.T) {
	cfg := Config{Interval: time.Second}.withDefaults(nil)
	assert.Equal(t, MinInterval, cfg.Interval)
}

