package lazyload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flagkit/core/internal/fmodel"
)

type fakeReader struct {
	items       map[fmodel.DataKind]map[string]SerializedItem
	all         map[fmodel.DataKind]map[string]SerializedItem
	getCalls    int
	getErr      error
	initialized bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		items: map[fmodel.DataKind]map[string]SerializedItem{
			fmodel.Flags:    {},
			fmodel.Segments: {},
		},
		all: map[fmodel.DataKind]map[string]SerializedItem{
			fmodel.Flags:    {},
			fmodel.Segments: {},
		},
	}
}

func (f *fakeReader) Get(ctx context.Context, kind fmodel.DataKind, key string) (*SerializedItem, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	item, ok := f.items[kind][key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (f *fakeReader) All(ctx context.Context, kind fmodel.DataKind) (map[string]SerializedItem, error) {
	return f.all[kind], nil
}

func (f *fakeReader) Initialized(ctx context.Context) (bool, error) {
	return f.initialized, nil
}

func (f *fakeReader) Identity() string { return "fake" }

const flagJSON = `{"key":"f1","version":1,"on":true,"variations":[true,false],"fallthrough":{"variation":0}}`

func TestGetFlag_FetchesOnceThenServesFromCache(t *testing.T) {
	reader := newFakeReader()
	reader.items[fmodel.Flags]["f1"] = SerializedItem{Version: 1, HasItem: true, SerializedItem: flagJSON}

	sys := NewSystem(reader, time.Minute, zap.NewNop().Sugar())
	desc, ok := sys.GetFlag("f1")
	require.True(t, ok)
	require.True(t, desc.IsPresent())
	assert.Equal(t, "f1", desc.Flag.Key)
	assert.Equal(t, 1, reader.getCalls)

	_, ok = sys.GetFlag("f1")
	assert.True(t, ok)
	assert.Equal(t, 1, reader.getCalls, "second call within TTL should not hit upstream")
}

func TestGetFlag_NotFoundIsReportedAsTombstone(t *testing.T) {
	reader := newFakeReader()
	sys := NewSystem(reader, time.Minute, zap.NewNop().Sugar())
	desc, ok := sys.GetFlag("missing")
	require.True(t, ok)
	assert.False(t, desc.IsPresent())
}

func TestGetFlag_UpstreamErrorLeavesTrackerUntouchedForRetry(t *testing.T) {
	reader := newFakeReader()
	reader.getErr = assertError{}
	sys := NewSystem(reader, time.Minute, zap.NewNop().Sugar())

	_, ok := sys.GetFlag("f1")
	assert.False(t, ok)
	assert.Equal(t, 1, reader.getCalls)

	_, ok = sys.GetFlag("f1")
	assert.False(t, ok)
	assert.Equal(t, 2, reader.getCalls, "failed fetch must not mark the key fresh")
}

func TestAllFlags_BulkRefreshOncePerTTL(t *testing.T) {
	reader := newFakeReader()
	reader.all[fmodel.Flags]["f1"] = SerializedItem{Version: 1, HasItem: true, SerializedItem: flagJSON}

	sys := NewSystem(reader, time.Minute, zap.NewNop().Sugar())
	flags := sys.AllFlags()
	assert.Contains(t, flags, "f1")
}

func TestInitialized_StaysStickyTrue(t *testing.T) {
	reader := newFakeReader()
	sys := NewSystem(reader, time.Minute, zap.NewNop().Sugar())
	assert.False(t, sys.Initialized())

	reader.initialized = true
	assert.True(t, sys.Initialized())

	reader.initialized = false
	assert.True(t, sys.Initialized(), "once true, stays true")
}

type assertError struct{}

func (assertError) Error() string { return "upstream unavailable" }
