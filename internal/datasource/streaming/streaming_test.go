package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/flagkit/core/internal/datasource/status"
	"github.com/flagkit/core/internal/fmodel"
)

func newTestStatusManager() *status.Manager {
	return status.NewManager(nil)
}

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestParsePath(t *testing.T) {
	kind, key, ok := parsePath("/flags/f1")
	assert.True(t, ok)
	assert.Equal(t, fmodel.Flags, kind)
	assert.Equal(t, "f1", key)

	kind, key, ok = parsePath("/segments/s1")
	assert.True(t, ok)
	assert.Equal(t, fmodel.Segments, kind)
	assert.Equal(t, "s1", key)

	_, _, ok = parsePath("/")
	assert.False(t, ok)

	_, _, ok = parsePath("/unknown/thing")
	assert.False(t, ok)
}

func TestNextBackoff_CapsAtMax(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(time.Second, 10*time.Second))
	assert.Equal(t, 10*time.Second, nextBackoff(8*time.Second, 10*time.Second))
}

type fakeDestination struct {
	initFlags    map[string]fmodel.FlagDescriptor
	initSegments map[string]fmodel.SegmentDescriptor
	upsertedFlag map[string]fmodel.FlagDescriptor
}

func (d *fakeDestination) Init(flags map[string]fmodel.FlagDescriptor, segments map[string]fmodel.SegmentDescriptor) {
	d.initFlags = flags
	d.initSegments = segments
}

func (d *fakeDestination) UpsertFlag(key string, desc fmodel.FlagDescriptor) bool {
	if d.upsertedFlag == nil {
		d.upsertedFlag = make(map[string]fmodel.FlagDescriptor)
	}
	d.upsertedFlag[key] = desc
	return true
}

func (d *fakeDestination) UpsertSegment(string, fmodel.SegmentDescriptor) bool { return true }

func TestSource_HandlePut(t *testing.T) {
	dest := &fakeDestination{}
	cfg := Config{StreamURI: "http://example.invalid"}
	s := NewSource(cfg, dest, newTestStatusManager(), newTestLogger())

	body := []byte(`{"flags":{"f1":{"key":"f1","version":1,"on":true,"variations":[true,false],"fallthrough":{"variation":0}}},"segments":{}}`)
	s.handlePut(body)

	assert.Contains(t, dest.initFlags, "f1")
}

func TestSource_HandleDelete(t *testing.T) {
	dest := &fakeDestination{}
	cfg := Config{StreamURI: "http://example.invalid"}
	s := NewSource(cfg, dest, newTestStatusManager(), newTestLogger())

	s.handleDelete([]byte(`{"path":"/flags/f1","version":7}`))

	desc, ok := dest.upsertedFlag["f1"]
	assert.True(t, ok)
	assert.True(t, desc.Tombstone)
	assert.Equal(t, 7, desc.Version)
}
