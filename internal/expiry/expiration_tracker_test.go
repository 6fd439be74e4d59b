package expiry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flagkit/core/internal/fmodel"
)

func TestState_FreshStaleNotTracked(t *testing.T) {
	tr := NewTracker()
	key := fmodel.Key{Kind: fmodel.Flags, Key: "f"}
	now := time.Unix(1000, 0)

	assert.Equal(t, NotTracked, tr.State(key, now))

	tr.Add(key, now.Add(time.Minute))
	assert.Equal(t, Fresh, tr.State(key, now))
	assert.Equal(t, Stale, tr.State(key, now.Add(2*time.Minute)))
}

func TestRemove(t *testing.T) {
	tr := NewTracker()
	key := fmodel.Key{Kind: fmodel.Flags, Key: "f"}
	now := time.Unix(1000, 0)
	tr.Add(key, now.Add(time.Minute))
	tr.Remove(key)
	assert.Equal(t, NotTracked, tr.State(key, now))
}

func TestUnscopedKeys(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1000, 0)
	tr.AddUnscoped(AllFlags, now.Add(time.Minute))
	assert.Equal(t, Fresh, tr.StateUnscoped(AllFlags, now))
	assert.Equal(t, NotTracked, tr.StateUnscoped(AllSegments, now))
}
