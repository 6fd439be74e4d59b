package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestOutbox_PushUpToCapacity(t *testing.T) {
	ob := newOutbox(2, zap.NewNop().Sugar())
	assert.True(t, ob.push("a"))
	assert.True(t, ob.push("b"))
	assert.False(t, ob.push("c"))
	assert.Equal(t, 2, ob.len())
}

func TestOutbox_DrainClearsContents(t *testing.T) {
	ob := newOutbox(4, zap.NewNop().Sugar())
	ob.push("a")
	ob.push("b")
	items := ob.drain()
	assert.Equal(t, []any{"a", "b"}, items)
	assert.Equal(t, 0, ob.len())
}

func TestOutbox_WarnsOnlyOnceUntilNextSuccessfulPush(t *testing.T) {
	ob := newOutbox(1, zap.NewNop().Sugar())
	assert.True(t, ob.push("a"))
	assert.False(t, ob.push("b"))
	assert.True(t, ob.warned)

	assert.False(t, ob.push("c"))
	assert.True(t, ob.warned)

	ob.drain()
	assert.True(t, ob.push("d"))
	assert.False(t, ob.warned, "a successful push after drain resets the warn gate")
}
