package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagkit/core/internal/fmodel"
)

func TestUpsertFlag_Monotonicity(t *testing.T) {
	s := NewMemoryStore()
	s.Init(map[string]fmodel.FlagDescriptor{
		"f": fmodel.PresentFlag(&fmodel.Flag{Key: "f", Version: 5}),
	}, nil)

	applied := s.UpsertFlag("f", fmodel.PresentFlag(&fmodel.Flag{Key: "f", Version: 5}))
	assert.False(t, applied)

	applied = s.UpsertFlag("f", fmodel.PresentFlag(&fmodel.Flag{Key: "f", Version: 4}))
	assert.False(t, applied)

	applied = s.UpsertFlag("f", fmodel.PresentFlag(&fmodel.Flag{Key: "f", Version: 6}))
	assert.True(t, applied)

	desc, ok := s.GetFlag("f")
	assert.True(t, ok)
	assert.Equal(t, 6, desc.Version)
}

func TestUpsertFlag_TombstoneThenUpsertSameVersionIsNoop(t *testing.T) {
	s := NewMemoryStore()
	s.UpsertFlag("f", fmodel.TombstoneFlag(10))
	applied := s.UpsertFlag("f", fmodel.PresentFlag(&fmodel.Flag{Key: "f", Version: 10}))
	assert.False(t, applied)

	desc, _ := s.GetFlag("f")
	assert.True(t, desc.Tombstone)
}

func TestAllFlags_ExcludesTombstones(t *testing.T) {
	s := NewMemoryStore()
	s.Init(map[string]fmodel.FlagDescriptor{
		"live": fmodel.PresentFlag(&fmodel.Flag{Key: "live", Version: 1}),
		"dead": fmodel.TombstoneFlag(2),
	}, nil)

	all := s.AllFlags()
	assert.Contains(t, all, "live")
	assert.NotContains(t, all, "dead")
}

func TestInitialized(t *testing.T) {
	s := NewMemoryStore()
	assert.False(t, s.Initialized())
	s.Init(nil, nil)
	assert.True(t, s.Initialized())
}
