// Package lazyload implements the lazy-load data system (spec.md §4.10): a
// private memory-store cache in front of an upstream SerializedDataReader
// plugin, refreshed on a per-key TTL rather than by a persistent
// subscription.
//
// Grounded on spec.md §6's persistent-store plugin contract and
// original_source/.../data_systems/lazy_load/ sources.
package lazyload

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/flagkit/core/internal/expiry"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fmodel/wire"
	"github.com/flagkit/core/internal/store"
)

// SerializedItem mirrors spec.md §6's SerializedItemDescriptor: a version,
// a tombstone flag, and the raw serialized item (absent for tombstones).
type SerializedItem = wire.SerializedItemDescriptor

// SerializedDataReader is the external collaborator plugin a host supplies
// to back the lazy-load cache (e.g. s3reader, redisreader).
type SerializedDataReader interface {
	// Get fetches a single item. A nil item with a nil error means "not
	// found" (distinct from a tombstone, which is returned with Deleted set).
	Get(ctx context.Context, kind fmodel.DataKind, key string) (*SerializedItem, error)
	All(ctx context.Context, kind fmodel.DataKind) (map[string]SerializedItem, error)
	Initialized(ctx context.Context) (bool, error)
	Identity() string
}

// System is the lazy-load data system.
type System struct {
	reader     SerializedDataReader
	cache      *store.MemoryStore
	tracker    *expiry.Tracker
	refreshTTL time.Duration
	logger     *zap.SugaredLogger
	now        func() time.Time

	initializedOnce bool
}

func NewSystem(reader SerializedDataReader, refreshTTL time.Duration, logger *zap.SugaredLogger) *System {
	return &System{
		reader:     reader,
		cache:      store.NewMemoryStore(),
		tracker:    expiry.NewTracker(),
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// GetFlag returns the flag descriptor named key, refreshing from the
// upstream reader first if the cached copy is stale or untracked (spec.md
// §4.10). It matches evaluation.FlagReader's signature exactly, so a
// *System can be wired directly into evaluation.NewEvaluator: every
// evaluation (including prerequisite and segment lookups) drives the
// per-key refresh transparently.
func (s *System) GetFlag(key string) (fmodel.FlagDescriptor, bool) {
	s.refreshIfNeeded(context.Background(), fmodel.Flags, key)
	return s.cache.GetFlag(key)
}

// GetSegment is the segment equivalent of GetFlag.
func (s *System) GetSegment(key string) (fmodel.SegmentDescriptor, bool) {
	s.refreshIfNeeded(context.Background(), fmodel.Segments, key)
	return s.cache.GetSegment(key)
}

func (s *System) refreshIfNeeded(ctx context.Context, kind fmodel.DataKind, key string) {
	now := s.now()
	trackerKey := fmodel.Key{Kind: kind, Key: key}
	if s.tracker.State(trackerKey, now) == expiry.Fresh {
		return
	}

	item, err := s.reader.Get(ctx, kind, key)
	if err != nil {
		// Upstream failure: the tracker stays untouched so the next call
		// re-attempts (spec.md §4.10 step 4). This call serves whatever the
		// cache already holds, which is nothing for a key never fetched.
		s.logger.Warnw("lazy-load upstream fetch failed", "kind", kind.String(), "key", key, "error", err)
		return
	}
	if item == nil {
		s.removeFromCache(kind, key)
		s.tracker.Add(trackerKey, now.Add(s.refreshTTL))
		return
	}

	if err := s.upsertFromSerialized(kind, key, *item); err != nil {
		s.logger.Warnw("lazy-load decode failed", "kind", kind.String(), "key", key, "error", err)
		return
	}
	s.tracker.Add(trackerKey, now.Add(s.refreshTTL))
}

func (s *System) removeFromCache(kind fmodel.DataKind, key string) {
	switch kind {
	case fmodel.Flags:
		s.cache.UpsertFlag(key, fmodel.TombstoneFlag(0))
	case fmodel.Segments:
		s.cache.UpsertSegment(key, fmodel.TombstoneSegment(0))
	}
}

func (s *System) upsertFromSerialized(kind fmodel.DataKind, key string, item SerializedItem) error {
	if item.Deleted || !item.HasItem {
		switch kind {
		case fmodel.Flags:
			s.cache.UpsertFlag(key, fmodel.TombstoneFlag(item.Version))
		case fmodel.Segments:
			s.cache.UpsertSegment(key, fmodel.TombstoneSegment(item.Version))
		}
		return nil
	}
	switch kind {
	case fmodel.Flags:
		var fj wire.FlagJSON
		if err := json.Unmarshal([]byte(item.SerializedItem), &fj); err != nil {
			return err
		}
		flag, err := wire.DecodeFlag(fj)
		if err != nil {
			return err
		}
		s.cache.UpsertFlag(key, fmodel.PresentFlag(flag))
	case fmodel.Segments:
		var sj wire.SegmentJSON
		if err := json.Unmarshal([]byte(item.SerializedItem), &sj); err != nil {
			return err
		}
		seg, err := wire.DecodeSegment(sj)
		if err != nil {
			return err
		}
		s.cache.UpsertSegment(key, fmodel.PresentSegment(seg))
	}
	return nil
}

// AllFlags refreshes the full flag set at most once per refreshTTL window,
// keyed on the well-known "allFlags" tracker entry, then serves from cache.
func (s *System) AllFlags() map[string]*fmodel.Flag {
	now := s.now()
	if s.tracker.StateUnscoped(expiry.AllFlags, now) != expiry.Fresh {
		if items, err := s.reader.All(context.Background(), fmodel.Flags); err != nil {
			s.logger.Warnw("lazy-load bulk flag fetch failed", "error", err)
		} else {
			for key, item := range items {
				if err := s.upsertFromSerialized(fmodel.Flags, key, item); err != nil {
					s.logger.Warnw("lazy-load decode failed during bulk fetch", "key", key, "error", err)
				}
			}
			s.tracker.AddUnscoped(expiry.AllFlags, now.Add(s.refreshTTL))
		}
	}

	return s.cache.AllFlags()
}

// AllSegments mirrors AllFlags for segments.
func (s *System) AllSegments() map[string]*fmodel.Segment {
	now := s.now()
	if s.tracker.StateUnscoped(expiry.AllSegments, now) != expiry.Fresh {
		if items, err := s.reader.All(context.Background(), fmodel.Segments); err != nil {
			s.logger.Warnw("lazy-load bulk segment fetch failed", "error", err)
		} else {
			for key, item := range items {
				if err := s.upsertFromSerialized(fmodel.Segments, key, item); err != nil {
					s.logger.Warnw("lazy-load decode failed during bulk fetch", "key", key, "error", err)
				}
			}
			s.tracker.AddUnscoped(expiry.AllSegments, now.Add(s.refreshTTL))
		}
	}

	return s.cache.AllSegments()
}

// Initialized reports whether the upstream reader has ever reported ready.
// Once true it stays true for the life of the System (spec.md §4.10/§4.12
// "sticky-true" convention shared with the other data systems).
func (s *System) Initialized() bool {
	if s.initializedOnce {
		return true
	}
	ok, err := s.reader.Initialized(context.Background())
	if err != nil {
		s.logger.Warnw("lazy-load initialized check failed", "error", err)
		return false
	}
	if ok {
		s.initializedOnce = true
	}
	return ok
}
