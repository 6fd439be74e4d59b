// Package backgroundsync implements the background-sync data system
// (spec.md §4.11): a coordinator owning a memory store and exactly one of a
// streaming or polling source, wired through a ChangeNotifier so ingested
// updates propagate to flag-change listeners.
//
// Grounded on original_source/.../data_systems/background_sync/.
package backgroundsync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/flagkit/core/internal/datasource/polling"
	"github.com/flagkit/core/internal/datasource/status"
	"github.com/flagkit/core/internal/datasource/streaming"
	"github.com/flagkit/core/internal/depgraph"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/store"
)

// source is the subset of {*streaming.Source, *polling.Source} the
// coordinator drives.
type source interface {
	Run(ctx context.Context)
}

// closer is implemented by sources that support cancelling an in-flight
// connection on shutdown; polling's context cancellation alone is enough,
// so only streaming implements it.
type closer interface {
	Close()
}

// System is the background-sync data system.
type System struct {
	store    *store.MemoryStore
	notifier *depgraph.ChangeNotifier
	status   *status.Manager
	source   source
	logger   *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamingSystem builds a background-sync system backed by an SSE
// streaming source.
func NewStreamingSystem(cfg streaming.Config, logger *zap.SugaredLogger) *System {
	memStore := store.NewMemoryStore()
	notifier := depgraph.NewChangeNotifier(memStore)
	statusMgr := status.NewManager(logger)
	src := streaming.NewSource(cfg, notifier, statusMgr, logger)
	return &System{store: memStore, notifier: notifier, status: statusMgr, source: src, logger: logger}
}

// NewPollingSystem builds a background-sync system backed by an HTTP
// polling source.
func NewPollingSystem(cfg polling.Config, logger *zap.SugaredLogger) *System {
	memStore := store.NewMemoryStore()
	notifier := depgraph.NewChangeNotifier(memStore)
	statusMgr := status.NewManager(logger)
	src := polling.NewSource(cfg, notifier, statusMgr, logger)
	return &System{store: memStore, notifier: notifier, status: statusMgr, source: src, logger: logger}
}

// Initialize starts the source in the background and returns immediately.
// Readiness is observed via Status(), not via this call's return.
func (s *System) Initialize(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.source.Run(runCtx)
	}()
}

// Close cancels the outstanding connection and waits for the source's run
// loop to exit.
func (s *System) Close() {
	if c, ok := s.source.(closer); ok {
		c.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Status returns the current data-source status, which a caller can poll
// or observe via AddStatusListener until it reaches valid/setOffline/
// interrupted-with-data (spec.md §4.11).
func (s *System) Status() status.Status {
	return s.status.CurrentStatus()
}

// AddStatusListener registers a listener for data-source status changes.
func (s *System) AddStatusListener(l status.Listener) func() {
	return s.status.AddListener(l)
}

// AddChangeListener registers a listener for flag-change notifications.
func (s *System) AddChangeListener(l depgraph.Listener) func() {
	return s.notifier.AddListener(l)
}

// Store exposes the underlying memory store for wiring into an evaluator,
// which reads FlagDescriptor/SegmentDescriptor rather than the resolved
// flag/segment pointers the convenience accessors below return.
func (s *System) Store() *store.MemoryStore {
	return s.store
}

func (s *System) GetFlag(key string) (*fmodel.Flag, bool) {
	desc, ok := s.store.GetFlag(key)
	if !ok || desc.Tombstone {
		return nil, false
	}
	return desc.Flag, true
}

func (s *System) GetSegment(key string) (*fmodel.Segment, bool) {
	desc, ok := s.store.GetSegment(key)
	if !ok || desc.Tombstone {
		return nil, false
	}
	return desc.Segment, true
}

func (s *System) AllFlags() map[string]*fmodel.Flag {
	return s.store.AllFlags()
}

func (s *System) AllSegments() map[string]*fmodel.Segment {
	return s.store.AllSegments()
}

func (s *System) Initialized() bool {
	return s.store.Initialized()
}
