package depgraph

import (
	"sync"

	"github.com/flagkit/core/internal/fmodel"
)

// Destination is the subset of the memory store's write API the change
// notifier needs. The memory store implements this directly.
type Destination interface {
	Init(flags map[string]fmodel.FlagDescriptor, segments map[string]fmodel.SegmentDescriptor)
	UpsertFlag(key string, desc fmodel.FlagDescriptor) bool
	UpsertSegment(key string, desc fmodel.SegmentDescriptor) bool
	GetFlag(key string) (fmodel.FlagDescriptor, bool)
	GetSegment(key string) (fmodel.SegmentDescriptor, bool)
}

// Listener is invoked with the set of flag keys whose evaluation could have
// changed as a result of an Upsert or Init.
type Listener func(changedFlagKeys []string)

// disposable is returned by AddListener; calling it removes the listener.
type disposable func()

// ChangeNotifier composes a Destination (typically the memory store) with a
// dependency Tracker, publishing FlagChange events to registered listeners
// whenever an upsert or full reinitialization could affect a flag's
// evaluation result (spec.md §4.6).
type ChangeNotifier struct {
	destination Destination
	tracker     *Tracker

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func NewChangeNotifier(destination Destination) *ChangeNotifier {
	return &ChangeNotifier{
		destination: destination,
		tracker:     NewTracker(),
		listeners:   make(map[int]Listener),
	}
}

// AddListener registers a listener and returns a function that removes it.
func (n *ChangeNotifier) AddListener(l Listener) disposable {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = l
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *ChangeNotifier) hasListeners() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners) > 0
}

func (n *ChangeNotifier) emit(keys []string) {
	if len(keys) == 0 {
		return
	}
	n.mu.Lock()
	listeners := make([]Listener, 0, len(n.listeners))
	for _, l := range n.listeners {
		listeners = append(listeners, l)
	}
	n.mu.Unlock()
	// Listener invocation happens outside the lock (spec.md §5).
	for _, l := range listeners {
		l(keys)
	}
}

func flagKeysOf(set Set) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		if k.Kind == fmodel.Flags {
			out = append(out, k.Key)
		}
	}
	return out
}

// UpsertFlag upserts a flag descriptor, publishing the closure of flags
// whose evaluation could be affected, if there are any listeners. Returns
// whether the upsert was applied (false if a stale version was discarded by
// the store's monotonicity check).
func (n *ChangeNotifier) UpsertFlag(key string, desc fmodel.FlagDescriptor) bool {
	fullKey := fmodel.Key{Kind: fmodel.Flags, Key: key}
	var deps Set
	if desc.IsPresent() {
		deps = FlagDirectDependencies(desc.Flag)
	} else {
		deps = NewSet()
	}
	n.tracker.UpdateDependencies(fullKey, deps)

	hasListeners := n.hasListeners()
	var closure Set
	if hasListeners {
		closure = NewSet()
		n.tracker.CalculateChanges(fullKey, closure)
	}

	applied := n.destination.UpsertFlag(key, desc)

	if hasListeners && applied {
		n.emit(flagKeysOf(closure))
	}
	return applied
}

// UpsertSegment upserts a segment descriptor, publishing the flag subset of
// the closure of affected items (segments themselves are not observable to
// flag-change listeners per spec.md §4.6).
func (n *ChangeNotifier) UpsertSegment(key string, desc fmodel.SegmentDescriptor) bool {
	fullKey := fmodel.Key{Kind: fmodel.Segments, Key: key}
	var deps Set
	if desc.IsPresent() {
		deps = SegmentDirectDependencies(desc.Segment)
	} else {
		deps = NewSet()
	}
	n.tracker.UpdateDependencies(fullKey, deps)

	hasListeners := n.hasListeners()
	var closure Set
	if hasListeners {
		closure = NewSet()
		n.tracker.CalculateChanges(fullKey, closure)
	}

	applied := n.destination.UpsertSegment(key, desc)

	if hasListeners && applied {
		n.emit(flagKeysOf(closure))
	}
	return applied
}

// Init replaces the entire ruleset. Before replacing the store it collects
// the keys of flags in the new data set that are new or whose version
// differs from the stored one; it then rebuilds the dependency graph from
// the new data set and emits those keys. Flags that were stored before but
// are absent from the new data set are not reported.
func (n *ChangeNotifier) Init(flags map[string]fmodel.FlagDescriptor, segments map[string]fmodel.SegmentDescriptor) {
	hasListeners := n.hasListeners()

	var changedFlags []string
	if hasListeners {
		changedFlags = n.diffFlagKeys(flags)
	}

	n.destination.Init(flags, segments)

	n.tracker.Reset()
	for key, desc := range flags {
		fullKey := fmodel.Key{Kind: fmodel.Flags, Key: key}
		if desc.IsPresent() {
			n.tracker.UpdateDependencies(fullKey, FlagDirectDependencies(desc.Flag))
		}
	}
	for key, desc := range segments {
		fullKey := fmodel.Key{Kind: fmodel.Segments, Key: key}
		if desc.IsPresent() {
			n.tracker.UpdateDependencies(fullKey, SegmentDirectDependencies(desc.Segment))
		}
	}

	if hasListeners {
		n.emit(changedFlags)
	}
}

func (n *ChangeNotifier) diffFlagKeys(newFlags map[string]fmodel.FlagDescriptor) []string {
	seen := make(map[string]struct{})
	var changed []string
	for key, newDesc := range newFlags {
		oldDesc, existed := n.destination.GetFlag(key)
		if !existed || oldDesc.Version != newDesc.Version {
			changed = append(changed, key)
		}
		seen[key] = struct{}{}
	}
	// Keys present before but absent from the new data set are not
	// reported: the Destination interface offers no way to enumerate the
	// old store's keys.
	_ = seen
	return changed
}
