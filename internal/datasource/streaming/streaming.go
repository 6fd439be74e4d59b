// Package streaming implements the SSE data source (spec.md §4.8): a
// long-lived GET against a streaming endpoint dispatching put/patch/delete
// events into a ChangeNotifier-wrapped destination, with reconnect backoff
// and a read-timeout watchdog.
//
// Grounded on the streamProcessor idiom in
// launchdarkly-ld-relay's vendored go-client.v2/streaming.go, updated for
// the modern github.com/launchdarkly/eventsource API.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	es "github.com/launchdarkly/eventsource"
	"go.uber.org/zap"

	"github.com/flagkit/core/internal/datasource/status"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fmodel/wire"
)

const (
	eventPut    = "put"
	eventPatch  = "patch"
	eventDelete = "delete"
)

// Destination is the subset of depgraph.ChangeNotifier's API the streaming
// source writes through.
type Destination interface {
	Init(flags map[string]fmodel.FlagDescriptor, segments map[string]fmodel.SegmentDescriptor)
	UpsertFlag(key string, desc fmodel.FlagDescriptor) bool
	UpsertSegment(key string, desc fmodel.SegmentDescriptor) bool
}

// Config configures a Source.
type Config struct {
	StreamURI      string
	Headers        http.Header
	InitialRetry   time.Duration
	MaxRetry       time.Duration
	ReadTimeout    time.Duration // heartbeat watchdog; spec.md recommends >= 5 minutes
	HTTPClient     *http.Client
}

func (c Config) withDefaults() Config {
	if c.InitialRetry <= 0 {
		c.InitialRetry = time.Second
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

type patchData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

type deleteData struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

// Source is an SSE-backed data source.
type Source struct {
	cfg    Config
	dest   Destination
	status *status.Manager
	logger *zap.SugaredLogger

	mu     sync.Mutex
	stream *es.Stream
	closed bool
}

func NewSource(cfg Config, dest Destination, statusMgr *status.Manager, logger *zap.SugaredLogger) *Source {
	return &Source{cfg: cfg.withDefaults(), dest: dest, status: statusMgr, logger: logger}
}

// Run connects and processes events until ctx is cancelled, which is the
// only way it returns. It retries transient connection failures with capped
// exponential backoff.
func (s *Source) Run(ctx context.Context) {
	retry := s.cfg.InitialRetry
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stream, err := s.subscribe(ctx)
		if err != nil {
			s.status.SetStateWithError(status.Interrupted, &status.LastError{
				Kind: status.ErrNetworkError, Message: err.Error(), Time: time.Now(),
			})
			if !s.sleep(ctx, retry) {
				return
			}
			retry = nextBackoff(retry, s.cfg.MaxRetry)
			continue
		}
		retry = s.cfg.InitialRetry

		terminal := s.processEvents(ctx, stream)
		stream.Close()
		if terminal {
			return
		}
	}
}

func (s *Source) subscribe(ctx context.Context) (*es.Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.StreamURI, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range s.cfg.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	stream, err := es.SubscribeWithRequest("", req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.stream = stream
	closed := s.closed
	s.mu.Unlock()
	if closed {
		stream.Close()
		return nil, fmt.Errorf("source closed during subscribe")
	}
	return stream, nil
}

// processEvents reads from the stream until it ends, ctx is cancelled, or
// the read-timeout watchdog fires. Returns true if the caller should stop
// retrying entirely (context cancelled).
func (s *Source) processEvents(ctx context.Context, stream *es.Stream) bool {
	watchdog := time.NewTimer(s.cfg.ReadTimeout)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-watchdog.C:
			s.logger.Warnw("streaming read timeout, forcing reconnect")
			s.status.SetStateWithError(status.Interrupted, &status.LastError{
				Kind: status.ErrNetworkError, Message: "read timeout", Time: time.Now(),
			})
			return false
		case err, ok := <-stream.Errors:
			if !ok {
				return false
			}
			s.logger.Warnw("streaming error", "error", err)
			s.status.SetStateWithError(status.Interrupted, &status.LastError{
				Kind: status.ErrNetworkError, Message: err.Error(), Time: time.Now(),
			})
			return false
		case ev, ok := <-stream.Events:
			if !ok {
				return false
			}
			if !watchdog.Stop() {
				<-watchdog.C
			}
			watchdog.Reset(s.cfg.ReadTimeout)
			s.dispatch(ev)
		}
	}
}

func (s *Source) dispatch(ev es.Event) {
	switch ev.Event() {
	case eventPut:
		s.handlePut([]byte(ev.Data()))
	case eventPatch:
		s.handlePatch([]byte(ev.Data()))
	case eventDelete:
		s.handleDelete([]byte(ev.Data()))
	default:
		s.logger.Debugw("ignoring unrecognised stream event", "event", ev.Event())
	}
}

func (s *Source) handlePut(data []byte) {
	snap, err := wire.DecodePutData(data)
	if err != nil {
		s.invalidData(err)
		return
	}
	flags := make(map[string]fmodel.FlagDescriptor, len(snap.Flags))
	for key, fj := range snap.Flags {
		flag, err := wire.DecodeFlag(fj)
		if err != nil {
			s.invalidData(err)
			return
		}
		flags[key] = fmodel.PresentFlag(flag)
	}
	segments := make(map[string]fmodel.SegmentDescriptor, len(snap.Segments))
	for key, sj := range snap.Segments {
		seg, err := wire.DecodeSegment(sj)
		if err != nil {
			s.invalidData(err)
			return
		}
		segments[key] = fmodel.PresentSegment(seg)
	}
	s.dest.Init(flags, segments)
	s.status.SetState(status.Valid)
}

func (s *Source) handlePatch(raw []byte) {
	var p patchData
	if err := json.Unmarshal(raw, &p); err != nil {
		s.invalidData(err)
		return
	}
	kind, key, ok := parsePath(p.Path)
	if !ok {
		s.logger.Debugw("ignoring patch with unrecognised path", "path", p.Path)
		return
	}
	switch kind {
	case fmodel.Flags:
		var fj wire.FlagJSON
		if err := json.Unmarshal(p.Data, &fj); err != nil {
			s.invalidData(err)
			return
		}
		flag, err := wire.DecodeFlag(fj)
		if err != nil {
			s.invalidData(err)
			return
		}
		s.dest.UpsertFlag(key, fmodel.PresentFlag(flag))
	case fmodel.Segments:
		var sj wire.SegmentJSON
		if err := json.Unmarshal(p.Data, &sj); err != nil {
			s.invalidData(err)
			return
		}
		seg, err := wire.DecodeSegment(sj)
		if err != nil {
			s.invalidData(err)
			return
		}
		s.dest.UpsertSegment(key, fmodel.PresentSegment(seg))
	}
}

func (s *Source) handleDelete(raw []byte) {
	var d deleteData
	if err := json.Unmarshal(raw, &d); err != nil {
		s.invalidData(err)
		return
	}
	kind, key, ok := parsePath(d.Path)
	if !ok {
		s.logger.Debugw("ignoring delete with unrecognised path", "path", d.Path)
		return
	}
	switch kind {
	case fmodel.Flags:
		s.dest.UpsertFlag(key, fmodel.TombstoneFlag(d.Version))
	case fmodel.Segments:
		s.dest.UpsertSegment(key, fmodel.TombstoneSegment(d.Version))
	}
}

func (s *Source) invalidData(err error) {
	s.logger.Warnw("invalid streaming payload", "error", err)
	s.status.SetStateWithError(status.Interrupted, &status.LastError{
		Kind: status.ErrInvalidData, Message: err.Error(), Time: time.Now(),
	})
}

func parsePath(path string) (fmodel.DataKind, string, bool) {
	switch {
	case strings.HasPrefix(path, "/flags/"):
		return fmodel.Flags, strings.TrimPrefix(path, "/flags/"), true
	case strings.HasPrefix(path, "/segments/"):
		return fmodel.Segments, strings.TrimPrefix(path, "/segments/"), true
	default:
		return 0, "", false
	}
}

func (s *Source) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// Close shuts down the outstanding connection, cancelling any in-flight
// connect or read (spec.md §4.8 Shutdown).
func (s *Source) Close() {
	s.mu.Lock()
	s.closed = true
	stream := s.stream
	s.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}
