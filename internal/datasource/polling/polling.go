// Package polling implements the timer-driven HTTP polling data source
// (spec.md §4.9): interval clamping, ETag revalidation, and recoverable vs
// non-recoverable status handling.
//
// Grounded on original_source/.../sources/polling/polling_data_source.cpp;
// the full-snapshot decode reuses the same wire shape as the streaming put
// event.
package polling

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flagkit/core/internal/datasource/status"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fmodel/wire"
)

// MinInterval is the floor below which a configured polling interval is
// logged and raised (spec.md §4.9).
const MinInterval = 30 * time.Second

// Destination is the subset of depgraph.ChangeNotifier's API the polling
// source writes through.
type Destination interface {
	Init(flags map[string]fmodel.FlagDescriptor, segments map[string]fmodel.SegmentDescriptor)
}

// Config configures a Source.
type Config struct {
	PollURI    string
	Headers    http.Header
	Interval   time.Duration
	HTTPClient *http.Client
}

func (c Config) withDefaults(logger *zap.SugaredLogger) Config {
	if c.Interval < MinInterval {
		if logger != nil && c.Interval > 0 {
			logger.Warnw("polling interval below minimum, raising", "configured", c.Interval, "minimum", MinInterval)
		}
		c.Interval = MinInterval
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

// Source is an HTTP-polling data source.
type Source struct {
	cfg    Config
	dest   Destination
	status *status.Manager
	logger *zap.SugaredLogger

	etag string
}

func NewSource(cfg Config, dest Destination, statusMgr *status.Manager, logger *zap.SugaredLogger) *Source {
	return &Source{cfg: cfg.withDefaults(logger), dest: dest, status: statusMgr, logger: logger}
}

// Run polls until ctx is cancelled or a non-recoverable status is observed.
// Each tick is scheduled at max(0, interval-elapsed) after the previous
// attempt completes, so intervals don't accumulate drift.
func (s *Source) Run(ctx context.Context) {
	for {
		start := time.Now()
		terminal := s.poll(ctx)
		if terminal {
			return
		}

		elapsed := time.Since(start)
		wait := s.cfg.Interval - elapsed
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// poll performs a single request/response cycle, returning true if the
// polling loop must terminate permanently.
func (s *Source) poll(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.PollURI, nil)
	if err != nil {
		s.logger.Errorw("failed to build polling request", "error", err)
		return true
	}
	for k, vs := range s.cfg.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		s.logger.Warnw("polling request failed", "error", err)
		s.status.SetStateWithError(status.Interrupted, &status.LastError{
			Kind: status.ErrNetworkError, Message: err.Error(), Time: time.Now(),
		})
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return false
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return s.handleSuccess(resp)
	case isNonRecoverable(resp.StatusCode):
		s.logger.Errorw("polling received non-recoverable status, stopping", "status", resp.StatusCode)
		s.status.SetStateWithError(status.Off, &status.LastError{
			Kind: status.ErrErrorResponse, StatusCode: resp.StatusCode, Time: time.Now(),
		})
		return true
	default:
		s.status.SetStateWithError(status.Interrupted, &status.LastError{
			Kind: status.ErrErrorResponse, StatusCode: resp.StatusCode, Time: time.Now(),
		})
		return false
	}
}

func (s *Source) handleSuccess(resp *http.Response) bool {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.status.SetStateWithError(status.Interrupted, &status.LastError{
			Kind: status.ErrNetworkError, Message: err.Error(), Time: time.Now(),
		})
		return false
	}
	if len(body) == 0 {
		s.status.SetStateWithError(status.Interrupted, &status.LastError{
			Kind: status.ErrUnknown, Message: "empty response body", Time: time.Now(),
		})
		return false
	}

	snap, err := wire.DecodePutData(body)
	if err != nil {
		s.status.SetStateWithError(status.Interrupted, &status.LastError{
			Kind: status.ErrInvalidData, Message: err.Error(), Time: time.Now(),
		})
		return false
	}

	flags := make(map[string]fmodel.FlagDescriptor, len(snap.Flags))
	for key, fj := range snap.Flags {
		flag, err := wire.DecodeFlag(fj)
		if err != nil {
			s.status.SetStateWithError(status.Interrupted, &status.LastError{
				Kind: status.ErrInvalidData, Message: err.Error(), Time: time.Now(),
			})
			return false
		}
		flags[key] = fmodel.PresentFlag(flag)
	}
	segments := make(map[string]fmodel.SegmentDescriptor, len(snap.Segments))
	for key, sj := range snap.Segments {
		seg, err := wire.DecodeSegment(sj)
		if err != nil {
			s.status.SetStateWithError(status.Interrupted, &status.LastError{
				Kind: status.ErrInvalidData, Message: err.Error(), Time: time.Now(),
			})
			return false
		}
		segments[key] = fmodel.PresentSegment(seg)
	}

	s.dest.Init(flags, segments)
	if etag := resp.Header.Get("ETag"); etag != "" {
		s.etag = etag
	}
	s.status.SetState(status.Valid)
	return false
}

func isNonRecoverable(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}
