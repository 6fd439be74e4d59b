// Package client wires a data system, the evaluator, and the event
// pipeline into the host-facing surface (spec.md §6 "Host-facing client
// surface"): Start, the typed Variation* accessors, Identify, Track, and
// an orderly Close.
//
// Grounded on dorkly/monitor.go's "wrap an SDK client with typed
// accessors" idiom (adapted away from importing the real LaunchDarkly
// SDK) and spec.md §5's seven-step Close teardown.
package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flagkit/core/internal/backgroundsync"
	"github.com/flagkit/core/internal/depgraph"
	"github.com/flagkit/core/internal/evaluation"
	"github.com/flagkit/core/internal/events"
	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/freason"
	"github.com/flagkit/core/internal/fval"
	"github.com/flagkit/core/internal/lazyload"
)

// flagReader is satisfied by either a lazyload.System or a
// backgroundsync.System's underlying store; it is what the evaluator reads
// from, and what AllFlagsState/Initialized delegate to.
type flagReader interface {
	evaluation.FlagReader
	evaluation.SegmentReader
	AllFlags() map[string]*fmodel.Flag
	Initialized() bool
}

// Client is the top-level SDK core object: one per SDK key, owning exactly
// one data system, one evaluator, and one event dispatcher.
type Client struct {
	logger *zap.SugaredLogger

	bgSync *backgroundsync.System
	lazy   *lazyload.System
	reader flagReader

	evaluator  *evaluation.Evaluator
	dispatcher *events.Dispatcher

	closeOnce bool
}

// NewWithBackgroundSync builds a Client backed by the streaming or polling
// data system (bgSync must already be constructed via
// backgroundsync.NewStreamingSystem/NewPollingSystem).
func NewWithBackgroundSync(bgSync *backgroundsync.System, eventsCfg events.Config, logger *zap.SugaredLogger) *Client {
	store := bgSync.Store()
	c := &Client{logger: logger, bgSync: bgSync, reader: store}
	c.evaluator = evaluation.NewEvaluator(store, store, logger)
	c.dispatcher = events.NewDispatcher(eventsCfg, c.onServerTime, c.onPermanentFailure, logger)
	return c
}

// NewWithLazyLoad builds a Client backed by the lazy-load data system.
func NewWithLazyLoad(lazy *lazyload.System, eventsCfg events.Config, logger *zap.SugaredLogger) *Client {
	c := &Client{logger: logger, lazy: lazy, reader: lazy}
	c.evaluator = evaluation.NewEvaluator(lazy, lazy, logger)
	c.dispatcher = events.NewDispatcher(eventsCfg, c.onServerTime, c.onPermanentFailure, logger)
	return c
}

// Start begins background ingestion (a no-op for the lazy-load data
// system, which has no persistent subscription to start). It returns
// immediately; readiness is observed via Initialized() or
// AddStatusListener.
func (c *Client) Start(ctx context.Context) {
	if c.bgSync != nil {
		c.bgSync.Initialize(ctx)
	}
}

// Initialized reports whether the data system has completed its first
// successful ingestion (spec.md §9).
func (c *Client) Initialized() bool {
	return c.reader.Initialized()
}

// AddFlagChangeListener registers l for change notifications; only
// meaningful for the background-sync data system (spec.md §4.16), since
// lazy-load has no persistent subscription to observe. Returns a no-op
// remover when there is nothing to subscribe to.
func (c *Client) AddFlagChangeListener(l depgraph.Listener) func() {
	if c.bgSync != nil {
		return c.bgSync.AddChangeListener(l)
	}
	return func() {}
}

func (c *Client) onServerTime(t time.Time) {
	c.logger.Debugw("server time received", "time", t)
}

func (c *Client) onPermanentFailure(statusCode int) {
	c.logger.Errorw("event delivery permanently failed", "statusCode", statusCode)
}

// clientEventScope adapts evaluation.EventScope onto the dispatcher: every
// terminal evaluation path is translated into an EvaluationEvent.
type clientEventScope struct {
	dispatcher *events.Dispatcher
	now        func() time.Time
}

func (s clientEventScope) RecordEvaluation(flag *fmodel.Flag, ctx fctx.Context, detail freason.Detail[fval.Value], defaultValue fval.Value) {
	s.dispatcher.Send(toEvaluationEvent(flag, ctx, detail, defaultValue, "", false, s.now()))
}

func (s clientEventScope) RecordPrerequisiteEvaluation(prereqFlag *fmodel.Flag, ctx fctx.Context, detail freason.Detail[fval.Value], prereqOfKey string) {
	s.dispatcher.Send(toEvaluationEvent(prereqFlag, ctx, detail, fval.Null(), prereqOfKey, true, s.now()))
}

func toEvaluationEvent(flag *fmodel.Flag, ctx fctx.Context, detail freason.Detail[fval.Value], defaultValue fval.Value, prereqOfKey string, hasPrereqOf bool, now time.Time) events.EvaluationEvent {
	e := events.EvaluationEvent{
		CreationDate:         now,
		FlagKey:              flag.Key,
		Version:              flag.Version,
		HasVariation:         detail.HasVariation,
		Variation:            detail.VariationIndex,
		Value:                detail.Value,
		Default:              defaultValue,
		Reason:               detail.Reason,
		HasReason:            true,
		PrereqOf:             prereqOfKey,
		HasPrereqOf:          hasPrereqOf,
		ContextKeys:          contextKeys(ctx),
		ContextKinds:         ctx.Kinds(),
		TrackEvents:          flag.TrackEvents || ruleTracksEvents(flag, detail.Reason) || (detail.Reason.Kind() == freason.Fallthrough && flag.TrackEventsFallthrough),
		DebugEventsUntilDate: flag.DebugEventsUntilDate,
	}
	return e
}

// ruleTracksEvents reports whether the rule that produced reason carries its
// own trackEvents flag (spec.md line 66: each rule is its own
// (id, clauses, variationOrRollout, trackEvents) tuple, independent of the
// flag-level TrackEvents/TrackEventsFallthrough fields).
func ruleTracksEvents(flag *fmodel.Flag, reason freason.Reason) bool {
	if reason.Kind() != freason.RuleMatch {
		return false
	}
	index, ok := reason.RuleIndex()
	if !ok || index < 0 || index >= len(flag.Rules) {
		return false
	}
	return flag.Rules[index].TrackEvents
}

func contextKeys(ctx fctx.Context) map[string]string {
	kinds := ctx.Kinds()
	keys := make(map[string]string, len(kinds))
	for _, kind := range kinds {
		keys[kind] = ctx.IndividualContextByKind(kind).Key()
	}
	return keys
}

// boolVariation and friends are the typed host-facing accessors (spec.md
// §6: thin wrappers that discard or cast the evaluator's fval.Value).

func (c *Client) evaluate(flagKey string, ctx fctx.Context, defaultValue fval.Value) freason.Detail[fval.Value] {
	scope := clientEventScope{dispatcher: c.dispatcher, now: time.Now}
	return c.evaluator.Evaluate(flagKey, ctx, c.Initialized(), defaultValue, scope)
}

// BoolVariation evaluates flagKey as a boolean, returning defaultValue if
// the flag is missing or not boolean-typed.
func (c *Client) BoolVariation(flagKey string, ctx fctx.Context, defaultValue bool) bool {
	detail := c.evaluate(flagKey, ctx, fval.Bool(defaultValue))
	if detail.Value.Type() != fval.BoolType {
		return defaultValue
	}
	return detail.Value.BoolValue()
}

// StringVariation evaluates flagKey as a string.
func (c *Client) StringVariation(flagKey string, ctx fctx.Context, defaultValue string) string {
	detail := c.evaluate(flagKey, ctx, fval.String(defaultValue))
	if detail.Value.Type() != fval.StringType {
		return defaultValue
	}
	return detail.Value.StringValue()
}

// IntVariation evaluates flagKey as an integer.
func (c *Client) IntVariation(flagKey string, ctx fctx.Context, defaultValue int) int {
	detail := c.evaluate(flagKey, ctx, fval.Int(defaultValue))
	if detail.Value.Type() != fval.NumberType {
		return defaultValue
	}
	return detail.Value.IntValue()
}

// DoubleVariation evaluates flagKey as a float64.
func (c *Client) DoubleVariation(flagKey string, ctx fctx.Context, defaultValue float64) float64 {
	detail := c.evaluate(flagKey, ctx, fval.Float64(defaultValue))
	if detail.Value.Type() != fval.NumberType {
		return defaultValue
	}
	return detail.Value.Float64Value()
}

// JSONVariation evaluates flagKey as an arbitrary JSON-shaped value.
func (c *Client) JSONVariation(flagKey string, ctx fctx.Context, defaultValue fval.Value) fval.Value {
	return c.evaluate(flagKey, ctx, defaultValue).Value
}

// BoolVariationDetail is BoolVariation's *Detail variant, exposing the
// evaluation reason.
func (c *Client) BoolVariationDetail(flagKey string, ctx fctx.Context, defaultValue bool) freason.Detail[fval.Value] {
	return c.evaluate(flagKey, ctx, fval.Bool(defaultValue))
}

// AllFlagsState bootstraps a client-side flag bundle for ctx without
// emitting analytics events (spec.md §3).
func (c *Client) AllFlagsState(ctx fctx.Context, opts evaluation.AllFlagsOptions) *fmodel.FlagsState {
	if !c.Initialized() {
		return fmodel.NewFlagsState(false)
	}
	return c.evaluator.AllFlagsState(ctx, c.reader.AllFlags(), opts)
}

// Identify emits an identify event. The event carries only its creation
// time; ctx is not included in it.
func (c *Client) Identify(ctx fctx.Context) {
	c.dispatcher.Send(events.IdentifyEvent{CreationDate: time.Now()})
}

// Track emits a custom event for ctx.
func (c *Client) Track(key string, ctx fctx.Context, data fval.Value, hasData bool) {
	c.dispatcher.Send(events.CustomEvent{
		CreationDate: time.Now(),
		Key:          key,
		ContextKeys:  contextKeys(ctx),
		Data:         data,
		HasData:      hasData,
	})
}

// TrackMetric emits a custom event carrying a numeric metric value.
func (c *Client) TrackMetric(key string, ctx fctx.Context, metricValue float64) {
	c.dispatcher.Send(events.CustomEvent{
		CreationDate:   time.Now(),
		Key:            key,
		ContextKeys:    contextKeys(ctx),
		HasMetricValue: true,
		MetricValue:    metricValue,
	})
}

// FlushAsync requests an out-of-band flush of the event pipeline.
func (c *Client) FlushAsync() {
	c.dispatcher.Flush()
}

// Close tears the client down in the order spec.md §5 requires: data
// source shutdown (bounded by shutdownTimeout), then a final event flush
// and dispatcher close. Step (1) of the spec's ordering ("stop accepting
// new Variation* calls") is a host contract, not enforced here.
func (c *Client) Close(shutdownTimeout time.Duration) {
	if c.closeOnce {
		return
	}
	c.closeOnce = true

	if c.bgSync != nil {
		done := make(chan struct{})
		go func() {
			c.bgSync.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			c.logger.Warnw("data source shutdown timed out", "timeout", shutdownTimeout)
		}
	}

	c.dispatcher.Close()
}
