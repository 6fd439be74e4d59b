// Package events implements the asynchronous analytics-event pipeline
// (spec.md §4.13-§4.15): an outbox + summariser fed by a single-consumer
// dispatcher loop, periodic flush via a fixed-size delivery worker pool,
// each worker running its own retry state machine.
//
// Grounded on original_source/libs/common/src/events/{dispatcher.cpp,
// request_worker.cpp,worker_pool.cpp,summary_state.cpp}, translated from
// dispatcher.cpp's boost::asio::post single-consumer idiom into a Go
// channel-driven goroutine loop.
package events

import (
	"time"

	"github.com/flagkit/core/internal/freason"
	"github.com/flagkit/core/internal/fval"
)

// EvaluationEvent is produced by an evaluator call site (spec.md §4.13).
// It always updates the summariser; it only becomes a full "feature" event
// on the wire when TrackEvents is set, DebugEventsUntilDate is in the
// future, or the matched rule/fallthrough itself carries trackEvents.
type EvaluationEvent struct {
	CreationDate         time.Time
	FlagKey              string
	Version              int
	HasVariation         bool
	Variation            int
	Value                fval.Value
	Default              fval.Value
	Reason               freason.Reason
	HasReason            bool
	PrereqOf             string
	HasPrereqOf          bool
	ContextKeys          map[string]string
	ContextKinds         []string
	TrackEvents          bool
	DebugEventsUntilDate int64
}

func (e EvaluationEvent) shouldEmitFullEvent(now time.Time) bool {
	return e.TrackEvents || (e.DebugEventsUntilDate > 0 && time.UnixMilli(e.DebugEventsUntilDate).After(now))
}

// IdentifyEvent records a host-initiated Identify call.
type IdentifyEvent struct {
	CreationDate time.Time
	ContextJSON  []byte // not written to the identify event's wire form by the dispatcher
}

// CustomEvent records a host-initiated Track call.
type CustomEvent struct {
	CreationDate   time.Time
	Key            string
	ContextKeys    map[string]string
	Data           fval.Value
	HasData        bool
	HasMetricValue bool
	MetricValue    float64
}

// featureEventJSON is the wire shape of a "feature" event.
type featureEventJSON struct {
	Kind         string            `json:"kind"`
	CreationDate int64             `json:"creationDate"`
	Key          string            `json:"key"`
	Version      int               `json:"version"`
	ContextKeys  map[string]string `json:"contextKeys"`
	Variation    *int              `json:"variation,omitempty"`
	Value        fval.Value        `json:"value"`
	Default      fval.Value        `json:"default"`
	Reason       *reasonJSON       `json:"reason,omitempty"`
	PrereqOf     *string           `json:"prereqOf,omitempty"`
}

type reasonJSON struct {
	Kind            string  `json:"kind"`
	RuleIndex       *int    `json:"ruleIndex,omitempty"`
	RuleID          *string `json:"ruleId,omitempty"`
	PrerequisiteKey *string `json:"prerequisiteKey,omitempty"`
	ErrorKind       *string `json:"errorKind,omitempty"`
	InExperiment    bool    `json:"inExperiment,omitempty"`
}

type identifyEventJSON struct {
	Kind         string `json:"kind"`
	CreationDate int64  `json:"creationDate"`
}

type customEventJSON struct {
	Kind         string            `json:"kind"`
	CreationDate int64             `json:"creationDate"`
	Key          string            `json:"key"`
	ContextKeys  map[string]string `json:"contextKeys"`
	Data         fval.Value        `json:"data,omitempty"`
	MetricValue  *float64          `json:"metricValue,omitempty"`
}

func toFeatureEventJSON(e EvaluationEvent) featureEventJSON {
	out := featureEventJSON{
		Kind:         "feature",
		CreationDate: e.CreationDate.UnixMilli(),
		Key:          e.FlagKey,
		Version:      e.Version,
		ContextKeys:  e.ContextKeys,
		Value:        e.Value,
		Default:      e.Default,
	}
	if e.HasVariation {
		v := e.Variation
		out.Variation = &v
	}
	if e.HasReason {
		out.Reason = reasonToJSON(e.Reason)
	}
	if e.HasPrereqOf {
		out.PrereqOf = &e.PrereqOf
	}
	return out
}

func reasonToJSON(r freason.Reason) *reasonJSON {
	out := &reasonJSON{Kind: string(r.Kind()), InExperiment: r.InExperiment()}
	if idx, ok := r.RuleIndex(); ok {
		out.RuleIndex = &idx
		id := r.RuleID()
		out.RuleID = &id
	}
	if r.Kind() == freason.PrerequisiteFailed {
		key := r.PrerequisiteKey()
		out.PrerequisiteKey = &key
	}
	if r.Kind() == freason.Error {
		s := string(r.ErrorKind())
		out.ErrorKind = &s
	}
	return out
}
