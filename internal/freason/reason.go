// Package freason defines EvaluationReason, EvaluationDetail, and the
// evaluation error-kind taxonomy (spec.md §3, §7): these are plain data,
// never Go error values, so that evaluation itself is infallible from the
// caller's perspective.
package freason

// Kind discriminates the variants of an EvaluationReason.
type Kind string

const (
	Off                Kind = "OFF"
	TargetMatch        Kind = "TARGET_MATCH"
	RuleMatch          Kind = "RULE_MATCH"
	PrerequisiteFailed Kind = "PREREQUISITE_FAILED"
	Fallthrough        Kind = "FALLTHROUGH"
	Error              Kind = "ERROR"
)

// ErrorKind enumerates the ways an evaluation can fail to produce a trusted
// value (spec.md §3).
type ErrorKind string

const (
	ErrClientNotReady   ErrorKind = "CLIENT_NOT_READY"
	ErrUserNotSpecified ErrorKind = "USER_NOT_SPECIFIED"
	ErrFlagNotFound     ErrorKind = "FLAG_NOT_FOUND"
	ErrMalformedFlag    ErrorKind = "MALFORMED_FLAG"
	ErrWrongType        ErrorKind = "WRONG_TYPE"
	ErrException        ErrorKind = "EXCEPTION"
)

// Reason explains how an evaluation arrived at its result value.
type Reason struct {
	kind            Kind
	ruleIndex       int
	hasRuleIndex    bool
	ruleID          string
	prerequisiteKey string
	inExperiment    bool
	errorKind       ErrorKind
}

func NewOff() Reason { return Reason{kind: Off} }

func NewTargetMatch() Reason { return Reason{kind: TargetMatch} }

func NewRuleMatch(index int, ruleID string, inExperiment bool) Reason {
	return Reason{kind: RuleMatch, ruleIndex: index, hasRuleIndex: true, ruleID: ruleID, inExperiment: inExperiment}
}

func NewPrerequisiteFailed(key string) Reason {
	return Reason{kind: PrerequisiteFailed, prerequisiteKey: key}
}

func NewFallthrough(inExperiment bool) Reason {
	return Reason{kind: Fallthrough, inExperiment: inExperiment}
}

func NewError(kind ErrorKind) Reason {
	return Reason{kind: Error, errorKind: kind}
}

func (r Reason) Kind() Kind { return r.kind }

func (r Reason) RuleIndex() (int, bool) { return r.ruleIndex, r.hasRuleIndex }

func (r Reason) RuleID() string { return r.ruleID }

func (r Reason) PrerequisiteKey() string { return r.prerequisiteKey }

func (r Reason) InExperiment() bool { return r.inExperiment }

func (r Reason) ErrorKind() ErrorKind { return r.errorKind }

func (r Reason) String() string {
	switch r.kind {
	case RuleMatch:
		return "RuleMatch(" + r.ruleID + ")"
	case PrerequisiteFailed:
		return "PrerequisiteFailed(" + r.prerequisiteKey + ")"
	case Error:
		return "Error(" + string(r.errorKind) + ")"
	default:
		return string(r.kind)
	}
}

// Detail is the result of an evaluation: a typed value, the index of the
// variation that produced it (if any), and the reason.
type Detail[T any] struct {
	Value           T
	VariationIndex  int
	HasVariation    bool
	Reason          Reason
}

// NewDetail builds a Detail with a known variation index.
func NewDetail[T any](value T, variationIndex int, reason Reason) Detail[T] {
	return Detail[T]{Value: value, VariationIndex: variationIndex, HasVariation: true, Reason: reason}
}

// NewDetailWithoutVariation builds a Detail with no variation index (e.g.
// the flag is off with no offVariation configured).
func NewDetailWithoutVariation[T any](value T, reason Reason) Detail[T] {
	return Detail[T]{Value: value, Reason: reason}
}

// IsDefaultValue reports whether this detail carries no resolved variation
// (i.e. the caller-supplied default was returned).
func (d Detail[T]) IsDefaultValue() bool { return !d.HasVariation }
