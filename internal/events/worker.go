package events

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// workerState is one RequestWorker's position in its retry state machine
// (spec.md §4.14), grounded on request_worker.cpp's Idle/FirstChance/
// SecondChance/PermanentlyFailed states.
type workerState int

const (
	stateIdle workerState = iota
	stateFirstChance
	stateSecondChance
	statePermanentlyFailed
)

// outcome classifies an HTTP attempt the way request_worker.cpp's
// IsSuccess/IsRecoverableFailure do.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRecoverable
	outcomePermanent
)

func classify(statusCode int, transportErr error) outcome {
	if transportErr != nil {
		return outcomeRecoverable
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return outcomeSuccess
	case statusCode == 400 || statusCode == 408 || statusCode == 429 || statusCode >= 500:
		return outcomeRecoverable
	default:
		return outcomePermanent
	}
}

// deliveryWorker performs one event-batch delivery attempt, with up to one
// retry (FirstChance -> SecondChance), then reports its outcome to the pool.
type deliveryWorker struct {
	httpClient *http.Client
	eventsURL  string
	sdkKey     string
	retryDelay time.Duration
	logger     *zap.SugaredLogger

	state workerState
}

func newDeliveryWorker(httpClient *http.Client, eventsURL, sdkKey string, retryDelay time.Duration, logger *zap.SugaredLogger) *deliveryWorker {
	return &deliveryWorker{httpClient: httpClient, eventsURL: eventsURL, sdkKey: sdkKey, retryDelay: retryDelay, logger: logger}
}

func (w *deliveryWorker) idle() bool { return w.state == stateIdle }

// deliver runs the full FirstChance[->SecondChance] sequence for one batch
// and reports the result via the pool-supplied callbacks. It blocks the
// calling goroutine for the duration of both attempts (including the retry
// wait), matching request_worker.cpp's one-worker-per-in-flight-request
// model: the pool dedicates a goroutine per acquired worker.
func (w *deliveryWorker) deliver(ctx context.Context, body []byte, onServerTime func(time.Time), onPermanentFailure func(statusCode int)) {
	w.state = stateFirstChance
	result, ok := w.attempt(ctx, body)
	if !ok {
		w.state = stateIdle
		return
	}
	switch classify(result.statusCode, result.err) {
	case outcomeSuccess:
		if t, ok := parseDateHeader(result.dateHeader); ok {
			onServerTime(t)
		}
		w.state = stateIdle
		return
	case outcomePermanent:
		onPermanentFailure(result.statusCode)
		w.state = statePermanentlyFailed
		return
	}

	w.state = stateSecondChance
	select {
	case <-time.After(w.retryDelay):
	case <-ctx.Done():
		w.state = stateIdle
		return
	}
	result, ok = w.attempt(ctx, body)
	if !ok {
		w.state = stateIdle
		return
	}
	switch classify(result.statusCode, result.err) {
	case outcomeSuccess:
		if t, ok := parseDateHeader(result.dateHeader); ok {
			onServerTime(t)
		}
	case outcomePermanent:
		onPermanentFailure(result.statusCode)
		w.state = statePermanentlyFailed
		return
	}
	// Recoverable on the second attempt: drop the batch, no third try.
	w.state = stateIdle
}

type attemptResult struct {
	statusCode int
	dateHeader string
	err        error
}

func (w *deliveryWorker) attempt(ctx context.Context, body []byte) (attemptResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.eventsURL, bytes.NewReader(body))
	if err != nil {
		w.logger.Errorw("failed to build event delivery request", "error", err)
		return attemptResult{}, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", w.sdkKey)
	req.Header.Set("X-LaunchDarkly-Event-Schema", "4")
	req.Header.Set("X-LaunchDarkly-Payload-Id", uuid.NewString())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Warnw("event delivery transport error", "error", err)
		return attemptResult{err: err}, true
	}
	defer resp.Body.Close()
	return attemptResult{statusCode: resp.StatusCode, dateHeader: resp.Header.Get("Date")}, true
}

func parseDateHeader(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
