package events

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config controls the dispatcher's batching and delivery behavior.
type Config struct {
	EventsURI     string
	SDKKey        string
	FlushInterval time.Duration
	OutboxSize    int
	PoolSize      int
	RetryDelay    time.Duration
	HTTPClient    *http.Client
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 10000
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	return c
}

type command struct {
	kind    commandKind
	event   any
	flushed chan struct{}
	closed  chan struct{}
}

type commandKind int

const (
	cmdSend commandKind = iota
	cmdFlush
	cmdClose
)

// Dispatcher is the single-consumer event pipeline coordinator (spec.md
// §4.13, §5). Send/Flush/Close are posted onto one internal command
// channel and processed strictly FIFO by run's goroutine, so outbox
// ordering and the "summary after its feature events" guarantee hold
// without any locking inside the pipeline itself.
//
// Grounded on dispatcher.cpp's single-threaded io-executor model
// (boost::asio::post), translated into a Go channel + goroutine loop: the
// host's explicit allowance for "goroutines/tasks plus channels" substitutes
// for the native single-threaded executor as long as the same FIFO and
// after-ordering guarantees hold.
type Dispatcher struct {
	cfg    Config
	logger *zap.SugaredLogger

	cmds chan command
	pool *WorkerPool
	done chan struct{}

	now func() time.Time
}

// NewDispatcher builds a Dispatcher and starts its consumer loop.
// onServerTime and onPermanentFailure may be nil.
func NewDispatcher(cfg Config, onServerTime func(time.Time), onPermanentFailure func(statusCode int), logger *zap.SugaredLogger) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		cfg:    cfg,
		logger: logger,
		cmds:   make(chan command, 64),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	d.pool = NewWorkerPool(cfg.PoolSize, cfg.HTTPClient, cfg.EventsURI, cfg.SDKKey, cfg.RetryDelay, onServerTime, onPermanentFailure, logger)
	go d.run()
	return d
}

// Send enqueues an evaluation, identify, or custom event for processing.
// It never blocks on network I/O; the event is merely posted to the
// dispatcher's command channel.
func (d *Dispatcher) Send(event any) {
	d.cmds <- command{kind: cmdSend, event: event}
}

// Flush requests an out-of-band flush and returns once it has been
// processed by the consumer loop (not once delivery completes).
func (d *Dispatcher) Flush() {
	done := make(chan struct{})
	d.cmds <- command{kind: cmdFlush, flushed: done}
	<-done
}

// Close performs a final flush and stops the consumer loop. It does not
// wait for in-flight HTTP deliveries; callers that need that guarantee
// should pair Close with their own bounded wait on outstanding requests.
func (d *Dispatcher) Close() {
	done := make(chan struct{})
	d.cmds <- command{kind: cmdClose, closed: done}
	<-done
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	ob := newOutbox(d.cfg.OutboxSize, d.logger)
	sum := newSummariser(d.now())

	for {
		select {
		case cmd := <-d.cmds:
			switch cmd.kind {
			case cmdSend:
				d.handleSend(cmd.event, ob, sum)
			case cmdFlush:
				d.flush(ob, sum)
				close(cmd.flushed)
			case cmdClose:
				d.flush(ob, sum)
				close(cmd.closed)
				return
			}
		case <-ticker.C:
			d.flush(ob, sum)
		}
	}
}

func (d *Dispatcher) handleSend(event any, ob *outbox, sum *summariser) {
	now := d.now()
	switch e := event.(type) {
	case EvaluationEvent:
		sum.record(e)
		if e.shouldEmitFullEvent(now) {
			ob.push(toFeatureEventJSON(e))
		}
	case IdentifyEvent:
		ob.push(identifyEventJSON{Kind: "identify", CreationDate: e.CreationDate.UnixMilli()})
	case CustomEvent:
		cj := customEventJSON{Kind: "custom", CreationDate: e.CreationDate.UnixMilli(), Key: e.Key, ContextKeys: e.ContextKeys}
		if e.HasData {
			cj.Data = e.Data
		}
		if e.HasMetricValue {
			v := e.MetricValue
			cj.MetricValue = &v
		}
		ob.push(cj)
	default:
		d.logger.Warnw("dropping event of unrecognised type")
	}
}

// flush hands the outbox's contents (plus a finalized summary event, per
// spec.md §5's "summary after its feature events" ordering guarantee) to a
// free pool worker. Per spec.md §4.13, a worker is acquired *before*
// anything is consumed: if none is free, the flush attempt is skipped and
// nothing is drained or reset, so the outbox and summary are intact for a
// future flush to try again.
func (d *Dispatcher) flush(ob *outbox, sum *summariser) {
	if ob.len() == 0 && sum.isEmpty() {
		return
	}

	worker := d.pool.Acquire()
	if worker == nil {
		d.logger.Warnw("no free delivery worker, deferring flush to next interval", "events", ob.len())
		return
	}

	now := d.now()
	batch := ob.drain()
	if !sum.isEmpty() {
		batch = append(batch, sum.finalize(now))
	}

	body, err := json.Marshal(batch)
	if err != nil {
		d.logger.Errorw("failed to serialize event batch", "error", err)
		return
	}
	d.pool.Dispatch(context.Background(), worker, body)
}
