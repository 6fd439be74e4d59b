package events

import "go.uber.org/zap"

// outbox is a bounded FIFO of wire-ready events awaiting the next flush.
// Pushing past capacity drops the new event and logs a warning only once
// per overflow streak (grounded on dispatcher.cpp's full_outbox_encountered_
// bool, which gates the "events dropped" warning to the first overflow
// since the last successful, non-overflowing push).
type outbox struct {
	capacity int
	items    []any
	warned   bool
	logger   *zap.SugaredLogger
}

func newOutbox(capacity int, logger *zap.SugaredLogger) *outbox {
	return &outbox{capacity: capacity, logger: logger}
}

// push appends event, dropping it (and reporting overflow) if the outbox is
// already at capacity. Returns true if the event was accepted.
func (o *outbox) push(event any) bool {
	if len(o.items) >= o.capacity {
		if !o.warned {
			o.logger.Warnw("event outbox full, dropping events", "capacity", o.capacity)
			o.warned = true
		}
		return false
	}
	o.items = append(o.items, event)
	o.warned = false
	return true
}

// drain returns and clears the current contents.
func (o *outbox) drain() []any {
	items := o.items
	o.items = nil
	return items
}

func (o *outbox) len() int { return len(o.items) }
