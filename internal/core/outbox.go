package core

import (
	"sync/atomic"

	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
)

// outbox is a session's bounded queue of pending events. Enqueueing never
// blocks: when the queue is full the oldest event is dropped.
type outbox struct {
	events  chan *Event
	dropped atomic.Int64
}

func newOutbox(size int) *outbox {
	return &outbox{events: make(chan *Event, size)}
}

func (o *outbox) push(ev *Event) {
	for {
		select {
		case o.events <- ev:
			return
		default:
		}
		select {
		case <-o.events:
			o.dropped.Add(1)
			metrics.EventsDropped.Inc()
		default:
		}
	}
}
