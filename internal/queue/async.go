package queue

import (
	"context"
	"errors"

	"github.com/iliyamo/videotube-api/internal/logging"
)

// ErrBufferFull is returned by AsyncPublisher.Publish when the buffer has
// no room; the event is dropped.
var ErrBufferFull = errors.New("event buffer full")

// Sink delivers one event.  *Publisher implements it.
type Sink interface {
	Publish(ctx context.Context, ev AuthEvent) error
}

// AsyncPublisher decouples request handling from broker latency.  Publish
// only enqueues; Run delivers events to the sink one at a time.
type AsyncPublisher struct {
	sink   Sink
	events chan AuthEvent
	log    logging.Logger
}

func NewAsyncPublisher(sink Sink, buffer int, log logging.Logger) *AsyncPublisher {
	if buffer < 1 {
		buffer = 1
	}
	return &AsyncPublisher{sink: sink, events: make(chan AuthEvent, buffer), log: log}
}

func (a *AsyncPublisher) Publish(_ context.Context, ev AuthEvent) error {
	select {
	case a.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run delivers queued events until ctx is cancelled.  Delivery failures
// are logged and the event is dropped.
func (a *AsyncPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			if err := a.sink.Publish(ctx, ev); err != nil {
				a.log.Warn(ctx, "deliver auth event failed", "type", ev.Type, "user_id", ev.UserID, "err", err)
			}
		}
	}
}
