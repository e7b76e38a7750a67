package events

import (
	"context"

	"github.com/rs/zerolog"
)

// DefaultQueueSize bounds the number of undelivered events held by a Queue.
const DefaultQueueSize = 64

// Queue is a Publisher that hands events to a bus on a worker goroutine, so
// producers never wait on slow subscribers. Events published while the buffer
// is full are dropped and logged.
type Queue struct {
	bus    Publisher
	ch     chan Event
	logger zerolog.Logger
}

// NewQueue creates a queue in front of bus. size <= 0 selects DefaultQueueSize.
func NewQueue(bus Publisher, size int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		bus:    bus,
		ch:     make(chan Event, size),
		logger: logger.With().Str("component", "event_queue").Logger(),
	}
}

// Publish enqueues event without blocking.
func (q *Queue) Publish(event Event) {
	select {
	case q.ch <- event:
	default:
		q.logger.Warn().Str("type", event.Type).Msg("event queue full, dropping event")
	}
}

// Run delivers queued events until ctx is done. Events still buffered at
// that point are delivered before Run returns.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case event := <-q.ch:
			q.bus.Publish(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-q.ch:
					q.bus.Publish(event)
				default:
					return
				}
			}
		}
	}
}
