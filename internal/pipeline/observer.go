package pipeline

import (
	"github.com/google/uuid"
)

// EventKind labels a progress event.
type EventKind string

const (
	EventSourceStarted  EventKind = "source-started"
	EventPageFetched    EventKind = "page-fetched"
	EventSourceFinished EventKind = "source-finished"
	EventSourceFailed   EventKind = "source-failed"
	EventFiltered       EventKind = "filtered"
	EventMerged         EventKind = "merged"
	EventTranslated     EventKind = "translated"
)

// Event is one progress notification from a pipeline run.
type Event struct {
	RunID   uuid.UUID `json:"run_id"`
	Kind    EventKind `json:"kind"`
	Source  string    `json:"source,omitempty"`
	Message string    `json:"message,omitempty"`
	Page    int       `json:"page,omitempty"`
	Count   int       `json:"count,omitempty"`
}

// Observer receives progress events. Implementations must not block; the
// pipeline calls Progress inline.
type Observer interface {
	Progress(Event)
}

// ChannelObserver buffers events on a bounded channel. When the buffer is
// full events are dropped rather than stalling the pipeline, so a slow
// consumer only loses progress detail, never correctness.
type ChannelObserver struct {
	events chan Event
}

// NewChannelObserver builds an observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelObserver{events: make(chan Event, buffer)}
}

func (o *ChannelObserver) Progress(e Event) {
	select {
	case o.events <- e:
	default:
	}
}

// Events exposes the receive side for the consumer to drain.
func (o *ChannelObserver) Events() <-chan Event { return o.events }

// Close closes the event channel. Call only after the pipeline run returned.
func (o *ChannelObserver) Close() { close(o.events) }
