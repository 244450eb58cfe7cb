package jobs

import (
	"sync"
	"time"

	"image-stitcher/internal/domain"
)

// EventType classifies messages emitted during job execution.
type EventType string

const (
	EventTypeStatus EventType = "status"
	EventTypeStage  EventType = "stage"
	EventTypeLog    EventType = "log"
	EventTypeResult EventType = "result"
	EventTypeError  EventType = "error"
	EventTypeExport EventType = "export"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq         int64            `json:"seq"`
	Timestamp   time.Time        `json:"timestamp"`
	JobID       string           `json:"jobId"`
	Generation  uint64           `json:"generation,omitempty"`
	Type        EventType        `json:"type"`
	Status      domain.JobStatus `json:"status,omitempty"`
	Stage       string           `json:"stage,omitempty"`
	Message     string           `json:"message,omitempty"`
	Command     string           `json:"command,omitempty"`
	Args        []string         `json:"args,omitempty"`
	ExitCode    int              `json:"exitCode,omitempty"`
	Stdout      string           `json:"stdout,omitempty"`
	Stderr      string           `json:"stderr,omitempty"`
	OutputPath  string           `json:"outputPath,omitempty"`
	MimeType    string           `json:"mimeType,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Reference   string           `json:"reference,omitempty"`
}

// EventBus stores recent events, provides incremental reads and pushes new
// events to subscribers.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	subs      map[chan Event]struct{}
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[chan Event]struct{}),
	}
}

// Publish appends one event, assigns sequence and timestamp, and delivers it
// to subscribers. A subscriber whose buffer is full misses the event but can
// recover it with Since.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Subscribe returns a channel receiving every event published from now on
// and a function that unsubscribes and closes it.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}
