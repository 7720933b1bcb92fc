package jobs

import "sync"

// EventType classifies lifecycle messages emitted by the queue.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventMetadata  EventType = "metadata"
	EventProgress  EventType = "progress"
	EventStatus    EventType = "status"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
	EventRemoved   EventType = "removed"
	EventResized   EventType = "resized"
)

// Event is one lifecycle or progress notification. Job is a snapshot copy;
// observers may keep it without racing the live job.
type Event struct {
	JobID   string    `json:"jobId"`
	Type    EventType `json:"type"`
	Job     *Job      `json:"job,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Bus fans events out to registered observers (UI, persistence, logs).
// Delivery is at-least-once per live observer; a subscriber that falls
// behind its buffer misses events rather than blocking publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a channel that receives published events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 100)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()

	close(ch)
}

// Publish sends an event to all subscribers without blocking.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}
