package tuned

import (
	"sync"
	"time"
)

// EventKind labels the study lifecycle events carried on a study's stream.
type EventKind string

const (
	EventTrialCreated   EventKind = "trial-created"
	EventTrialCompleted EventKind = "trial-completed"
	EventStudyPaused    EventKind = "study-paused"
	EventStudyCompleted EventKind = "study-completed"
	EventStudyFailed    EventKind = "study-failed"
)

// Event is one progress notification. TrialStatus and Score are set on
// trial events; Progress is the study's completed-over-budget fraction at
// emission time.
type Event struct {
	Kind        EventKind `json:"kind"`
	StudyID     string    `json:"study_id"`
	TrialID     string    `json:"trial_id,omitempty"`
	TrialNumber int       `json:"trial_number,omitempty"`
	TrialStatus string    `json:"trial_status,omitempty"`
	Score       *float64  `json:"score,omitempty"`
	Progress    float64   `json:"progress"`
	Time        time.Time `json:"time"`
}

// subscriberBuffer bounds each subscriber channel; slow consumers drop
// events rather than stalling the control loop.
const subscriberBuffer = 64

// broadcaster fans events out to per-study subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// subscribe registers a new consumer. The returned cancel func detaches it
// and closes the channel.
func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers the event to every subscriber without blocking.
func (b *broadcaster) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber fell behind; drop rather than stall the loop.
		}
	}
}

// closeAll detaches and closes every subscriber, used on study deletion.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
