package orchestrators

import (
	"sync"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

// ProgressStream fans scan progress events out to subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses intermediate
// events, but the completed event evicts the oldest buffered one and is always delivered.
type ProgressStream struct {
	mu     sync.Mutex
	subs   map[int]chan entities.ProgressEvent
	nextID int
	closed bool
}

// NewProgressStream creates an open stream with no subscribers
func NewProgressStream() *ProgressStream {
	return &ProgressStream{subs: make(map[int]chan entities.ProgressEvent)}
}

// Subscribe returns a channel of events and a function that ends the subscription.
// The channel is closed on unsubscribe or when the stream closes.
func (s *ProgressStream) Subscribe(buffer int) (<-chan entities.ProgressEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan entities.ProgressEvent, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer
func (s *ProgressStream) Publish(ev entities.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	terminal := ev.Phase == entities.PhaseCompleted
	for _, ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		if !terminal {
			continue
		}
		// Only Publish sends, under mu, so one eviction always frees a slot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends every subscription; later publishes are dropped
func (s *ProgressStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
