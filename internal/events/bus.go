package events

import (
	"sync"
	"sync/atomic"
)

// defaultBuffer holds comfortably more than one session emits: a five-attempt
// session produces at most six attempt events per attempt plus the two session
// markers. A subscriber that drains at all never drops.
const defaultBuffer = 64

type subscriber struct {
	ch      chan Event
	topic   string // "" matches every topic
	session string // "" matches every session
}

func (s *subscriber) wants(topic string, ev Event) bool {
	if s.topic != "" && s.topic != topic {
		return false
	}
	return s.session == "" || s.session == ev.SessionID()
}

// EventBus carries the session lifecycle out of the agent loop: session
// started/finished on TopicSession, the per-attempt stream (generated,
// self-review, validation, compile) on TopicAttempt, batch progress on
// TopicBatch. Delivery is best-effort: a full subscriber buffer drops the
// event for that subscriber only, so a stalled consumer can never stall a
// running session.
type EventBus struct {
	mu      sync.RWMutex
	subs    []*subscriber
	closed  bool
	dropped atomic.Uint64
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe delivers events published to one topic. bufSize <= 0 selects the
// default buffer. On a closed bus the returned channel is already closed.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.add(&subscriber{topic: topic}, bufSize)
}

// SubscribeAll delivers every event regardless of topic.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	return b.add(&subscriber{}, bufSize)
}

// SubscribeSession delivers only the events of one session, across topics.
// Lets a batch consumer follow a single part without filtering the whole
// stream itself.
func (b *EventBus) SubscribeSession(sessionID string, bufSize int) <-chan Event {
	return b.add(&subscriber{session: sessionID}, bufSize)
}

func (b *EventBus) add(sub *subscriber, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBuffer
	}
	sub.ch = make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish fans the event out to every matching subscriber without blocking.
// Publishing on a closed bus is a no-op.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !sub.wants(topic, event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many events were discarded because a subscriber's
// buffer was full.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Idempotent.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
}
