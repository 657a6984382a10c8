package events

import (
	"sync"
)

// SubscriberBuffer is the bounded capacity of each subscription channel.
const SubscriberBuffer = 32

// Bus is a broadcast channel of one task's progress events.
//
// Every subscriber receives every event. A subscriber which joins late
// first receives a synthesized status snapshot plus one intermediate per
// already-populated stage, then live events. Publishing never blocks the
// pipeline: when a subscriber's buffer is full, the oldest buffered
// non-terminal event is dropped in favor of the newer one. The terminal
// event is never dropped, is always last, and closes all subscriptions.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event

	// Replay state for late subscribers.
	status   *Event
	replay   []Event
	terminal *Event
}

// NewBus returns an empty Bus ready for publishing and subscription.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel
// together with an unsubscribe function. The channel is closed after the
// terminal event (immediately, if the bus is already terminal).
// Unsubscribing more than once is a no-op.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ch = make(chan Event, SubscriberBuffer)

	// Replay burst: synthesized status, then populated intermediates
	// in stage order.
	if b.status != nil {
		offer(ch, *b.status)
	}
	for _, ev := range b.replay {
		offer(ch, ev)
	}

	if b.terminal != nil {
		offer(ch, *b.terminal)
		close(ch)
		return ch, func() {}
	}

	var id = b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if ch, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// Publish broadcasts an event to all subscribers and records it for
// replay. Events published after the terminal event are discarded.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.terminal != nil {
		return
	}

	switch ev.Type {
	case TypeStatus:
		var cp = ev
		b.status = &cp
	case TypeIntermediate:
		b.record(ev)
	case TypeComplete, TypeError:
		var cp = ev
		b.terminal = &cp
	}

	for _, ch := range b.subs {
		offer(ch, ev)
	}

	if ev.Terminal() {
		for id, ch := range b.subs {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Terminated reports whether the terminal event was published.
func (b *Bus) Terminated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.terminal != nil
}

// record stores an intermediate for late-subscriber replay. One event is
// kept per stage, except per-note summaries which are kept per index.
func (b *Bus) record(ev Event) {
	if ev.Stage != StagePerNoteSummary {
		for i, prior := range b.replay {
			if prior.Stage == ev.Stage {
				b.replay[i] = ev
				return
			}
		}
	}
	b.replay = append(b.replay, ev)
}

// offer performs a non-blocking send, evicting the oldest buffered event
// to make room when the channel is full. The terminal event is always
// published last, so evicted events are never terminal.
func offer(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
