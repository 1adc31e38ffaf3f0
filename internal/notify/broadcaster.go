// Package notify fans out catalog change signals to interested subscribers.
// Signals carry no payload; receivers re-read the catalog on wakeup.
package notify

import "sync"

// Broadcaster delivers change signals to all current subscribers. Delivery is
// best-effort: a subscriber that has not drained its pending signal does not
// block the publisher, and coalescing multiple signals into one is acceptable
// because signals carry no data.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan struct{})}
}

// Subscribe registers a new subscriber and returns its signal channel plus a
// cancel function that must be called when the subscriber is done.
func (b *Broadcaster) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Broadcast signals every subscriber without blocking. A subscriber with an
// undrained signal already pending is skipped.
func (b *Broadcaster) Broadcast() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Len reports the number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
