package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// Memory delivers events to in-process subscribers. A subscriber that
// falls behind loses events rather than stalling the publisher.
type Memory struct {
	mu      sync.RWMutex
	nextSub int
	subs    map[int]chan Event
	dropped atomic.Uint64
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a func that closes it.
func (m *Memory) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	m.mu.Lock()
	key := m.nextSub
	m.nextSub++
	m.subs[key] = ch
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, key)
			m.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers is the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (m *Memory) Dropped() uint64 {
	return m.dropped.Load()
}
