package realtime

import (
	"context"
	"sync"
)

const memoryBufferSize = 64

// MemoryBus fans events out to subscribers inside the current process.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySubscription]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[*memorySubscription]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*memorySubscription, 0, len(b.topics[ev.Topic]))
	for s := range b.topics[ev.Topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(ctx, ev)
	}
	return ctx.Err()
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	s := &memorySubscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, memoryBufferSize),
		done:  make(chan struct{}),
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySubscription]struct{})
	}
	b.topics[topic][s] = struct{}{}
	return s, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Disconnect drops every subscription on topic as if the channel failed.
func (b *MemoryBus) Disconnect(topic string) {
	b.mu.Lock()
	subs := b.topics[topic]
	delete(b.topics, topic)
	b.mu.Unlock()

	for s := range subs {
		s.shutdown()
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[string]map[*memorySubscription]struct{})
	b.mu.Unlock()

	for _, subs := range topics {
		for s := range subs {
			s.shutdown()
		}
	}
	return nil
}

func (b *MemoryBus) remove(s *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.topics, s.topic)
		}
	}
}

type memorySubscription struct {
	bus   *MemoryBus
	topic string
	ch    chan Event

	// done is closed before mu is taken for writing so a blocked deliver
	// releases its read lock.
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan Event { return s.ch }

func (s *memorySubscription) Close() error {
	s.bus.remove(s)
	s.shutdown()
	return nil
}

func (s *memorySubscription) shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *memorySubscription) deliver(ctx context.Context, ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	case <-s.done:
	case <-ctx.Done():
	}
}
