package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"zawj-chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "chat:"

// RedisBus publishes events on Redis Pub/Sub so every server instance sees
// every write.
type RedisBus struct {
	client *redis.Client
	logger *logger.Logger
}

func NewRedisBus(client *redis.Client, log *logger.Logger) *RedisBus {
	return &RedisBus{client: client, logger: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+ev.Topic, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "topic", ev.Topic, "error", err)
		return err
	}
	b.logger.Debug("Published event", "topic", ev.Topic, "table", ev.Table, "type", ev.Type)
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, redisChannelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	recvCtx, cancel := context.WithCancel(context.Background())
	s := &redisSubscription{
		ps:     ps,
		topic:  topic,
		ch:     make(chan Event, memoryBufferSize),
		done:   make(chan struct{}),
		ctx:    recvCtx,
		cancel: cancel,
		logger: b.logger,
	}
	s.wg.Add(1)
	go s.forward()
	b.logger.Debug("Subscribed to topic", "topic", topic)
	return s, nil
}

// Close is a no-op; the redis client is owned by the caller.
func (b *RedisBus) Close() error { return nil }

type redisSubscription struct {
	ps     *redis.PubSub
	topic  string
	ch     chan Event
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
	logger *logger.Logger
}

func (s *redisSubscription) Events() <-chan Event { return s.ch }

// forward uses Receive, not Channel, so that a broken connection ends the
// subscription instead of being reconnected silently. The consumer then
// resubscribes and reloads what it missed.
func (s *redisSubscription) forward() {
	defer s.wg.Done()
	defer close(s.ch)

	for {
		msg, err := s.ps.Receive(s.ctx)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("Redis subscription lost", "topic", s.topic, "error", err)
				_ = s.ps.Close()
			}
			return
		}

		m, ok := msg.(*redis.Message)
		if !ok {
			// subscription confirmations and pongs
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
			s.logger.Warn("Dropping malformed event", "topic", s.topic, "error", err)
			continue
		}
		select {
		case s.ch <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		if err = s.ps.Close(); errors.Is(err, redis.ErrClosed) {
			err = nil
		}
		s.wg.Wait()
	})
	return err
}
