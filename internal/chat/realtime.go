package chat

import (
	"context"
	"time"

	"zawj-chat/internal/metrics"
	"zawj-chat/internal/models"
	"zawj-chat/internal/realtime"
)

type watcher struct {
	name      string
	subscribe func(ctx context.Context) (realtime.Subscription, error)
	handle    func(ctx context.Context, ev realtime.Event)
	// resync reloads what may have been missed while unsubscribed.
	resync func(ctx context.Context)
}

func (c *Controller) messagesWatcher() watcher {
	return watcher{
		name: topicMessages,
		subscribe: func(ctx context.Context) (realtime.Subscription, error) {
			return c.deps.Realtime.SubscribeMessages(ctx, c.params.ConversationID)
		},
		handle: c.handleMessageEvent,
		resync: c.refreshHistory,
	}
}

func (c *Controller) connectionWatcher() watcher {
	return watcher{
		name: topicConnection,
		subscribe: func(ctx context.Context) (realtime.Subscription, error) {
			return c.deps.Realtime.SubscribeConnection(ctx, c.pairKey)
		},
		handle: c.handleConnectionEvent,
		resync: func(ctx context.Context) {
			c.refreshConnection(ctx)
			c.refreshBlocked(ctx)
		},
	}
}

// watch pumps events from sub until teardown. A subscription dropped by the
// bus is re-established with exponential backoff.
func (c *Controller) watch(w watcher, sub realtime.Subscription) {
	defer c.wg.Done()
	ctx := c.runCtx
	backoff := c.deps.ResubscribeMin

	for {
		if sub != nil {
			dropped := c.pump(ctx, w, sub)
			_ = sub.Close()
			if !dropped {
				return
			}
			c.logger.Warn("Realtime subscription dropped", "topic", w.name)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		next, err := w.subscribe(ctx)
		if err != nil {
			c.logger.Warn("Resubscribe failed", "topic", w.name, "retryIn", backoff, "error", err)
			backoff *= 2
			if backoff > c.deps.ResubscribeMax {
				backoff = c.deps.ResubscribeMax
			}
			sub = nil
			continue
		}
		if !c.swapSubscription(w.name, next) {
			return
		}
		metrics.RealtimeResubscribes.Inc()
		c.logger.Info("Realtime subscription restored", "topic", w.name)
		backoff = c.deps.ResubscribeMin
		sub = next
		w.resync(ctx)
	}
}

// pump reports true when the subscription ended while the controller was
// still live.
func (c *Controller) pump(ctx context.Context, w watcher, sub realtime.Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return ctx.Err() == nil
			}
			w.handle(ctx, ev)
		}
	}
}

func (c *Controller) swapSubscription(name string, sub realtime.Subscription) bool {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		_ = sub.Close()
		return false
	}
	c.subs[name] = sub
	c.mu.Unlock()
	return true
}

func (c *Controller) handleMessageEvent(ctx context.Context, ev realtime.Event) {
	if ev.Table != realtime.TableMessages || ev.Type != realtime.EventInsert {
		return
	}
	var msg models.Message
	if err := ev.Decode(&msg); err != nil {
		c.logger.Warn("Dropping undecodable message event", "error", err)
		return
	}
	if c.appendMessage(msg) {
		c.emit()
	}
}

func (c *Controller) handleConnectionEvent(ctx context.Context, ev realtime.Event) {
	switch ev.Table {
	case realtime.TableConnections:
		var conn models.Connection
		if err := ev.Decode(&conn); err != nil {
			c.logger.Warn("Dropping undecodable connection event", "error", err)
			return
		}
		if ev.Type == realtime.EventDelete {
			c.clearConnection(conn.ID)
			return
		}
		if c.applyConnection(&conn) {
			c.emit()
		}
	case realtime.TableBlockedUsers:
		// Either direction may still be blocked; ask the source.
		c.refreshBlocked(ctx)
	}
}

func (c *Controller) clearConnection(id string) {
	c.mu.Lock()
	cleared := !c.disposed && c.conn != nil && c.conn.ID == id
	if cleared {
		c.conn = nil
	}
	c.mu.Unlock()
	if cleared {
		c.emit()
	}
}
