package chathub

import (
	"context"
	"log"
	"sync"
)

// Topics that writers notify after a committed change.
const (
	TopicRequests = "requests"
	TopicReports  = "reports"
)

func RoomTopic(roomID string) string { return "room:" + roomID }

func EchoTopic(mood string) string { return "echoes:" + mood }

// Notifier is told that the data behind a topic changed.
type Notifier interface {
	Notify(topic string)
}

// Hub fans change notifications out to the subscriptions of this process.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Notify wakes every subscription on topic. It never blocks: a subscription
// that has not consumed its previous wake-up is already due for a reload.
func (h *Hub) Notify(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) attach(topic string) chan struct{} {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[chan struct{}]struct{})
	}
	h.subs[topic][ch] = struct{}{}
	return ch
}

func (h *Hub) detach(topic string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[topic], ch)
	if len(h.subs[topic]) == 0 {
		delete(h.subs, topic)
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// Loader reads the full current snapshot of a query.
type Loader[T any] func(ctx context.Context) (T, error)

// Subscription delivers full snapshots on C. Only the newest undelivered
// snapshot is kept, so a slow reader skips intermediate states but always
// converges on the latest one. C is closed when the subscription ends.
type Subscription[T any] struct {
	C <-chan T

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Cancel stops the subscription and waits for it to wind down. No snapshot
// is delivered after Cancel returns. Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		for range s.C {
		}
	})
}

// Done is closed once the subscription has stopped.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Watch subscribes to topic and emits load's result immediately and after
// every notification. A failed load is logged and skipped; the reader keeps
// its previous snapshot. The subscription ends with ctx or Cancel.
func Watch[T any](ctx context.Context, h *Hub, topic string, load Loader[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T, 1)
	sub := &Subscription[T]{
		C:      out,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// attach before the first load so a change racing the load is not lost
	wake := h.attach(topic)

	go func() {
		defer close(sub.done)
		defer close(out)
		defer h.detach(topic, wake)

		for {
			snap, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("WARNING: Snapshot load for %s failed: %v", topic, err)
			} else {
				offer(out, snap)
			}

			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
		}
	}()

	return sub
}

// offer replaces any undelivered value in out with v. The watch goroutine
// is the only sender, so the final send cannot block.
func offer[T any](out chan T, v T) {
	select {
	case out <- v:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- v
}

var _ Notifier = (*Hub)(nil)
