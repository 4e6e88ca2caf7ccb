package docstore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Lister loads a collection in the requested order.
type Lister func(ctx context.Context, collection string, order Order) ([]Document, error)

type subscription struct {
	id     uint64
	order  Order
	fn     Listener
	closed atomic.Bool
}

// Hub is the publish/subscribe channel shared by store implementations.
// Subscribers are keyed by collection path and always receive the whole,
// freshly ordered collection rather than a diff.
//
// Listing and delivery are serialized per collection, so every list a
// subscriber receives was read after the one before it. Listeners run
// under that lock and must not write to or subscribe on the collection
// they observe.
type Hub struct {
	mu    sync.Mutex
	next  uint64
	subs  map[string][]*subscription
	locks map[string]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		subs:  make(map[string][]*subscription),
		locks: make(map[string]*sync.Mutex),
	}
}

// lock takes the delivery lock of collection and returns its release.
func (h *Hub) lock(collection string) func() {
	h.mu.Lock()
	l, ok := h.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		h.locks[collection] = l
	}
	h.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Subscribe registers fn, delivers the current state once and returns the
// handle that stops delivery.
func (h *Hub) Subscribe(ctx context.Context, collection string, order Order, fn Listener, list Lister) (Unsubscribe, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	unlock := h.lock(collection)
	defer unlock()

	docs, err := list(ctx, collection, order)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.next++
	sub := &subscription{id: h.next, order: order, fn: fn}
	h.subs[collection] = append(h.subs[collection], sub)
	h.mu.Unlock()

	fn(docs)

	return func() { h.remove(collection, sub) }, nil
}

func (h *Hub) remove(collection string, sub *subscription) {
	if sub.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[collection]
	for i, s := range subs {
		if s == sub {
			h.subs[collection] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subs[collection]) == 0 {
		delete(h.subs, collection)
	}
}

// Publish re-reads collection for every subscriber and pushes the result.
// It must be called after the write is durable and outside any store lock.
func (h *Hub) Publish(ctx context.Context, collection string, list Lister) {
	unlock := h.lock(collection)
	defer unlock()

	h.mu.Lock()
	subs := append([]*subscription(nil), h.subs[collection]...)
	h.mu.Unlock()

	cache := make(map[Order][]Document)
	for _, sub := range subs {
		if sub.closed.Load() {
			continue
		}
		docs, ok := cache[sub.order]
		if !ok {
			var err error
			docs, err = list(context.WithoutCancel(ctx), collection, sub.order)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to load collection for subscribers",
					"collection", collection, "error", err)
				return
			}
			cache[sub.order] = docs
		}
		if sub.closed.Load() {
			continue
		}
		sub.fn(append([]Document(nil), docs...))
	}
}

// Subscribers reports how many live subscriptions collection has.
func (h *Hub) Subscribers(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection])
}
