package realtime

import (
	"context"
	"sync"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
)

// Backend is the per-key half of the bus consumed by the ChannelBinder.
type Backend interface {
	OpenChannel(ctx context.Context, key string, onMsg func(m Message)) (close func(), err error)
}

type subscriber struct {
	fn func(Message)
}

type binding struct {
	subs  map[*subscriber]bool
	close func()
}

// ChannelBinder is the in-process subscription façade. It refcounts
// subscribers per channel key and keeps at most one live backend channel per
// key: the first subscriber opens it, the last one closes it. Adding or
// removing a subscriber and opening or closing the backend channel happen
// under one lock, as a single step.
type ChannelBinder struct {
	mu       sync.Mutex
	log      *logger.Logger
	backend  Backend
	bindings map[string]*binding
}

func NewChannelBinder(log *logger.Logger, backend Backend) *ChannelBinder {
	return &ChannelBinder{
		log:      log.With("component", "ChannelBinder"),
		backend:  backend,
		bindings: make(map[string]*binding),
	}
}

// Subscribe registers fn for messages on key and returns an idempotent
// unsubscribe func. The backend channel for key is opened lazily on the first
// subscriber.
func (cb *ChannelBinder) Subscribe(ctx context.Context, key string, fn func(Message)) (func(), error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b, ok := cb.bindings[key]
	if !ok {
		b = &binding{subs: make(map[*subscriber]bool)}
		if cb.backend != nil {
			closeFn, err := cb.backend.OpenChannel(ctx, key, func(m Message) {
				cb.dispatch(m)
			})
			if err != nil {
				return nil, err
			}
			b.close = closeFn
		}
		cb.bindings[key] = b
		cb.log.Debug("channel bound", "channel", key)
	}

	sub := &subscriber{fn: fn}
	b.subs[sub] = true

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cb.mu.Lock()
			defer cb.mu.Unlock()
			cur, ok := cb.bindings[key]
			if !ok {
				return
			}
			delete(cur.subs, sub)
			if len(cur.subs) == 0 {
				if cur.close != nil {
					cur.close()
				}
				delete(cb.bindings, key)
				cb.log.Debug("channel unbound", "channel", key)
			}
		})
	}
	return unsubscribe, nil
}

// BroadcastLocal synthesizes a locally-originated message and delivers it to
// local subscribers of the matching key only, without a backend round-trip.
// The payload shape is identical to backend-delivered events.
func (cb *ChannelBinder) BroadcastLocal(msg Message) {
	msg.Origin = OriginLocal
	cb.dispatch(msg)
}

// BoundChannels returns the number of channel keys with a live binding.
func (cb *ChannelBinder) BoundChannels() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.bindings)
}

func (cb *ChannelBinder) dispatch(msg Message) {
	cb.mu.Lock()
	b, ok := cb.bindings[msg.Channel]
	var fns []func(Message)
	if ok {
		fns = make([]func(Message), 0, len(b.subs))
		for s := range b.subs {
			fns = append(fns, s.fn)
		}
	}
	cb.mu.Unlock()

	// Callbacks run outside the lock; a slow subscriber must not block
	// subscribe/unsubscribe on other keys.
	for _, fn := range fns {
		fn(msg)
	}
}

// Close tears down every live binding.
func (cb *ChannelBinder) Close() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for key, b := range cb.bindings {
		if b.close != nil {
			b.close()
		}
		delete(cb.bindings, key)
	}
}
