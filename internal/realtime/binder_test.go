package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeBackend counts per-key opens and closes and lets tests inject messages
// as if they arrived over the bus.
type fakeBackend struct {
	mu     sync.Mutex
	opens  map[string]int
	closes map[string]int
	onMsg  map[string]func(Message)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		opens:  make(map[string]int),
		closes: make(map[string]int),
		onMsg:  make(map[string]func(Message)),
	}
}

func (f *fakeBackend) OpenChannel(ctx context.Context, key string, onMsg func(m Message)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens[key]++
	f.onMsg[key] = onMsg
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closes[key]++
		delete(f.onMsg, key)
	}, nil
}

func (f *fakeBackend) deliver(msg Message) {
	f.mu.Lock()
	fn := f.onMsg[msg.Channel]
	f.mu.Unlock()
	if fn != nil {
		msg.Origin = OriginBackend
		fn(msg)
	}
}

func (f *fakeBackend) counts(key string) (opens, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[key], f.closes[key]
}

func TestBinderOpensOneBackendChannelPerKey(t *testing.T) {
	backend := newFakeBackend()
	binder := NewChannelBinder(mustTestLogger(t), backend)
	ctx := context.Background()
	key := UserRequirementsChannel(uuid.New())

	const n = 7
	unsubs := make([]func(), 0, n)
	for i := 0; i < n; i++ {
		unsub, err := binder.Subscribe(ctx, key, func(Message) {})
		if err != nil {
			t.Fatalf("Subscribe %d: %v", i, err)
		}
		unsubs = append(unsubs, unsub)
	}

	if opens, closes := backend.counts(key); opens != 1 || closes != 0 {
		t.Fatalf("after %d subscribes: opens=%d closes=%d, want 1/0", n, opens, closes)
	}
	if got := binder.BoundChannels(); got != 1 {
		t.Fatalf("BoundChannels: want=1 got=%d", got)
	}

	for _, unsub := range unsubs {
		unsub()
		unsub() // idempotent
	}

	if opens, closes := backend.counts(key); opens != 1 || closes != 1 {
		t.Fatalf("after %d unsubscribes: opens=%d closes=%d, want 1/1", n, opens, closes)
	}
	if got := binder.BoundChannels(); got != 0 {
		t.Fatalf("BoundChannels after teardown: want=0 got=%d", got)
	}
}

func TestBinderRebindsAfterFullTeardown(t *testing.T) {
	backend := newFakeBackend()
	binder := NewChannelBinder(mustTestLogger(t), backend)
	ctx := context.Background()
	key := RequirementChannel(uuid.New())

	unsub, err := binder.Subscribe(ctx, key, func(Message) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	unsub()

	if _, err := binder.Subscribe(ctx, key, func(Message) {}); err != nil {
		t.Fatalf("re-Subscribe: %v", err)
	}
	if opens, closes := backend.counts(key); opens != 2 || closes != 1 {
		t.Fatalf("rebind: opens=%d closes=%d, want 2/1", opens, closes)
	}
}

func TestBinderDispatchesBackendAndLocalWithSameShape(t *testing.T) {
	backend := newFakeBackend()
	binder := NewChannelBinder(mustTestLogger(t), backend)
	ctx := context.Background()
	userID := uuid.New()
	key := UserTierChannel(userID)

	var mu sync.Mutex
	var got []Message
	if _, err := binder.Subscribe(ctx, key, func(m Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	backend.deliver(Message{Channel: key, Event: EventTierChanged, Data: map[string]any{"tier": "robust"}})
	binder.BroadcastLocal(Message{Channel: key, Event: EventTierChanged, Data: map[string]any{"tier": "robust"}})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("messages delivered: want=2 got=%d", len(got))
	}
	if got[0].Origin != OriginBackend || got[1].Origin != OriginLocal {
		t.Fatalf("origins: got %q then %q", got[0].Origin, got[1].Origin)
	}
	// Everything except origin is identical; callbacks need no branching.
	if got[0].Channel != got[1].Channel || got[0].Event != got[1].Event {
		t.Fatalf("local echo shape diverged: %+v vs %+v", got[0], got[1])
	}
}

func TestBinderSubscriberOnOtherKeyUnaffected(t *testing.T) {
	backend := newFakeBackend()
	binder := NewChannelBinder(mustTestLogger(t), backend)
	ctx := context.Background()

	keyA := ComplianceStatsChannel(uuid.New())
	keyB := ComplianceStatsChannel(uuid.New())

	gotA := 0
	if _, err := binder.Subscribe(ctx, keyA, func(Message) { gotA++ }); err != nil {
		t.Fatalf("Subscribe A: %v", err)
	}
	unsubB, err := binder.Subscribe(ctx, keyB, func(Message) {})
	if err != nil {
		t.Fatalf("Subscribe B: %v", err)
	}
	unsubB()

	binder.BroadcastLocal(Message{Channel: keyA, Event: EventComplianceStatsChanged})
	if gotA != 1 {
		t.Fatalf("keyA deliveries: want=1 got=%d", gotA)
	}
	if opens, closes := backend.counts(keyA); opens != 1 || closes != 0 {
		t.Fatalf("keyA binding disturbed by keyB teardown: opens=%d closes=%d", opens, closes)
	}
}
