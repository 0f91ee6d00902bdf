package handlers

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/realtime"
)

func newTestRealtimeHandler(t *testing.T) *RealtimeHandler {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	hub := realtime.NewHub(log)
	binder := realtime.NewChannelBinder(log, nil)
	return NewRealtimeHandler(log, hub, binder, realtime.NewPresenceTracker(log))
}

func (h *RealtimeHandler) newBoundSession(t *testing.T, channel string) *sessionState {
	t.Helper()
	state := &sessionState{
		client:    h.hub.NewClient(uuid.New()),
		unbinders: make(map[string]func()),
	}
	h.mu.Lock()
	err := h.bind(state, channel)
	h.mu.Unlock()
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return state
}

func drainOne(t *testing.T, ch <-chan realtime.Message) realtime.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for realtime message")
	}
	return realtime.Message{}
}

func expectNone(t *testing.T, ch <-chan realtime.Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected extra message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBindDeliversOncePerClientAcrossSessions(t *testing.T) {
	h := newTestRealtimeHandler(t)
	channel := realtime.RequirementChannel(uuid.New())

	a := h.newBoundSession(t, channel)
	b := h.newBoundSession(t, channel)

	h.binder.BroadcastLocal(realtime.Message{
		Channel: channel,
		Event:   realtime.EventRequirementStatusChanged,
		Data:    map[string]any{"seq": 1},
	})

	got := drainOne(t, a.client.Outbound)
	if got.Event != realtime.EventRequirementStatusChanged {
		t.Fatalf("event=%s, want %s", got.Event, realtime.EventRequirementStatusChanged)
	}
	expectNone(t, a.client.Outbound)

	drainOne(t, b.client.Outbound)
	expectNone(t, b.client.Outbound)
}

func TestBindBridgeSurvivesOtherSessionTeardown(t *testing.T) {
	h := newTestRealtimeHandler(t)
	userID := uuid.New()
	channel := realtime.UserRequirementsChannel(userID)

	a := h.newBoundSession(t, channel)
	b := h.newBoundSession(t, channel)

	h.mu.Lock()
	h.teardownLocked(uuid.New(), a)
	h.mu.Unlock()

	h.binder.BroadcastLocal(realtime.Message{
		Channel: channel,
		Event:   realtime.EventRequirementCreated,
	})
	drainOne(t, b.client.Outbound)
	expectNone(t, b.client.Outbound)

	if h.binder.BoundChannels() != 1 {
		t.Fatalf("BoundChannels=%d, want 1 while a session remains", h.binder.BoundChannels())
	}

	h.mu.Lock()
	h.teardownLocked(uuid.New(), b)
	h.mu.Unlock()
	if h.binder.BoundChannels() != 0 {
		t.Fatalf("BoundChannels=%d, want 0 after last teardown", h.binder.BoundChannels())
	}
	if len(h.bridges) != 0 {
		t.Fatalf("bridges=%d, want 0 after last teardown", len(h.bridges))
	}
}
