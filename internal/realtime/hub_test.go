package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func TestHubBroadcastOrderingAndReconnect(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	userID := uuid.New()
	channel := UserRequirementsChannel(userID)

	clientA := hub.NewClient(userID)
	hub.AddChannel(clientA, channel)

	first := Message{Channel: channel, Event: EventRequirementCreated, Data: map[string]any{"seq": 1}}
	second := Message{Channel: channel, Event: EventRequirementStatusChanged, Data: map[string]any{"seq": 2}}
	hub.Broadcast(first)
	hub.Broadcast(second)

	gotFirst := recvMessage(t, clientA.Outbound, time.Second)
	gotSecond := recvMessage(t, clientA.Outbound, time.Second)
	if gotFirst.Event != EventRequirementCreated {
		t.Fatalf("first event: want=%s got=%s", EventRequirementCreated, gotFirst.Event)
	}
	if gotSecond.Event != EventRequirementStatusChanged {
		t.Fatalf("second event: want=%s got=%s", EventRequirementStatusChanged, gotSecond.Event)
	}

	hub.CloseClient(clientA)
	select {
	case _, ok := <-clientA.Outbound:
		if ok {
			t.Fatalf("clientA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for clientA channel close")
	}

	clientB := hub.NewClient(uuid.New())
	hub.AddChannel(clientB, channel)
	reconnect := Message{Channel: channel, Event: EventTierChanged, Data: map[string]any{"seq": 3}}
	hub.Broadcast(reconnect)
	gotReconnect := recvMessage(t, clientB.Outbound, time.Second)
	if gotReconnect.Event != EventTierChanged {
		t.Fatalf("reconnect event: want=%s got=%s", EventTierChanged, gotReconnect.Event)
	}
}

func TestHubChannelEntryRemovedWithLastClient(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	channel := UserTierChannel(uuid.New())

	clientA := hub.NewClient(uuid.New())
	clientB := hub.NewClient(uuid.New())
	hub.AddChannel(clientA, channel)
	hub.AddChannel(clientB, channel)
	if got := hub.ChannelCount(); got != 1 {
		t.Fatalf("ChannelCount after two subscribers on one key: want=1 got=%d", got)
	}

	hub.RemoveChannel(clientA, channel)
	if got := hub.ChannelCount(); got != 1 {
		t.Fatalf("ChannelCount after first unsubscribe: want=1 got=%d", got)
	}
	hub.RemoveChannel(clientB, channel)
	if got := hub.ChannelCount(); got != 0 {
		t.Fatalf("ChannelCount after last unsubscribe: want=0 got=%d", got)
	}
}

func TestHubBroadcastToUnknownChannelIsNoop(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	client := hub.NewClient(uuid.New())
	hub.AddChannel(client, UserTierChannel(uuid.New()))

	hub.Broadcast(Message{Channel: "requirement-unknown", Event: EventRequirementRetired})

	select {
	case msg := <-client.Outbound:
		t.Fatalf("unexpected message delivered: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
