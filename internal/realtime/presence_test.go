package realtime

import (
	"testing"

	"github.com/google/uuid"
)

func TestPresenceWatcherReceivesFullSnapshotEachChange(t *testing.T) {
	tracker := NewPresenceTracker(mustTestLogger(t))
	channel := "provider-dashboard"

	var snapshots [][]PresenceInfo
	unsub := tracker.Subscribe(channel, func(snapshot []PresenceInfo) {
		snapshots = append(snapshots, snapshot)
	})
	defer unsub()

	alice := uuid.New()
	bob := uuid.New()

	untrackAlice := tracker.Track(channel, alice, PresenceInfo{DisplayName: "Alice"})
	tracker.Track(channel, bob, PresenceInfo{DisplayName: "Bob"})
	untrackAlice()
	untrackAlice() // idempotent

	// initial sync + three membership changes
	if len(snapshots) != 4 {
		t.Fatalf("snapshot count: want=4 got=%d", len(snapshots))
	}
	if len(snapshots[0]) != 0 {
		t.Fatalf("initial snapshot: want empty, got %d members", len(snapshots[0]))
	}
	if len(snapshots[1]) != 1 || len(snapshots[2]) != 2 || len(snapshots[3]) != 1 {
		t.Fatalf("snapshot sizes: got %d,%d,%d want 1,2,1",
			len(snapshots[1]), len(snapshots[2]), len(snapshots[3]))
	}
	if snapshots[3][0].UserID != bob {
		t.Fatalf("remaining member: want=%s got=%s", bob, snapshots[3][0].UserID)
	}
}

func TestPresenceTrackUpdatesInfoInPlace(t *testing.T) {
	tracker := NewPresenceTracker(mustTestLogger(t))
	channel := "review-queue"
	userID := uuid.New()

	tracker.Track(channel, userID, PresenceInfo{DisplayName: "first"})
	tracker.Track(channel, userID, PresenceInfo{DisplayName: "second"})

	snapshot := tracker.Snapshot(channel)
	if len(snapshot) != 1 {
		t.Fatalf("re-track should not duplicate membership: got %d members", len(snapshot))
	}
	if snapshot[0].DisplayName != "second" {
		t.Fatalf("info: want=second got=%s", snapshot[0].DisplayName)
	}
}

func TestPresenceEmptyChannelSnapshot(t *testing.T) {
	tracker := NewPresenceTracker(mustTestLogger(t))
	if got := tracker.Snapshot("nobody-home"); len(got) != 0 {
		t.Fatalf("empty channel snapshot: want 0 members got %d", len(got))
	}
}
