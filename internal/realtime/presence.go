package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
)

type PresenceInfo struct {
	UserID      uuid.UUID      `json:"user_id"`
	DisplayName string         `json:"display_name,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type presenceWatcher struct {
	fn func(snapshot []PresenceInfo)
}

// PresenceTracker maintains named presence sets. Watchers receive the full
// current set on every membership change, not deltas; simplicity over
// efficiency, and re-syncing a late subscriber costs nothing extra.
type PresenceTracker struct {
	mu       sync.Mutex
	log      *logger.Logger
	channels map[string]map[uuid.UUID]PresenceInfo
	watchers map[string]map[*presenceWatcher]bool
}

func NewPresenceTracker(log *logger.Logger) *PresenceTracker {
	return &PresenceTracker{
		log:      log.With("component", "PresenceTracker"),
		channels: make(map[string]map[uuid.UUID]PresenceInfo),
		watchers: make(map[string]map[*presenceWatcher]bool),
	}
}

// Track joins userID to the named presence set and returns an idempotent
// untrack func.
func (pt *PresenceTracker) Track(channelName string, userID uuid.UUID, info PresenceInfo) func() {
	info.UserID = userID

	pt.mu.Lock()
	members, ok := pt.channels[channelName]
	if !ok {
		members = make(map[uuid.UUID]PresenceInfo)
		pt.channels[channelName] = members
	}
	members[userID] = info
	pt.mu.Unlock()

	pt.notify(channelName)

	var once sync.Once
	return func() {
		once.Do(func() {
			pt.mu.Lock()
			if members, ok := pt.channels[channelName]; ok {
				delete(members, userID)
				if len(members) == 0 {
					delete(pt.channels, channelName)
				}
			}
			pt.mu.Unlock()
			pt.notify(channelName)
		})
	}
}

// Subscribe registers fn for membership changes on the named set. fn is
// invoked immediately with the current state, then on every change.
func (pt *PresenceTracker) Subscribe(channelName string, fn func(snapshot []PresenceInfo)) func() {
	w := &presenceWatcher{fn: fn}

	pt.mu.Lock()
	ws, ok := pt.watchers[channelName]
	if !ok {
		ws = make(map[*presenceWatcher]bool)
		pt.watchers[channelName] = ws
	}
	ws[w] = true
	snapshot := pt.snapshotLocked(channelName)
	pt.mu.Unlock()

	fn(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			pt.mu.Lock()
			defer pt.mu.Unlock()
			if ws, ok := pt.watchers[channelName]; ok {
				delete(ws, w)
				if len(ws) == 0 {
					delete(pt.watchers, channelName)
				}
			}
		})
	}
}

// Snapshot returns the current members of the named set.
func (pt *PresenceTracker) Snapshot(channelName string) []PresenceInfo {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.snapshotLocked(channelName)
}

func (pt *PresenceTracker) snapshotLocked(channelName string) []PresenceInfo {
	members := pt.channels[channelName]
	out := make([]PresenceInfo, 0, len(members))
	for _, info := range members {
		out = append(out, info)
	}
	return out
}

func (pt *PresenceTracker) notify(channelName string) {
	pt.mu.Lock()
	snapshot := pt.snapshotLocked(channelName)
	ws := pt.watchers[channelName]
	fns := make([]func([]PresenceInfo), 0, len(ws))
	for w := range ws {
		fns = append(fns, w.fn)
	}
	pt.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
