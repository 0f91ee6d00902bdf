package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/http/response"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/realtime"
	"github.com/BlindPI/arccm-backend/internal/requestdata"
	"github.com/BlindPI/arccm-backend/internal/types"
)

// RealtimeHandler serves the SSE stream and manages per-session channel
// subscriptions. Subscribing binds the channel through the ChannelBinder, so
// the backend (redis) channel opens with the first local subscriber and closes
// with the last one.
type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.Hub
	binder   *realtime.ChannelBinder
	presence *realtime.PresenceTracker

	mu      sync.RWMutex
	clients map[uuid.UUID]*sessionState // key: SessionID (UserToken.ID)
	bridges map[string]*hubBridge       // key: channel
}

type sessionState struct {
	client *realtime.Client
	// unbinders tracks bridge releases per channel key.
	unbinders map[string]func()
	untrack   func()
}

// hubBridge is the single binder→hub forwarder for one channel key, shared by
// every local session on that key. Without the sharing, N sessions would
// register N hub.Broadcast callbacks and every client on the channel would
// receive N copies of each event.
type hubBridge struct {
	refs   int
	unbind func()
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub, binder *realtime.ChannelBinder, presence *realtime.PresenceTracker) *RealtimeHandler {
	return &RealtimeHandler{
		log:      log.With("handler", "RealtimeHandler"),
		hub:      hub,
		binder:   binder,
		presence: presence,
		clients:  make(map[uuid.UUID]*sessionState),
		bridges:  make(map[string]*hubBridge),
	}
}

func (h *RealtimeHandler) Stream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil || rd.SessionID == uuid.Nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return
	}

	h.mu.Lock()
	// One stream per session: replace any previous connection.
	if existing, ok := h.clients[rd.SessionID]; ok {
		h.teardownLocked(rd.SessionID, existing)
	}
	client := h.hub.NewClient(rd.UserID)
	state := &sessionState{client: client, unbinders: make(map[string]func())}
	h.clients[rd.SessionID] = state
	h.mu.Unlock()

	// Every session listens on the user's own channels by default.
	for _, key := range []string{
		realtime.UserRequirementsChannel(rd.UserID),
		realtime.UserTierChannel(rd.UserID),
		realtime.ComplianceStatsChannel(rd.UserID),
	} {
		if err := h.bind(state, key); err != nil {
			h.log.Warn("default channel bind failed", "channel", key, "error", err)
		}
	}

	h.log.Info("realtime stream open", "user_id", rd.UserID, "session_id", rd.SessionID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	if current, ok := h.clients[rd.SessionID]; ok && current == state {
		h.teardownLocked(rd.SessionID, state)
	}
	h.mu.Unlock()
}

func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	channel, state, ok := h.channelAndState(c, rd)
	if !ok {
		return
	}

	h.mu.Lock()
	err := h.bind(state, channel)
	h.mu.Unlock()
	if err != nil {
		response.Error(c, http.StatusBadGateway, "bind_failed", err)
		return
	}
	response.OK(c, gin.H{"status": "subscribed", "channel": channel})
}

func (h *RealtimeHandler) Unsubscribe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	channel, state, ok := h.channelAndState(c, rd)
	if !ok {
		return
	}

	h.mu.Lock()
	h.hub.RemoveChannel(state.client, channel)
	if unbind, ok := state.unbinders[channel]; ok {
		unbind()
		delete(state.unbinders, channel)
	}
	h.mu.Unlock()
	response.OK(c, gin.H{"status": "unsubscribed", "channel": channel})
}

// JoinPresence tracks the caller on a named presence channel until the stream
// closes. Watchers receive the full roster on every change.
func (h *RealtimeHandler) JoinPresence(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req struct {
		Channel     string `json:"channel"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Channel) == "" {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid channel"))
		return
	}

	h.mu.Lock()
	state, exists := h.clients[rd.SessionID]
	if !exists {
		h.mu.Unlock()
		response.Error(c, http.StatusConflict, "no_stream", fmt.Errorf("no active stream for this session"))
		return
	}
	if state.untrack != nil {
		state.untrack()
	}
	name := realtime.PresenceChannel(req.Channel)
	state.untrack = h.presence.Track(name, rd.UserID, realtime.PresenceInfo{
		DisplayName: req.DisplayName,
	})
	h.mu.Unlock()

	response.OK(c, gin.H{"status": "joined", "channel": name, "roster": h.presence.Snapshot(name)})
}

func (h *RealtimeHandler) PresenceRoster(c *gin.Context) {
	channel := strings.TrimSpace(c.Query("channel"))
	if channel == "" {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("missing channel"))
		return
	}
	name := realtime.PresenceChannel(channel)
	response.OK(c, gin.H{"channel": name, "roster": h.presence.Snapshot(name)})
}

// bind must be called with h.mu held. It adds the hub subscription and takes a
// reference on the channel's bridge, creating it for the first session. The
// hub fans out to clients, so one bridge per key delivers each event once.
func (h *RealtimeHandler) bind(state *sessionState, channel string) error {
	h.hub.AddChannel(state.client, channel)
	if _, bound := state.unbinders[channel]; bound {
		return nil
	}
	br, ok := h.bridges[channel]
	if !ok {
		unbind, err := h.binder.Subscribe(context.Background(), channel, h.hub.Broadcast)
		if err != nil {
			return err
		}
		br = &hubBridge{unbind: unbind}
		h.bridges[channel] = br
	}
	br.refs++
	state.unbinders[channel] = func() { h.releaseBridgeLocked(channel) }
	return nil
}

// releaseBridgeLocked must be called with h.mu held. The last reference tears
// down the binder subscription, which in turn closes the backend channel when
// no other subscriber holds it.
func (h *RealtimeHandler) releaseBridgeLocked(channel string) {
	br, ok := h.bridges[channel]
	if !ok {
		return
	}
	br.refs--
	if br.refs > 0 {
		return
	}
	br.unbind()
	delete(h.bridges, channel)
}

// teardownLocked must be called with h.mu held.
func (h *RealtimeHandler) teardownLocked(sessionID uuid.UUID, state *sessionState) {
	for _, unbind := range state.unbinders {
		unbind()
	}
	state.unbinders = make(map[string]func())
	if state.untrack != nil {
		state.untrack()
		state.untrack = nil
	}
	delete(h.clients, sessionID)
	h.hub.CloseClient(state.client)
}

// channelAndState validates the channel payload and ownership, returning the
// caller's live session state.
func (h *RealtimeHandler) channelAndState(c *gin.Context, rd *requestdata.RequestData) (string, *sessionState, bool) {
	if rd == nil || rd.SessionID == uuid.Nil {
		response.Error(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return "", nil, false
	}
	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Channel) == "" {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid channel"))
		return "", nil, false
	}
	channel := strings.TrimSpace(req.Channel)

	if !h.channelAllowed(rd, channel) {
		response.Error(c, http.StatusForbidden, "forbidden", fmt.Errorf("channel not permitted"))
		return "", nil, false
	}

	h.mu.RLock()
	state, exists := h.clients[rd.SessionID]
	h.mu.RUnlock()
	if !exists {
		response.Error(c, http.StatusConflict, "no_stream", fmt.Errorf("no active stream for this session"))
		return "", nil, false
	}
	return channel, state, true
}

// channelAllowed restricts user-scoped channels to their owner; admins may
// watch any channel, and per-metric channels are open to all authenticated
// users.
func (h *RealtimeHandler) channelAllowed(rd *requestdata.RequestData, channel string) bool {
	if rd.Role == types.RoleAD || rd.Role == types.RoleSA {
		return true
	}
	ownerSuffix := "-" + rd.UserID.String()
	switch {
	case strings.HasPrefix(channel, "user-requirements-"),
		strings.HasPrefix(channel, "user-tier-"),
		strings.HasPrefix(channel, "compliance-stats-"):
		return strings.HasSuffix(channel, ownerSuffix)
	default:
		return true
	}
}
