package realtime

import (
	"fmt"

	"github.com/google/uuid"
)

type Event string

const (
	EventRequirementCreated       Event = "RequirementCreated"
	EventRequirementStatusChanged Event = "RequirementStatusChanged"
	EventRequirementRetired       Event = "RequirementRetired"
	EventTierChanged              Event = "TierChanged"
	EventComplianceStatsChanged   Event = "ComplianceStatsChanged"
	EventTransitionRequested      Event = "TransitionRequested"
	EventTransitionReviewed       Event = "TransitionReviewed"
	EventPresenceSync             Event = "PresenceSync"
)

// Origin distinguishes an optimistic local echo from a bus-confirmed event.
// The payload shape is identical either way, so subscribers may ignore it.
type Origin string

const (
	OriginLocal   Origin = "local"
	OriginBackend Origin = "backend"
)

type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Origin  Origin `json:"origin,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Channel key helpers. One live backend binding exists per distinct key with
// at least one subscriber; the ChannelBinder enforces that.

func UserRequirementsChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user-requirements-%s", userID)
}

func RequirementChannel(metricID uuid.UUID) string {
	return fmt.Sprintf("requirement-%s", metricID)
}

func UserTierChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user-tier-%s", userID)
}

func ComplianceStatsChannel(userID uuid.UUID) string {
	return fmt.Sprintf("compliance-stats-%s", userID)
}

func PresenceChannel(name string) string {
	return fmt.Sprintf("presence-%s", name)
}
