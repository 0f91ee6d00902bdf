package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AuditActionTierAssigned       = "tier_assigned"
	AuditActionTierSwitched       = "tier_switched"
	AuditActionRoleChanged        = "role_changed"
	AuditActionMetricDeleted      = "metric_deleted"
	AuditActionTransitionRejected = "transition_rejected"
)

// RoleAuditLog rows are append-only; no soft delete.
type RoleAuditLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Action      string         `gorm:"column:action;not null" json:"action"`
	FromRole    string         `gorm:"column:from_role" json:"from_role,omitempty"`
	ToRole      string         `gorm:"column:to_role" json:"to_role,omitempty"`
	FromTier    string         `gorm:"column:from_tier" json:"from_tier,omitempty"`
	ToTier      string         `gorm:"column:to_tier" json:"to_tier,omitempty"`
	PerformedBy *uuid.UUID     `gorm:"type:uuid;column:performed_by" json:"performed_by,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (RoleAuditLog) TableName() string { return "role_audit_log" }
