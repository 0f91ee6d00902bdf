package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AutomationRules gates automatic approval of a progression. Stored as a typed
// jsonb column so shape drift is caught at compile time.
type AutomationRules struct {
	AutoApproveThreshold      float64 `json:"auto_approve_threshold"`
	RequireSupervisorApproval bool    `json:"require_supervisor_approval"`
}

// ProgressionTrigger is an admin-managed rule describing one allowed role
// transition and the evidence thresholds gating it.
type ProgressionTrigger struct {
	ID                uuid.UUID                           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FromRole          string                              `gorm:"column:from_role;not null;index:idx_from_to,unique" json:"from_role"`
	ToRole            string                              `gorm:"column:to_role;not null;index:idx_from_to,unique" json:"to_role"`
	MinHoursRequired  float64                             `gorm:"column:min_hours_required;not null;default:0" json:"min_hours_required"`
	MinTimeInRoleDays int                                 `gorm:"column:min_time_in_role_days;not null;default:0" json:"min_time_in_role_days"`
	ApprovalRequired  bool                                `gorm:"column:approval_required;not null;default:true" json:"approval_required"`
	AutomationRules   datatypes.JSONType[AutomationRules] `gorm:"type:jsonb;column:automation_rules" json:"automation_rules"`
	CreatedAt         time.Time                           `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time                           `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt                      `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProgressionTrigger) TableName() string { return "progression_trigger" }
