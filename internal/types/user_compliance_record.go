package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RecordStatusNotApplicable = "not_applicable"
	RecordStatusPending       = "pending"
	RecordStatusInProgress    = "in_progress"
	RecordStatusCompliant     = "compliant"
	RecordStatusNonCompliant  = "non_compliant"
)

func ValidRecordStatus(status string) bool {
	switch status {
	case RecordStatusNotApplicable, RecordStatusPending, RecordStatusInProgress,
		RecordStatusCompliant, RecordStatusNonCompliant:
		return true
	default:
		return false
	}
}

// UserComplianceRecord joins a user to a metric. Exactly one row exists per
// (user, metric) pair; rows for requirements that stopped applying are
// transitioned to not_applicable rather than deleted, preserving the audit
// trail.
type UserComplianceRecord struct {
	ID            uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID         `gorm:"type:uuid;not null;index:idx_user_metric,unique" json:"user_id"`
	User          *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	MetricID      uuid.UUID         `gorm:"type:uuid;not null;index:idx_user_metric,unique" json:"metric_id"`
	Metric        *ComplianceMetric `gorm:"constraint:OnDelete:RESTRICT;foreignKey:MetricID;references:ID" json:"metric,omitempty"`
	Status        string            `gorm:"column:status;not null;default:'pending';index" json:"status"`
	ProgressValue float64           `gorm:"column:progress_value;not null;default:0" json:"progress_value"`
	RequiredValue float64           `gorm:"column:required_value;not null;default:0" json:"required_value"`
	CompletedAt   *time.Time        `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Metadata      datatypes.JSON    `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt     time.Time         `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserComplianceRecord) TableName() string { return "user_compliance_record" }

// Applicable reports whether the record is currently in force for the user's
// role+tier combination.
func (r *UserComplianceRecord) Applicable() bool {
	return r.Status != RecordStatusNotApplicable
}
