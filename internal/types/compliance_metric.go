package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MeasurementDocumentReview  = "document_review"
	MeasurementTrainingHours   = "training_hours"
	MeasurementAssessment      = "assessment"
	MeasurementVideoSubmission = "video_submission"
	MeasurementOther           = "other"
)

func ValidMeasurementType(mt string) bool {
	switch mt {
	case MeasurementDocumentReview, MeasurementTrainingHours, MeasurementAssessment,
		MeasurementVideoSubmission, MeasurementOther:
		return true
	default:
		return false
	}
}

// ComplianceMetric is an admin-defined requirement. Once referenced by user
// records only the metadata fields (name, category, description) may change.
type ComplianceMetric struct {
	ID                uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name              string                      `gorm:"column:name;not null" json:"name"`
	Category          string                      `gorm:"column:category;not null;index" json:"category"`
	MeasurementType   string                      `gorm:"column:measurement_type;not null" json:"measurement_type"`
	Description       string                      `gorm:"column:description" json:"description"`
	RequiredForBasic  bool                        `gorm:"column:required_for_basic;not null;default:false" json:"required_for_basic"`
	RequiredForRobust bool                        `gorm:"column:required_for_robust;not null;default:false" json:"required_for_robust"`
	ApplicableRoles   datatypes.JSONSlice[string] `gorm:"type:jsonb;column:applicable_roles" json:"applicable_roles"`
	CreatedAt         time.Time                   `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt              `gorm:"index" json:"deleted_at,omitempty"`
}

func (ComplianceMetric) TableName() string { return "compliance_metric" }

// RequiredForTier reports whether the metric applies under the given tier.
func (m *ComplianceMetric) RequiredForTier(tier string) bool {
	if tier == TierRobust {
		return m.RequiredForRobust
	}
	return m.RequiredForBasic
}

// AppliesToRole reports whether the metric applies to the given role. An empty
// ApplicableRoles list means every role.
func (m *ComplianceMetric) AppliesToRole(role string) bool {
	if len(m.ApplicableRoles) == 0 {
		return true
	}
	for _, r := range m.ApplicableRoles {
		if r == role {
			return true
		}
	}
	return false
}
