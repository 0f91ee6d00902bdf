package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationTransitionRequested = "transition_requested"
	NotificationTransitionReviewed  = "transition_reviewed"
	NotificationTierChanged         = "tier_changed"
)

// Notification is the durable half of the fire-and-forget notify boundary.
// Writes are best-effort; failures are logged, never propagated.
type Notification struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Type      string         `gorm:"column:type;not null" json:"type"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Message   string         `gorm:"column:message" json:"message"`
	Read      bool           `gorm:"column:read;not null;default:false;index" json:"read"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Notification) TableName() string { return "notification" }
