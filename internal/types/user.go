package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certification roles, lowest to highest. Progression between them is gated by
// ProgressionTrigger rows.
const (
	RoleIT = "IT" // instructor trainee
	RoleIP = "IP" // instructor provisional
	RoleIC = "IC" // instructor certified
	RoleAP = "AP" // authorized provider
	RoleAD = "AD" // administrator
	RoleSA = "SA" // system administrator
)

const (
	TierBasic  = "basic"
	TierRobust = "robust"
)

var RoleDisplayNames = map[string]string{
	RoleIT: "Instructor Trainee",
	RoleIP: "Instructor Provisional",
	RoleIC: "Instructor Certified",
	RoleAP: "Authorized Provider",
	RoleAD: "Administrator",
	RoleSA: "System Administrator",
}

func ValidRole(role string) bool {
	_, ok := RoleDisplayNames[role]
	return ok
}

func ValidTier(tier string) bool {
	return tier == TierBasic || tier == TierRobust
}

type User struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email          string         `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password       string         `gorm:"not null;column:password" json:"-"`
	FirstName      string         `gorm:"not null;column:first_name" json:"first_name"`
	LastName       string         `gorm:"not null;column:last_name" json:"last_name"`
	Role           string         `gorm:"column:role;index" json:"role"`
	ComplianceTier string         `gorm:"column:compliance_tier" json:"compliance_tier"`
	RoleAssignedAt *time.Time     `gorm:"column:role_assigned_at" json:"role_assigned_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }
