package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TransitionStatusPending  = "PENDING"
	TransitionStatusApproved = "APPROVED"
	TransitionStatusRejected = "REJECTED"
)

// RoleTransitionRequest is created by a user requesting progression and mutated
// only by a reviewer or the automation path. APPROVED and REJECTED are terminal;
// further attempts require a new request.
type RoleTransitionRequest struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	FromRole        string         `gorm:"column:from_role;not null" json:"from_role"`
	ToRole          string         `gorm:"column:to_role;not null" json:"to_role"`
	Status          string         `gorm:"column:status;not null;default:'PENDING';index" json:"status"`
	ReviewerID      *uuid.UUID     `gorm:"type:uuid;column:reviewer_id" json:"reviewer_id,omitempty"`
	RejectionReason string         `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time     `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RoleTransitionRequest) TableName() string { return "role_transition_request" }

// Terminal reports whether the request has been decided.
func (r *RoleTransitionRequest) Terminal() bool {
	return r.Status == TransitionStatusApproved || r.Status == TransitionStatusRejected
}
