package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/types"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email, role string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "x",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedMetric(tb testing.TB, ctx context.Context, tx *gorm.DB, name, category string, basic, robust bool) *types.ComplianceMetric {
	tb.Helper()
	m := &types.ComplianceMetric{
		ID:                uuid.New(),
		Name:              name,
		Category:          category,
		MeasurementType:   types.MeasurementDocumentReview,
		RequiredForBasic:  basic,
		RequiredForRobust: robust,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed metric: %v", err)
	}
	return m
}

func SeedTrigger(tb testing.TB, ctx context.Context, tx *gorm.DB, fromRole, toRole string, minHours float64, approvalRequired bool) *types.ProgressionTrigger {
	tb.Helper()
	tr := &types.ProgressionTrigger{
		ID:               uuid.New(),
		FromRole:         fromRole,
		ToRole:           toRole,
		MinHoursRequired: minHours,
		ApprovalRequired: approvalRequired,
	}
	if err := tx.WithContext(ctx).Create(tr).Error; err != nil {
		tb.Fatalf("seed trigger: %v", err)
	}
	return tr
}
