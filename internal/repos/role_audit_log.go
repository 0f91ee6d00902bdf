package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/types"
)

type RoleAuditLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.RoleAuditLog) error
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RoleAuditLog, error)
}

type roleAuditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoleAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) RoleAuditLogRepo {
	return &roleAuditLogRepo{db: db, log: baseLog.With("repo", "RoleAuditLogRepo")}
}

func (r *roleAuditLogRepo) Create(ctx context.Context, tx *gorm.DB, row *types.RoleAuditLog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}

	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	return nil
}

func (r *roleAuditLogRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RoleAuditLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.RoleAuditLog
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
