package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/types"
)

type ProgressionTriggerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ProgressionTrigger) (*types.ProgressionTrigger, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.ProgressionTrigger, error)
	ListByFromRole(ctx context.Context, tx *gorm.DB, fromRole string) ([]*types.ProgressionTrigger, error)
	GetByFromTo(ctx context.Context, tx *gorm.DB, fromRole, toRole string) (*types.ProgressionTrigger, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type progressionTriggerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressionTriggerRepo(db *gorm.DB, baseLog *logger.Logger) ProgressionTriggerRepo {
	return &progressionTriggerRepo{db: db, log: baseLog.With("repo", "ProgressionTriggerRepo")}
}

func (r *progressionTriggerRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ProgressionTrigger) (*types.ProgressionTrigger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil, nil
	}

	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *progressionTriggerRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.ProgressionTrigger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ProgressionTrigger
	if err := transaction.WithContext(ctx).
		Order("from_role ASC, to_role ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *progressionTriggerRepo) ListByFromRole(ctx context.Context, tx *gorm.DB, fromRole string) ([]*types.ProgressionTrigger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ProgressionTrigger
	if fromRole == "" {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("from_role = ?", fromRole).
		Order("to_role ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *progressionTriggerRepo) GetByFromTo(ctx context.Context, tx *gorm.DB, fromRole, toRole string) (*types.ProgressionTrigger, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ProgressionTrigger
	if err := transaction.WithContext(ctx).
		Where("from_role = ? AND to_role = ?", fromRole, toRole).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *progressionTriggerRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil || len(fields) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.ProgressionTrigger{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return err
	}
	return nil
}

func (r *progressionTriggerRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.ProgressionTrigger{}).Error; err != nil {
		return err
	}
	return nil
}
