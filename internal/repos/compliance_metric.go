package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/types"
)

type ComplianceMetricRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.ComplianceMetric) (*types.ComplianceMetric, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ComplianceMetric, error)
	// ListOrdered returns all metrics ordered by category, then name.
	ListOrdered(ctx context.Context, tx *gorm.DB) ([]*types.ComplianceMetric, error)
	ListRequiredForTier(ctx context.Context, tx *gorm.DB, tier string) ([]*types.ComplianceMetric, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type complianceMetricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComplianceMetricRepo(db *gorm.DB, baseLog *logger.Logger) ComplianceMetricRepo {
	return &complianceMetricRepo{db: db, log: baseLog.With("repo", "ComplianceMetricRepo")}
}

func (r *complianceMetricRepo) Create(ctx context.Context, tx *gorm.DB, row *types.ComplianceMetric) (*types.ComplianceMetric, error) {
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

func (r *complianceMetricRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ComplianceMetric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ComplianceMetric
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *complianceMetricRepo) ListOrdered(ctx context.Context, tx *gorm.DB) ([]*types.ComplianceMetric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ComplianceMetric
	if err := transaction.WithContext(ctx).
		Order("category ASC, name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *complianceMetricRepo) ListRequiredForTier(ctx context.Context, tx *gorm.DB, tier string) ([]*types.ComplianceMetric, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	column := "required_for_basic"
	if tier == types.TierRobust {
		column = "required_for_robust"
	}

	var results []*types.ComplianceMetric
	if err := transaction.WithContext(ctx).
		Where(column+" = ?", true).
		Order("category ASC, name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *complianceMetricRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil || len(fields) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.ComplianceMetric{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return err
	}
	return nil
}

func (r *complianceMetricRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.ComplianceMetric{}).Error; err != nil {
		return err
	}
	return nil
}
