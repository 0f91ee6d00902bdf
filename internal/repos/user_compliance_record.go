package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/types"
)

type UserComplianceRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.UserComplianceRecord) ([]*types.UserComplianceRecord, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserComplianceRecord, error)
	// GetApplicableByUserID excludes not_applicable rows.
	GetApplicableByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserComplianceRecord, error)
	GetByUserAndMetricIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, metricIDs []uuid.UUID) ([]*types.UserComplianceRecord, error)
	GetByMetricID(ctx context.Context, tx *gorm.DB, metricID uuid.UUID) ([]*types.UserComplianceRecord, error)
	CountByMetricID(ctx context.Context, tx *gorm.DB, metricID uuid.UUID) (int64, error)
	UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, progressValue float64) error
	SetStatusByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, status string) error
	// ResetToPendingByIDs revives retired rows and clears stale progress.
	ResetToPendingByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type userComplianceRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserComplianceRecordRepo(db *gorm.DB, baseLog *logger.Logger) UserComplianceRecordRepo {
	return &userComplianceRecordRepo{db: db, log: baseLog.With("repo", "UserComplianceRecordRepo")}
}

func (r *userComplianceRecordRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.UserComplianceRecord) ([]*types.UserComplianceRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*types.UserComplianceRecord{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *userComplianceRecordRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserComplianceRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserComplianceRecord
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userComplianceRecordRepo) GetApplicableByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserComplianceRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserComplianceRecord
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, types.RecordStatusNotApplicable).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userComplianceRecordRepo) GetByUserAndMetricIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, metricIDs []uuid.UUID) ([]*types.UserComplianceRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserComplianceRecord
	if userID == uuid.Nil || len(metricIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND metric_id IN ?", userID, metricIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userComplianceRecordRepo) GetByMetricID(ctx context.Context, tx *gorm.DB, metricID uuid.UUID) ([]*types.UserComplianceRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.UserComplianceRecord
	if metricID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("metric_id = ?", metricID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *userComplianceRecordRepo) CountByMetricID(ctx context.Context, tx *gorm.DB, metricID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if metricID == uuid.Nil {
		return 0, nil
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.UserComplianceRecord{}).
		Where("metric_id = ?", metricID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userComplianceRecordRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, progressValue float64) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return nil
	}

	updates := map[string]interface{}{
		"status":         status,
		"progress_value": progressValue,
	}
	if status == types.RecordStatusCompliant {
		updates["completed_at"] = gorm.Expr("now()")
	}

	if err := transaction.WithContext(ctx).
		Model(&types.UserComplianceRecord{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return err
	}
	return nil
}

func (r *userComplianceRecordRepo) SetStatusByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.UserComplianceRecord{}).
		Where("id IN ?", ids).
		Update("status", status).Error; err != nil {
		return err
	}
	return nil
}

func (r *userComplianceRecordRepo) ResetToPendingByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(ctx).
		Model(&types.UserComplianceRecord{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":         types.RecordStatusPending,
			"progress_value": 0,
			"completed_at":   nil,
		}).Error; err != nil {
		return err
	}
	return nil
}
