package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/types"
)

type RoleTransitionRequestRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.RoleTransitionRequest) (*types.RoleTransitionRequest, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RoleTransitionRequest, error)
	GetPendingByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RoleTransitionRequest, error)
	ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RoleTransitionRequest, error)
	ListPending(ctx context.Context, tx *gorm.DB) ([]*types.RoleTransitionRequest, error)
	// Review moves a request to a terminal status. The service layer guards
	// against re-reviewing; the WHERE on status makes the guard race-safe.
	Review(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, reviewerID uuid.UUID, reason string) (int64, error)
}

type roleTransitionRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRoleTransitionRequestRepo(db *gorm.DB, baseLog *logger.Logger) RoleTransitionRequestRepo {
	return &roleTransitionRequestRepo{db: db, log: baseLog.With("repo", "RoleTransitionRequestRepo")}
}

func (r *roleTransitionRequestRepo) Create(ctx context.Context, tx *gorm.DB, row *types.RoleTransitionRequest) (*types.RoleTransitionRequest, error) {
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

func (r *roleTransitionRequestRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RoleTransitionRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.RoleTransitionRequest
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

func (r *roleTransitionRequestRepo) GetPendingByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.RoleTransitionRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return nil, nil
	}

	var results []*types.RoleTransitionRequest
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.TransitionStatusPending).
		Limit(1).
		Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

func (r *roleTransitionRequestRepo) ListByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.RoleTransitionRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.RoleTransitionRequest
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

func (r *roleTransitionRequestRepo) ListPending(ctx context.Context, tx *gorm.DB) ([]*types.RoleTransitionRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.RoleTransitionRequest
	if err := transaction.WithContext(ctx).
		Where("status = ?", types.TransitionStatusPending).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *roleTransitionRequestRepo) Review(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string, reviewerID uuid.UUID, reason string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if id == uuid.Nil {
		return 0, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":           status,
		"rejection_reason": reason,
		"reviewed_at":      now,
	}
	if reviewerID != uuid.Nil {
		updates["reviewer_id"] = reviewerID
	}
	res := transaction.WithContext(ctx).
		Model(&types.RoleTransitionRequest{}).
		Where("id = ? AND status = ?", id, types.TransitionStatusPending).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
