package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/types"
)

// ComplianceTierService assigns tiers and materializes the matching
// requirement records. Assignment is idempotent per (user, role, tier) and the
// record writes share one transaction with the tier column update, so a user
// can never be observed with a tier but no requirements.
type ComplianceTierService interface {
	AssignTier(ctx context.Context, userID uuid.UUID, role, tier string) (*TierAssignmentResult, error)
	SwitchTier(ctx context.Context, userID uuid.UUID, tier string) (*TierAssignmentResult, error)
	// GetTierInfo returns nil (and no error) when the user has no role or tier.
	GetTierInfo(ctx context.Context, userID uuid.UUID) (*TierInfo, error)
}

type TierAssignmentResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Assigned counts requirement records created or revived by this call.
	Assigned int `json:"assigned"`
	// Retired counts records transitioned to not_applicable by this call.
	Retired int `json:"retired"`
}

type TierInfo struct {
	Tier                  string `json:"tier"`
	TemplateName          string `json:"template_name"`
	TotalRequirements     int    `json:"total_requirements"`
	CompletedRequirements int    `json:"completed_requirements"`
}

type complianceTierService struct {
	db         *gorm.DB
	log        *logger.Logger
	userRepo   repos.UserRepo
	metricRepo repos.ComplianceMetricRepo
	recordRepo repos.UserComplianceRecordRepo
	auditRepo  repos.RoleAuditLogRepo
	notifier   ComplianceNotifier

	// inflight serializes concurrent assignments per (user, operation).
	inflight sync.Map
}

func NewComplianceTierService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	metricRepo repos.ComplianceMetricRepo,
	recordRepo repos.UserComplianceRecordRepo,
	auditRepo repos.RoleAuditLogRepo,
	notifier ComplianceNotifier,
) ComplianceTierService {
	return &complianceTierService{
		db:         db,
		log:        baseLog.With("service", "ComplianceTierService"),
		userRepo:   userRepo,
		metricRepo: metricRepo,
		recordRepo: recordRepo,
		auditRepo:  auditRepo,
		notifier:   notifier,
	}
}

// guard rejects a second in-flight call for the same user+operation instead of
// queueing it. The loser gets ErrConflict and the caller retries.
func (s *complianceTierService) guard(userID uuid.UUID, op string) (release func(), err error) {
	key := op + ":" + userID.String()
	if _, loaded := s.inflight.LoadOrStore(key, struct{}{}); loaded {
		return nil, apperrors.Wrap(fmt.Errorf("%s already in progress for user %s", op, userID), apperrors.ErrConflict)
	}
	return func() { s.inflight.Delete(key) }, nil
}

func (s *complianceTierService) AssignTier(ctx context.Context, userID uuid.UUID, role, tier string) (*TierAssignmentResult, error) {
	if !types.ValidRole(role) {
		return nil, apperrors.Wrap(fmt.Errorf("unknown role %q", role), apperrors.ErrValidation)
	}
	if !types.ValidTier(tier) {
		return nil, apperrors.Wrap(fmt.Errorf("unknown tier %q", tier), apperrors.ErrValidation)
	}
	release, err := s.guard(userID, "assign_tier")
	if err != nil {
		return nil, err
	}
	defer release()

	return s.assign(ctx, userID, role, tier)
}

func (s *complianceTierService) SwitchTier(ctx context.Context, userID uuid.UUID, tier string) (*TierAssignmentResult, error) {
	if !types.ValidTier(tier) {
		return nil, apperrors.Wrap(fmt.Errorf("unknown tier %q", tier), apperrors.ErrValidation)
	}
	release, err := s.guard(userID, "switch_tier")
	if err != nil {
		return nil, err
	}
	defer release()

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == "" {
		return nil, apperrors.Wrap(fmt.Errorf("user %s has no role; assign a role before switching tiers", userID), apperrors.ErrInvalidState)
	}
	return s.assign(ctx, userID, user.Role, tier)
}

// assign is the shared core of AssignTier and SwitchTier. The record
// reconciliation and the user-row tier update share one transaction.
func (s *complianceTierService) assign(ctx context.Context, userID uuid.UUID, role, tier string) (*TierAssignmentResult, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Role == role && user.ComplianceTier == tier {
		return &TierAssignmentResult{
			Success: true,
			Message: fmt.Sprintf("user already on %s", TemplateName(role, tier)),
		}, nil
	}

	metrics, err := s.metricRepo.ListOrdered(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	target := ResolveRequirementSet(role, tier, metrics)

	var (
		assigned, retired int
		created           []*types.UserComplianceRecord
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.recordRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		created, assigned, retired, err = s.reconcileRecords(ctx, tx, userID, target, existing)
		if err != nil {
			return err
		}
		if user.Role != role {
			if err := s.userRepo.UpdateRoleAndTier(ctx, tx, userID, role, tier); err != nil {
				return err
			}
		} else if err := s.userRepo.UpdateTier(ctx, tx, userID, tier); err != nil {
			return err
		}
		if s.auditRepo == nil {
			return nil
		}
		action := types.AuditActionTierAssigned
		if user.Role == role && user.ComplianceTier != "" {
			action = types.AuditActionTierSwitched
		}
		return s.auditRepo.Create(ctx, tx, &types.RoleAuditLog{
			UserID:   userID,
			Action:   action,
			FromRole: user.Role,
			ToRole:   role,
			FromTier: user.ComplianceTier,
			ToTier:   tier,
		})
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}

	info := &TierInfo{
		Tier:              tier,
		TemplateName:      TemplateName(role, tier),
		TotalRequirements: len(target),
	}
	// Preserved compliant records count toward the new tier, so the emitted
	// info reflects the reconciled set, not a zeroed one.
	if records, rerr := s.recordRepo.GetApplicableByUserID(ctx, nil, userID); rerr == nil {
		info.TotalRequirements = len(records)
		for _, rec := range records {
			if rec.Status == types.RecordStatusCompliant {
				info.CompletedRequirements++
			}
		}
	} else {
		s.log.Warn("tier info reload failed", "user_id", userID, "error", rerr)
	}
	if s.notifier != nil {
		if len(created) > 0 {
			s.notifier.RequirementsAssigned(userID, created)
		}
		s.notifier.TierChanged(userID, role, tier, info)
	}
	s.log.Info("tier assigned",
		"user_id", userID, "template", info.TemplateName,
		"assigned", assigned, "retired", retired)

	return &TierAssignmentResult{
		Success:  true,
		Message:  fmt.Sprintf("assigned %s: %d requirements", info.TemplateName, len(target)),
		Assigned: assigned,
		Retired:  retired,
	}, nil
}

// reconcileRecords diffs the user's existing records against the target metric
// set: records outside the target are retired to not_applicable, missing ones
// are created, previously retired ones are revived to pending. Compliant
// records inside the target keep their status and evidence. The returned slice
// holds the newly created rows for the requirement-created event.
func (s *complianceTierService) reconcileRecords(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	target []*types.ComplianceMetric,
	existing []*types.UserComplianceRecord,
) (created []*types.UserComplianceRecord, assigned, retired int, err error) {
	targetIDs := make(map[uuid.UUID]*types.ComplianceMetric, len(target))
	for _, m := range target {
		targetIDs[m.ID] = m
	}
	byMetric := make(map[uuid.UUID]*types.UserComplianceRecord, len(existing))
	for _, rec := range existing {
		byMetric[rec.MetricID] = rec
	}

	var retire, revive []uuid.UUID
	for _, rec := range existing {
		if _, ok := targetIDs[rec.MetricID]; !ok {
			if rec.Applicable() {
				retire = append(retire, rec.ID)
			}
			continue
		}
		if !rec.Applicable() {
			revive = append(revive, rec.ID)
		}
	}

	var create []*types.UserComplianceRecord
	for _, m := range target {
		if _, ok := byMetric[m.ID]; ok {
			continue
		}
		create = append(create, &types.UserComplianceRecord{
			UserID:        userID,
			MetricID:      m.ID,
			Status:        types.RecordStatusPending,
			RequiredValue: defaultRequiredValue(m),
		})
	}

	if err := s.recordRepo.SetStatusByIDs(ctx, tx, retire, types.RecordStatusNotApplicable); err != nil {
		return nil, 0, 0, err
	}
	if err := s.recordRepo.ResetToPendingByIDs(ctx, tx, revive); err != nil {
		return nil, 0, 0, err
	}
	if _, err := s.recordRepo.Create(ctx, tx, create); err != nil {
		return nil, 0, 0, err
	}
	return create, len(create) + len(revive), len(retire), nil
}

// defaultRequiredValue seeds the record target from the metric's measurement
// type. Admins can adjust per-record values afterwards.
func defaultRequiredValue(m *types.ComplianceMetric) float64 {
	switch m.MeasurementType {
	case types.MeasurementTrainingHours:
		return 40
	case types.MeasurementAssessment:
		return 80
	default:
		return 1
	}
}

func (s *complianceTierService) GetTierInfo(ctx context.Context, userID uuid.UUID) (*TierInfo, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == "" || user.ComplianceTier == "" {
		return nil, nil
	}

	records, err := s.recordRepo.GetApplicableByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	completed := 0
	for _, rec := range records {
		if rec.Status == types.RecordStatusCompliant {
			completed++
		}
	}
	return &TierInfo{
		Tier:                  user.ComplianceTier,
		TemplateName:          TemplateName(user.Role, user.ComplianceTier),
		TotalRequirements:     len(records),
		CompletedRequirements: completed,
	}, nil
}

func (s *complianceTierService) getUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if len(users) == 0 {
		return nil, apperrors.Wrap(fmt.Errorf("user %s not found", userID), apperrors.ErrNotFound)
	}
	return users[0], nil
}
