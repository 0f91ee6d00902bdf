package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/types"
)

const defaultAutoApproveThreshold = 90

// ProgressionService evaluates readiness against progression triggers, opens
// role transition requests and reviews them. Approval migrates the user's
// requirement records and updates the role in one transaction.
type ProgressionService interface {
	ListTriggers(ctx context.Context) ([]*types.ProgressionTrigger, error)
	CreateTrigger(ctx context.Context, input *CreateTriggerInput) (*types.ProgressionTrigger, error)
	UpdateTrigger(ctx context.Context, id uuid.UUID, input *UpdateTriggerInput) error
	DeleteTrigger(ctx context.Context, id uuid.UUID) error

	// GetReport evaluates the user against every trigger leaving their role.
	GetReport(ctx context.Context, userID uuid.UUID) (*ProgressionReport, error)
	TriggerProgression(ctx context.Context, userID uuid.UUID, toRole string) (*types.RoleTransitionRequest, error)
	ListPendingRequests(ctx context.Context) ([]*types.RoleTransitionRequest, error)
	ListUserRequests(ctx context.Context, userID uuid.UUID) ([]*types.RoleTransitionRequest, error)
	ReviewRequest(ctx context.Context, requestID, reviewerID uuid.UUID, approve bool, reason string) (*types.RoleTransitionRequest, error)
}

type CreateTriggerInput struct {
	FromRole          string                `json:"from_role"`
	ToRole            string                `json:"to_role"`
	MinHoursRequired  float64               `json:"min_hours_required"`
	MinTimeInRoleDays int                   `json:"min_time_in_role_days"`
	ApprovalRequired  bool                  `json:"approval_required"`
	AutomationRules   types.AutomationRules `json:"automation_rules"`
}

// UpdateTriggerInput carries partial trigger updates; nil fields are left
// untouched. The role pair is immutable, delete and recreate to change it.
type UpdateTriggerInput struct {
	MinHoursRequired  *float64               `json:"min_hours_required"`
	MinTimeInRoleDays *int                   `json:"min_time_in_role_days"`
	ApprovalRequired  *bool                  `json:"approval_required"`
	AutomationRules   *types.AutomationRules `json:"automation_rules"`
}

// PathReadiness is one evaluated outbound transition for a user.
type PathReadiness struct {
	Trigger        *types.ProgressionTrigger `json:"trigger"`
	Score          float64                   `json:"score"`
	Eligible       bool                      `json:"eligible"`
	EstimatedTime  string                    `json:"estimated_time"`
	Evidence       Evidence                  `json:"evidence"`
	BlockedReasons []string                  `json:"blocked_reasons,omitempty"`
}

type ProgressionReport struct {
	UserID                uuid.UUID                      `json:"user_id"`
	Role                  string                         `json:"role"`
	Tier                  string                         `json:"tier"`
	Paths                 []*PathReadiness               `json:"paths"`
	CompletedRequirements []*types.UserComplianceRecord  `json:"completed_requirements"`
	PendingRequirements   []*types.UserComplianceRecord  `json:"pending_requirements"`
	History               []*types.RoleTransitionRequest `json:"history"`
	Recommendations       []string                       `json:"recommendations"`
	PendingRequest        *types.RoleTransitionRequest   `json:"pending_request,omitempty"`
}

type progressionService struct {
	db             *gorm.DB
	log            *logger.Logger
	userRepo       repos.UserRepo
	metricRepo     repos.ComplianceMetricRepo
	recordRepo     repos.UserComplianceRecordRepo
	triggerRepo    repos.ProgressionTriggerRepo
	transitionRepo repos.RoleTransitionRequestRepo
	auditRepo      repos.RoleAuditLogRepo
	migrator       RequirementMigrator
	notifier       ComplianceNotifier
}

func NewProgressionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	metricRepo repos.ComplianceMetricRepo,
	recordRepo repos.UserComplianceRecordRepo,
	triggerRepo repos.ProgressionTriggerRepo,
	transitionRepo repos.RoleTransitionRequestRepo,
	auditRepo repos.RoleAuditLogRepo,
	migrator RequirementMigrator,
	notifier ComplianceNotifier,
) ProgressionService {
	return &progressionService{
		db:             db,
		log:            baseLog.With("service", "ProgressionService"),
		userRepo:       userRepo,
		metricRepo:     metricRepo,
		recordRepo:     recordRepo,
		triggerRepo:    triggerRepo,
		transitionRepo: transitionRepo,
		auditRepo:      auditRepo,
		migrator:       migrator,
		notifier:       notifier,
	}
}

func (s *progressionService) ListTriggers(ctx context.Context) ([]*types.ProgressionTrigger, error) {
	return s.triggerRepo.List(ctx, nil)
}

func (s *progressionService) CreateTrigger(ctx context.Context, input *CreateTriggerInput) (*types.ProgressionTrigger, error) {
	if input == nil {
		return nil, apperrors.Wrap(fmt.Errorf("missing trigger payload"), apperrors.ErrValidation)
	}
	if !types.ValidRole(input.FromRole) || !types.ValidRole(input.ToRole) {
		return nil, apperrors.Wrap(fmt.Errorf("unknown role in transition %s -> %s", input.FromRole, input.ToRole), apperrors.ErrValidation)
	}
	if input.FromRole == input.ToRole {
		return nil, apperrors.Wrap(fmt.Errorf("transition cannot target its own role"), apperrors.ErrValidation)
	}
	if input.MinHoursRequired < 0 || input.MinTimeInRoleDays < 0 {
		return nil, apperrors.Wrap(fmt.Errorf("thresholds cannot be negative"), apperrors.ErrValidation)
	}
	if existing, err := s.triggerRepo.GetByFromTo(ctx, nil, input.FromRole, input.ToRole); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	} else if existing != nil {
		return nil, apperrors.Wrap(fmt.Errorf("trigger %s -> %s already exists", input.FromRole, input.ToRole), apperrors.ErrConflict)
	}

	row := &types.ProgressionTrigger{
		FromRole:          input.FromRole,
		ToRole:            input.ToRole,
		MinHoursRequired:  input.MinHoursRequired,
		MinTimeInRoleDays: input.MinTimeInRoleDays,
		ApprovalRequired:  input.ApprovalRequired,
		AutomationRules:   datatypes.NewJSONType(input.AutomationRules),
	}
	created, err := s.triggerRepo.Create(ctx, nil, row)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	s.log.Info("trigger created", "from", created.FromRole, "to", created.ToRole)
	return created, nil
}

func (s *progressionService) UpdateTrigger(ctx context.Context, id uuid.UUID, input *UpdateTriggerInput) error {
	if input == nil {
		return apperrors.Wrap(fmt.Errorf("missing trigger payload"), apperrors.ErrValidation)
	}
	fields := map[string]interface{}{}
	if input.MinHoursRequired != nil {
		if *input.MinHoursRequired < 0 {
			return apperrors.Wrap(fmt.Errorf("min hours cannot be negative"), apperrors.ErrValidation)
		}
		fields["min_hours_required"] = *input.MinHoursRequired
	}
	if input.MinTimeInRoleDays != nil {
		if *input.MinTimeInRoleDays < 0 {
			return apperrors.Wrap(fmt.Errorf("min time in role cannot be negative"), apperrors.ErrValidation)
		}
		fields["min_time_in_role_days"] = *input.MinTimeInRoleDays
	}
	if input.ApprovalRequired != nil {
		fields["approval_required"] = *input.ApprovalRequired
	}
	if input.AutomationRules != nil {
		if input.AutomationRules.AutoApproveThreshold < 0 {
			return apperrors.Wrap(fmt.Errorf("auto-approve threshold cannot be negative"), apperrors.ErrValidation)
		}
		fields["automation_rules"] = datatypes.NewJSONType(*input.AutomationRules)
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.triggerRepo.UpdateFields(ctx, nil, id, fields); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	s.log.Info("trigger updated", "trigger_id", id)
	return nil
}

func (s *progressionService) DeleteTrigger(ctx context.Context, id uuid.UUID) error {
	if err := s.triggerRepo.DeleteByID(ctx, nil, id); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	return nil
}

func (s *progressionService) GetReport(ctx context.Context, userID uuid.UUID) (*ProgressionReport, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	report := &ProgressionReport{UserID: userID, Role: user.Role, Tier: user.ComplianceTier}
	if user.Role == "" {
		return report, nil
	}

	triggers, err := s.triggerRepo.ListByFromRole(ctx, nil, user.Role)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	pending, err := s.transitionRepo.GetPendingByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	report.PendingRequest = pending

	history, err := s.transitionRepo.ListByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	report.History = history

	records, err := s.recordRepo.GetApplicableByUserID(ctx, nil, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	for _, rec := range records {
		if rec.Status == types.RecordStatusCompliant {
			report.CompletedRequirements = append(report.CompletedRequirements, rec)
		} else {
			report.PendingRequirements = append(report.PendingRequirements, rec)
		}
	}

	base, err := s.gatherEvidence(ctx, user)
	if err != nil {
		return nil, err
	}

	for _, trig := range triggers {
		ev := base
		ev.RequiredHours = trig.MinHoursRequired
		ev.MinDaysInRole = trig.MinTimeInRoleDays

		path := &PathReadiness{
			Trigger:       trig,
			Evidence:      ev,
			Score:         ReadinessScore(ev),
			EstimatedTime: EstimateTimeToComplete(ev),
		}
		rules := trig.AutomationRules.Data()
		threshold := rules.AutoApproveThreshold
		if threshold <= 0 {
			threshold = defaultAutoApproveThreshold
		}
		approved := false
		for _, past := range history {
			if past.ToRole == trig.ToRole && past.Status == types.TransitionStatusApproved {
				approved = true
				break
			}
		}
		// With approval required the score alone never makes a user eligible;
		// a human-approved request does.
		path.Eligible = path.Score >= threshold && (!trig.ApprovalRequired || approved)
		if path.Score < 100 {
			path.BlockedReasons = blockedReasons(ev)
		} else if !path.Eligible {
			path.BlockedReasons = []string{"supervisor approval required"}
		}
		report.Paths = append(report.Paths, path)
		report.Recommendations = append(report.Recommendations, recommend(path)...)
	}
	return report, nil
}

func recommend(path *PathReadiness) []string {
	target := path.Trigger.ToRole
	if path.Eligible {
		if path.Trigger.ApprovalRequired {
			return []string{fmt.Sprintf("All requirements for %s are met; submit a progression request for review", target)}
		}
		return []string{fmt.Sprintf("All requirements for %s are met; submit a progression request", target)}
	}
	out := make([]string, 0, len(path.BlockedReasons))
	for _, reason := range path.BlockedReasons {
		out = append(out, fmt.Sprintf("For %s: %s", target, reason))
	}
	return out
}

// gatherEvidence folds the user's applicable compliance records into evidence
// counters keyed by the metric's measurement type. Trigger-specific thresholds
// (hours, time in role) are layered on per path by the caller.
func (s *progressionService) gatherEvidence(ctx context.Context, user *types.User) (Evidence, error) {
	var ev Evidence

	records, err := s.recordRepo.GetApplicableByUserID(ctx, nil, user.ID)
	if err != nil {
		return ev, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	metricIDSet := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		metricIDSet = append(metricIDSet, rec.MetricID)
	}
	metrics, err := s.metricRepo.GetByIDs(ctx, nil, metricIDSet)
	if err != nil {
		return ev, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	typeByMetric := make(map[uuid.UUID]string, len(metrics))
	for _, m := range metrics {
		typeByMetric[m.ID] = m.MeasurementType
	}

	for _, rec := range records {
		done := rec.Status == types.RecordStatusCompliant
		switch typeByMetric[rec.MetricID] {
		case types.MeasurementTrainingHours:
			ev.TeachingHours += rec.ProgressValue
		case types.MeasurementDocumentReview:
			ev.DocumentsRequired++
			if done {
				ev.DocumentsSubmitted++
			}
		case types.MeasurementVideoSubmission:
			ev.VideosRequired++
			if done {
				ev.VideosSubmitted++
			}
		case types.MeasurementAssessment:
			ev.EvaluationsRequired++
			if done {
				ev.EvaluationsCompleted++
			}
		}
	}

	if user.RoleAssignedAt != nil {
		ev.DaysInRole = int(time.Since(*user.RoleAssignedAt).Hours() / 24)
	}
	return ev, nil
}

func blockedReasons(ev Evidence) []string {
	var reasons []string
	if ev.RequiredHours > 0 && ev.TeachingHours < ev.RequiredHours {
		reasons = append(reasons, fmt.Sprintf("teaching hours %.1f of %.1f", ev.TeachingHours, ev.RequiredHours))
	}
	if ev.DocumentsRequired > 0 && ev.DocumentsSubmitted < ev.DocumentsRequired {
		reasons = append(reasons, fmt.Sprintf("documents %d of %d", ev.DocumentsSubmitted, ev.DocumentsRequired))
	}
	if ev.VideosRequired > 0 && ev.VideosSubmitted < ev.VideosRequired {
		reasons = append(reasons, fmt.Sprintf("videos %d of %d", ev.VideosSubmitted, ev.VideosRequired))
	}
	if ev.EvaluationsRequired > 0 && ev.EvaluationsCompleted < ev.EvaluationsRequired {
		reasons = append(reasons, fmt.Sprintf("evaluations %d of %d", ev.EvaluationsCompleted, ev.EvaluationsRequired))
	}
	if ev.MinDaysInRole > 0 && ev.DaysInRole < ev.MinDaysInRole {
		reasons = append(reasons, fmt.Sprintf("time in role %d of %d days", ev.DaysInRole, ev.MinDaysInRole))
	}
	return reasons
}

func (s *progressionService) TriggerProgression(ctx context.Context, userID uuid.UUID, toRole string) (*types.RoleTransitionRequest, error) {
	if !types.ValidRole(toRole) {
		return nil, apperrors.Wrap(fmt.Errorf("unknown role %q", toRole), apperrors.ErrValidation)
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == "" {
		return nil, apperrors.Wrap(fmt.Errorf("user %s has no role", userID), apperrors.ErrInvalidState)
	}

	trig, err := s.triggerRepo.GetByFromTo(ctx, nil, user.Role, toRole)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if trig == nil {
		return nil, apperrors.Wrap(fmt.Errorf("no transition defined from %s to %s", user.Role, toRole), apperrors.ErrNotFound)
	}

	if pending, err := s.transitionRepo.GetPendingByUserID(ctx, nil, userID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	} else if pending != nil {
		return nil, apperrors.Wrap(
			fmt.Errorf("user %s already has a pending request to %s", userID, pending.ToRole),
			apperrors.ErrConflict)
	}

	ev, err := s.gatherEvidence(ctx, user)
	if err != nil {
		return nil, err
	}
	ev.RequiredHours = trig.MinHoursRequired
	ev.MinDaysInRole = trig.MinTimeInRoleDays
	score := ReadinessScore(ev)

	request := &types.RoleTransitionRequest{
		UserID:   userID,
		FromRole: user.Role,
		ToRole:   toRole,
		Status:   types.TransitionStatusPending,
	}
	created, err := s.transitionRepo.Create(ctx, nil, request)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}

	// Every created request reaches the admins, whether or not the trigger
	// demands human approval or automation decides it moments later.
	if s.notifier != nil {
		var adminIDs []uuid.UUID
		admins, err := s.userRepo.ListByRoles(ctx, nil, []string{types.RoleAD, types.RoleSA})
		if err != nil {
			s.log.Warn("admin lookup for notification failed", "error", err)
		}
		for _, a := range admins {
			adminIDs = append(adminIDs, a.ID)
		}
		s.notifier.TransitionRequested(created, adminIDs)
	}

	rules := trig.AutomationRules.Data()
	threshold := rules.AutoApproveThreshold
	if threshold <= 0 {
		threshold = defaultAutoApproveThreshold
	}
	autoApprove := !trig.ApprovalRequired && !rules.RequireSupervisorApproval && score >= threshold
	if autoApprove {
		reviewed, err := s.ReviewRequest(ctx, created.ID, uuid.Nil, true, "")
		if err != nil {
			s.log.Warn("auto-approval failed; request left pending",
				"request_id", created.ID, "error", err)
			return created, nil
		}
		s.log.Info("request auto-approved", "request_id", created.ID, "score", score)
		return reviewed, nil
	}
	s.log.Info("progression requested",
		"user_id", userID, "from", created.FromRole, "to", created.ToRole, "score", score)
	return created, nil
}

func (s *progressionService) ListPendingRequests(ctx context.Context) ([]*types.RoleTransitionRequest, error) {
	return s.transitionRepo.ListPending(ctx, nil)
}

func (s *progressionService) ListUserRequests(ctx context.Context, userID uuid.UUID) ([]*types.RoleTransitionRequest, error) {
	return s.transitionRepo.ListByUserID(ctx, nil, userID)
}

func (s *progressionService) ReviewRequest(ctx context.Context, requestID, reviewerID uuid.UUID, approve bool, reason string) (*types.RoleTransitionRequest, error) {
	requests, err := s.transitionRepo.GetByIDs(ctx, nil, []uuid.UUID{requestID})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if len(requests) == 0 {
		return nil, apperrors.Wrap(fmt.Errorf("request %s not found", requestID), apperrors.ErrNotFound)
	}
	request := requests[0]
	if request.Terminal() {
		return nil, apperrors.Wrap(
			fmt.Errorf("request %s already %s", requestID, request.Status),
			apperrors.ErrInvalidState)
	}
	if !approve && reason == "" {
		return nil, apperrors.Wrap(fmt.Errorf("rejection requires a reason"), apperrors.ErrValidation)
	}

	status := types.TransitionStatusApproved
	if !approve {
		status = types.TransitionStatusRejected
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		affected, err := s.transitionRepo.Review(ctx, tx, requestID, status, reviewerID, reason)
		if err != nil {
			return err
		}
		if affected == 0 {
			// A concurrent reviewer decided first.
			return apperrors.Wrap(fmt.Errorf("request %s was reviewed concurrently", requestID), apperrors.ErrInvalidState)
		}
		if !approve {
			return s.audit(ctx, tx, request, reviewerID, types.AuditActionTransitionRejected, reason)
		}

		user, err := s.getUserTx(ctx, tx, request.UserID)
		if err != nil {
			return err
		}
		tier := user.ComplianceTier
		if tier == "" {
			tier = types.TierBasic
		}
		if _, err := s.migrator.MigrateUserRequirements(ctx, tx, request.UserID, request.FromRole, request.ToRole, tier, tier); err != nil {
			return err
		}
		if err := s.userRepo.UpdateRoleAndTier(ctx, tx, request.UserID, request.ToRole, tier); err != nil {
			return err
		}
		return s.audit(ctx, tx, request, reviewerID, types.AuditActionRoleChanged,
			fmt.Sprintf("progression %s -> %s approved", request.FromRole, request.ToRole))
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidState) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}

	updated, err := s.transitionRepo.GetByIDs(ctx, nil, []uuid.UUID{requestID})
	if err != nil || len(updated) == 0 {
		return nil, apperrors.Wrap(fmt.Errorf("request %s vanished after review", requestID), apperrors.ErrPersistence)
	}
	request = updated[0]

	if s.notifier != nil {
		s.notifier.TransitionReviewed(request)
		if approve {
			user, err := s.getUser(ctx, request.UserID)
			if err == nil {
				info := &TierInfo{
					Tier:         user.ComplianceTier,
					TemplateName: TemplateName(user.Role, user.ComplianceTier),
				}
				s.notifier.TierChanged(request.UserID, user.Role, user.ComplianceTier, info)
			}
		}
	}
	s.log.Info("request reviewed", "request_id", requestID, "status", request.Status, "reviewer_id", reviewerID)
	return request, nil
}

func (s *progressionService) audit(ctx context.Context, tx *gorm.DB, request *types.RoleTransitionRequest, actorID uuid.UUID, action, detail string) error {
	if s.auditRepo == nil {
		return nil
	}
	meta, _ := json.Marshal(map[string]any{
		"request_id": request.ID,
		"detail":     detail,
	})
	entry := &types.RoleAuditLog{
		UserID:   request.UserID,
		Action:   action,
		FromRole: request.FromRole,
		ToRole:   request.ToRole,
		Metadata: datatypes.JSON(meta),
	}
	if actorID != uuid.Nil {
		entry.PerformedBy = &actorID
	}
	return s.auditRepo.Create(ctx, tx, entry)
}

func (s *progressionService) getUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.getUserTx(ctx, nil, userID)
}

func (s *progressionService) getUserTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error) {
	users, err := s.userRepo.GetByIDs(ctx, tx, []uuid.UUID{userID})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if len(users) == 0 {
		return nil, apperrors.Wrap(fmt.Errorf("user %s not found", userID), apperrors.ErrNotFound)
	}
	return users[0], nil
}
