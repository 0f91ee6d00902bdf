package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/repos/testutil"
	"github.com/BlindPI/arccm-backend/internal/types"
)

func newProgressionService(t *testing.T, tx *gorm.DB) (ProgressionService, repos.UserRepo, repos.UserComplianceRecordRepo) {
	t.Helper()
	return newProgressionServiceWithNotifier(t, tx, nil)
}

func newProgressionServiceWithNotifier(t *testing.T, tx *gorm.DB, notifier ComplianceNotifier) (ProgressionService, repos.UserRepo, repos.UserComplianceRecordRepo) {
	t.Helper()
	log := testutil.Logger(t)
	userRepo := repos.NewUserRepo(tx, log)
	metricRepo := repos.NewComplianceMetricRepo(tx, log)
	recordRepo := repos.NewUserComplianceRecordRepo(tx, log)
	triggerRepo := repos.NewProgressionTriggerRepo(tx, log)
	transitionRepo := repos.NewRoleTransitionRequestRepo(tx, log)
	auditRepo := repos.NewRoleAuditLogRepo(tx, log)
	migrator := NewRequirementMigrator(tx, log, metricRepo, recordRepo)
	svc := NewProgressionService(tx, log, userRepo, metricRepo, recordRepo,
		triggerRepo, transitionRepo, auditRepo, migrator, notifier)
	return svc, userRepo, recordRepo
}

func TestTriggerProgressionRejectsDuplicatePending(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "duplicate@example.com", types.RoleIT)
	testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 0, true)

	svc, _, _ := newProgressionService(t, tx)

	if _, err := svc.TriggerProgression(ctx, user.ID, types.RoleIP); err != nil {
		t.Fatalf("first TriggerProgression: %v", err)
	}
	if _, err := svc.TriggerProgression(ctx, user.ID, types.RoleIP); !apperrors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("duplicate request err=%v, want ErrConflict", err)
	}
}

func TestTriggerProgressionUnknownTransition(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "notrigger@example.com", types.RoleIT)
	svc, _, _ := newProgressionService(t, tx)

	if _, err := svc.TriggerProgression(ctx, user.ID, types.RoleSA); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing trigger err=%v, want ErrNotFound", err)
	}
}

func TestTriggerProgressionAutoApproves(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	// No thresholds, no approval: a fresh user scores 100 and the request is
	// decided immediately.
	user := testutil.SeedUser(t, ctx, tx, "autoapprove@example.com", types.RoleIT)
	testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 0, false)

	recorder := &recordingNotifier{}
	svc, userRepo, _ := newProgressionServiceWithNotifier(t, tx, recorder)

	request, err := svc.TriggerProgression(ctx, user.ID, types.RoleIP)
	if err != nil {
		t.Fatalf("TriggerProgression: %v", err)
	}
	if request.Status != types.TransitionStatusApproved {
		t.Fatalf("status=%q, want APPROVED", request.Status)
	}
	// Admins hear about the creation even when automation decides right away.
	if len(recorder.requested) != 1 {
		t.Fatalf("requested events=%d, want 1", len(recorder.requested))
	}

	users, err := userRepo.GetByIDs(ctx, tx, []uuid.UUID{user.ID})
	if err != nil || len(users) == 0 {
		t.Fatalf("reload user: %v", err)
	}
	if users[0].Role != types.RoleIP {
		t.Fatalf("role=%q, want IP after auto-approval", users[0].Role)
	}
}

func TestReviewRequestApproveMigratesRequirements(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "approve@example.com", types.RoleIT)
	reviewer := testutil.SeedUser(t, ctx, tx, "reviewer@example.com", types.RoleAD)
	testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 0, true)

	log := testutil.Logger(t)
	// Role-scoped metrics so the approval has records to migrate.
	itMetric := &types.ComplianceMetric{
		ID: uuid.New(), Name: "it_orientation", Category: "training",
		MeasurementType:  types.MeasurementDocumentReview,
		RequiredForBasic: true, RequiredForRobust: true,
		ApplicableRoles: []string{types.RoleIT},
	}
	ipMetric := &types.ComplianceMetric{
		ID: uuid.New(), Name: "ip_teaching_log", Category: "training",
		MeasurementType:  types.MeasurementTrainingHours,
		RequiredForBasic: true, RequiredForRobust: true,
		ApplicableRoles: []string{types.RoleIP},
	}
	for _, m := range []*types.ComplianceMetric{itMetric, ipMetric} {
		if err := tx.WithContext(ctx).Create(m).Error; err != nil {
			t.Fatalf("seed metric: %v", err)
		}
	}

	tierSvc := NewComplianceTierService(tx, log,
		repos.NewUserRepo(tx, log),
		repos.NewComplianceMetricRepo(tx, log),
		repos.NewUserComplianceRecordRepo(tx, log),
		repos.NewRoleAuditLogRepo(tx, log), nil)
	if _, err := tierSvc.AssignTier(ctx, user.ID, types.RoleIT, types.TierBasic); err != nil {
		t.Fatalf("AssignTier: %v", err)
	}

	svc, userRepo, recordRepo := newProgressionService(t, tx)

	request, err := svc.TriggerProgression(ctx, user.ID, types.RoleIP)
	if err != nil {
		t.Fatalf("TriggerProgression: %v", err)
	}
	reviewed, err := svc.ReviewRequest(ctx, request.ID, reviewer.ID, true, "")
	if err != nil {
		t.Fatalf("ReviewRequest: %v", err)
	}
	if reviewed.Status != types.TransitionStatusApproved {
		t.Fatalf("status=%q, want APPROVED", reviewed.Status)
	}

	users, err := userRepo.GetByIDs(ctx, tx, []uuid.UUID{user.ID})
	if err != nil || len(users) == 0 {
		t.Fatalf("reload user: %v", err)
	}
	if users[0].Role != types.RoleIP {
		t.Fatalf("role=%q, want IP", users[0].Role)
	}

	records, err := recordRepo.GetByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	byMetric := map[uuid.UUID]string{}
	for _, rec := range records {
		byMetric[rec.MetricID] = rec.Status
	}
	if byMetric[itMetric.ID] != types.RecordStatusNotApplicable {
		t.Fatalf("old-role requirement status=%q, want not_applicable", byMetric[itMetric.ID])
	}
	if byMetric[ipMetric.ID] != types.RecordStatusPending {
		t.Fatalf("new-role requirement status=%q, want pending", byMetric[ipMetric.ID])
	}
}

func TestReviewRequestRejectRequiresReason(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "reject@example.com", types.RoleIT)
	reviewer := testutil.SeedUser(t, ctx, tx, "rejecter@example.com", types.RoleAD)
	testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 0, true)

	svc, userRepo, _ := newProgressionService(t, tx)

	request, err := svc.TriggerProgression(ctx, user.ID, types.RoleIP)
	if err != nil {
		t.Fatalf("TriggerProgression: %v", err)
	}
	if _, err := svc.ReviewRequest(ctx, request.ID, reviewer.ID, false, ""); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("reject without reason err=%v, want ErrValidation", err)
	}

	reviewed, err := svc.ReviewRequest(ctx, request.ID, reviewer.ID, false, "insufficient hours")
	if err != nil {
		t.Fatalf("ReviewRequest reject: %v", err)
	}
	if reviewed.Status != types.TransitionStatusRejected {
		t.Fatalf("status=%q, want REJECTED", reviewed.Status)
	}

	// Rejection must not move the role.
	users, err := userRepo.GetByIDs(ctx, tx, []uuid.UUID{user.ID})
	if err != nil || len(users) == 0 {
		t.Fatalf("reload user: %v", err)
	}
	if users[0].Role != types.RoleIT {
		t.Fatalf("role=%q, want IT unchanged after rejection", users[0].Role)
	}
}

func TestReviewRequestTerminalIsFinal(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "final@example.com", types.RoleIT)
	reviewer := testutil.SeedUser(t, ctx, tx, "finalizer@example.com", types.RoleAD)
	testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 0, true)

	svc, _, _ := newProgressionService(t, tx)

	request, err := svc.TriggerProgression(ctx, user.ID, types.RoleIP)
	if err != nil {
		t.Fatalf("TriggerProgression: %v", err)
	}
	if _, err := svc.ReviewRequest(ctx, request.ID, reviewer.ID, false, "not ready"); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := svc.ReviewRequest(ctx, request.ID, reviewer.ID, true, ""); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("second review err=%v, want ErrInvalidState", err)
	}
}

func TestTriggerProgressionNotifiesAdminsWhilePending(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "pendingnotify@example.com", types.RoleIT)
	admin := testutil.SeedUser(t, ctx, tx, "pendingadmin@example.com", types.RoleAD)
	// No approval needed, but the hours threshold keeps a fresh user below the
	// auto-approve score, so the request stays pending.
	testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 40, false)

	recorder := &recordingNotifier{}
	svc, _, _ := newProgressionServiceWithNotifier(t, tx, recorder)

	request, err := svc.TriggerProgression(ctx, user.ID, types.RoleIP)
	if err != nil {
		t.Fatalf("TriggerProgression: %v", err)
	}
	if request.Status != types.TransitionStatusPending {
		t.Fatalf("status=%q, want PENDING", request.Status)
	}
	if len(recorder.requested) != 1 {
		t.Fatalf("requested events=%d, want 1", len(recorder.requested))
	}
	found := false
	for _, id := range recorder.requestedAdmins[0] {
		if id == admin.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("admin %s missing from fan-out %v", admin.ID, recorder.requestedAdmins[0])
	}
}

func TestUpdateTriggerPartialFields(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	trig := testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 40, false)
	svc, _, _ := newProgressionService(t, tx)

	hours := 60.0
	approval := true
	if err := svc.UpdateTrigger(ctx, trig.ID, &UpdateTriggerInput{
		MinHoursRequired: &hours,
		ApprovalRequired: &approval,
	}); err != nil {
		t.Fatalf("UpdateTrigger: %v", err)
	}

	log := testutil.Logger(t)
	reloaded, err := repos.NewProgressionTriggerRepo(tx, log).GetByFromTo(ctx, nil, types.RoleIT, types.RoleIP)
	if err != nil {
		t.Fatalf("reload trigger: %v", err)
	}
	if reloaded.MinHoursRequired != 60 {
		t.Fatalf("min_hours_required=%v, want 60", reloaded.MinHoursRequired)
	}
	if !reloaded.ApprovalRequired {
		t.Fatal("approval_required not updated")
	}
	if reloaded.MinTimeInRoleDays != trig.MinTimeInRoleDays {
		t.Fatalf("min_time_in_role_days changed to %d", reloaded.MinTimeInRoleDays)
	}

	negative := -1.0
	err = svc.UpdateTrigger(ctx, trig.ID, &UpdateTriggerInput{MinHoursRequired: &negative})
	if !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("negative hours: err=%v, want validation error", err)
	}
}

func TestGetReportEvaluatesPaths(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "report@example.com", types.RoleIT)
	testutil.SeedTrigger(t, ctx, tx, types.RoleIT, types.RoleIP, 40, true)

	svc, _, _ := newProgressionService(t, tx)

	report, err := svc.GetReport(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if len(report.Paths) != 1 {
		t.Fatalf("got %d paths, want 1", len(report.Paths))
	}
	path := report.Paths[0]
	if path.Eligible {
		t.Fatalf("fresh user should not be eligible against a 40h trigger")
	}
	if len(path.BlockedReasons) == 0 {
		t.Fatalf("ineligible path should name blocked reasons")
	}
}

func TestCreateTriggerDuplicateConflict(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	svc, _, _ := newProgressionService(t, tx)

	input := &CreateTriggerInput{FromRole: types.RoleIC, ToRole: types.RoleAP, ApprovalRequired: true}
	if _, err := svc.CreateTrigger(ctx, input); err != nil {
		t.Fatalf("CreateTrigger: %v", err)
	}
	if _, err := svc.CreateTrigger(ctx, input); !apperrors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("duplicate trigger err=%v, want ErrConflict", err)
	}
	if _, err := svc.CreateTrigger(ctx, &CreateTriggerInput{FromRole: types.RoleIC, ToRole: types.RoleIC}); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("self transition err=%v, want ErrValidation", err)
	}
}
