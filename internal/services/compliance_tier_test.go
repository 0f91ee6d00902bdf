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

func newTierService(t *testing.T, tx *gorm.DB) (ComplianceTierService, repos.UserComplianceRecordRepo, repos.UserRepo) {
	t.Helper()
	return newTierServiceWithNotifier(t, tx, nil)
}

func newTierServiceWithNotifier(t *testing.T, tx *gorm.DB, notifier ComplianceNotifier) (ComplianceTierService, repos.UserComplianceRecordRepo, repos.UserRepo) {
	t.Helper()
	log := testutil.Logger(t)
	userRepo := repos.NewUserRepo(tx, log)
	metricRepo := repos.NewComplianceMetricRepo(tx, log)
	recordRepo := repos.NewUserComplianceRecordRepo(tx, log)
	auditRepo := repos.NewRoleAuditLogRepo(tx, log)
	svc := NewComplianceTierService(tx, log, userRepo, metricRepo, recordRepo, auditRepo, notifier)
	return svc, recordRepo, userRepo
}

func TestAssignTierCreatesRecordsAndSetsTier(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "assign@example.com", types.RoleIT)
	testutil.SeedMetric(t, ctx, tx, "first_aid_cert", "training", true, true)
	testutil.SeedMetric(t, ctx, tx, "background_check", "safety", true, true)
	testutil.SeedMetric(t, ctx, tx, "advanced_assessment", "assessment", false, true)

	svc, recordRepo, userRepo := newTierService(t, tx)

	result, err := svc.AssignTier(ctx, user.ID, types.RoleIT, types.TierBasic)
	if err != nil {
		t.Fatalf("AssignTier: %v", err)
	}
	if !result.Success {
		t.Fatalf("AssignTier result not successful: %+v", result)
	}
	if result.Assigned != 2 {
		t.Fatalf("Assigned=%d, want 2 (basic metrics only)", result.Assigned)
	}

	records, err := recordRepo.GetApplicableByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("GetApplicableByUserID: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d applicable records, want 2", len(records))
	}
	for _, rec := range records {
		if rec.Status != types.RecordStatusPending {
			t.Fatalf("new record status=%q, want pending", rec.Status)
		}
	}

	users, err := userRepo.GetByIDs(ctx, tx, []uuid.UUID{user.ID})
	if err != nil || len(users) == 0 {
		t.Fatalf("reload user: %v", err)
	}
	if users[0].ComplianceTier != types.TierBasic {
		t.Fatalf("tier=%q, want basic", users[0].ComplianceTier)
	}
}

func TestAssignTierIdempotent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "idempotent@example.com", types.RoleIT)
	testutil.SeedMetric(t, ctx, tx, "cpr_cert", "training", true, true)

	svc, _, _ := newTierService(t, tx)

	if _, err := svc.AssignTier(ctx, user.ID, types.RoleIT, types.TierBasic); err != nil {
		t.Fatalf("first AssignTier: %v", err)
	}
	result, err := svc.AssignTier(ctx, user.ID, types.RoleIT, types.TierBasic)
	if err != nil {
		t.Fatalf("second AssignTier: %v", err)
	}
	if result.Assigned != 0 || result.Retired != 0 {
		t.Fatalf("repeat assignment touched records: %+v", result)
	}
}

func TestSwitchTierPreservesSharedProgress(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "switch@example.com", types.RoleIT)
	shared := testutil.SeedMetric(t, ctx, tx, "shared_cert", "training", true, true)
	basicOnly := testutil.SeedMetric(t, ctx, tx, "basic_only_doc", "docs", true, false)
	robustOnly := testutil.SeedMetric(t, ctx, tx, "robust_only_eval", "assessment", false, true)

	svc, recordRepo, _ := newTierService(t, tx)

	if _, err := svc.AssignTier(ctx, user.ID, types.RoleIT, types.TierBasic); err != nil {
		t.Fatalf("AssignTier: %v", err)
	}

	// Complete the shared requirement before switching.
	records, err := recordRepo.GetApplicableByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	for _, rec := range records {
		if rec.MetricID == shared.ID {
			if err := recordRepo.UpdateProgress(ctx, tx, rec.ID, types.RecordStatusCompliant, 1); err != nil {
				t.Fatalf("UpdateProgress: %v", err)
			}
		}
	}

	result, err := svc.SwitchTier(ctx, user.ID, types.TierRobust)
	if err != nil {
		t.Fatalf("SwitchTier: %v", err)
	}
	if result.Retired != 1 {
		t.Fatalf("Retired=%d, want 1 (basic-only metric)", result.Retired)
	}
	if result.Assigned != 1 {
		t.Fatalf("Assigned=%d, want 1 (robust-only metric)", result.Assigned)
	}

	all, err := recordRepo.GetByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("load all records: %v", err)
	}
	byMetric := map[uuid.UUID]*types.UserComplianceRecord{}
	for _, rec := range all {
		byMetric[rec.MetricID] = rec
	}
	if got := byMetric[shared.ID]; got == nil || got.Status != types.RecordStatusCompliant {
		t.Fatalf("shared requirement lost its compliant status: %+v", got)
	}
	if got := byMetric[basicOnly.ID]; got == nil || got.Status != types.RecordStatusNotApplicable {
		t.Fatalf("basic-only requirement not retired: %+v", got)
	}
	if got := byMetric[robustOnly.ID]; got == nil || got.Status != types.RecordStatusPending {
		t.Fatalf("robust-only requirement not created pending: %+v", got)
	}
}

func TestSwitchTierBackRevivesRetired(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "revive@example.com", types.RoleIT)
	basicOnly := testutil.SeedMetric(t, ctx, tx, "revive_doc", "docs", true, false)

	svc, recordRepo, _ := newTierService(t, tx)

	if _, err := svc.AssignTier(ctx, user.ID, types.RoleIT, types.TierBasic); err != nil {
		t.Fatalf("AssignTier basic: %v", err)
	}
	if _, err := svc.SwitchTier(ctx, user.ID, types.TierRobust); err != nil {
		t.Fatalf("SwitchTier robust: %v", err)
	}
	if _, err := svc.SwitchTier(ctx, user.ID, types.TierBasic); err != nil {
		t.Fatalf("SwitchTier back to basic: %v", err)
	}

	all, err := recordRepo.GetByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	count := 0
	for _, rec := range all {
		if rec.MetricID == basicOnly.ID {
			count++
			if rec.Status != types.RecordStatusPending {
				t.Fatalf("revived record status=%q, want pending", rec.Status)
			}
		}
	}
	if count != 1 {
		t.Fatalf("found %d rows for metric, want exactly 1 (revived, not duplicated)", count)
	}
}

func TestSwitchTierWithoutRole(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "noroles@example.com", "")
	svc, _, _ := newTierService(t, tx)

	if _, err := svc.SwitchTier(ctx, user.ID, types.TierBasic); !apperrors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("SwitchTier without role err=%v, want ErrInvalidState", err)
	}
}

func TestGetTierInfo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "tierinfo@example.com", types.RoleIP)
	testutil.SeedMetric(t, ctx, tx, "info_doc", "docs", true, true)
	svc, _, _ := newTierService(t, tx)

	// No tier yet.
	info, err := svc.GetTierInfo(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetTierInfo: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil info before assignment, got %+v", info)
	}

	if _, err := svc.AssignTier(ctx, user.ID, types.RoleIP, types.TierRobust); err != nil {
		t.Fatalf("AssignTier: %v", err)
	}
	info, err = svc.GetTierInfo(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetTierInfo after assign: %v", err)
	}
	if info == nil || info.TemplateName != "IP_ROBUST" {
		t.Fatalf("info=%+v, want template IP_ROBUST", info)
	}
	if info.TotalRequirements != 1 || info.CompletedRequirements != 0 {
		t.Fatalf("counts=%d/%d, want 0/1 complete", info.CompletedRequirements, info.TotalRequirements)
	}
}

func TestTierEventsCarryCreatedRecordsAndCompletion(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "tierevents@example.com", types.RoleIT)
	shared := testutil.SeedMetric(t, ctx, tx, "events_shared_cert", "training", true, true)
	testutil.SeedMetric(t, ctx, tx, "events_basic_doc", "docs", true, false)

	recorder := &recordingNotifier{}
	svc, recordRepo, _ := newTierServiceWithNotifier(t, tx, recorder)

	if _, err := svc.AssignTier(ctx, user.ID, types.RoleIT, types.TierBasic); err != nil {
		t.Fatalf("AssignTier: %v", err)
	}
	if len(recorder.assignedBatches) != 1 || len(recorder.assignedBatches[0]) != 2 {
		t.Fatalf("assigned batches=%+v, want one batch of 2 created records", recorder.assignedBatches)
	}
	if len(recorder.tierInfos) != 1 {
		t.Fatalf("tier events=%d, want 1", len(recorder.tierInfos))
	}

	records, err := recordRepo.GetApplicableByUserID(ctx, tx, user.ID)
	if err != nil {
		t.Fatalf("load records: %v", err)
	}
	for _, rec := range records {
		if rec.MetricID == shared.ID {
			if err := recordRepo.UpdateProgress(ctx, tx, rec.ID, types.RecordStatusCompliant, 1); err != nil {
				t.Fatalf("UpdateProgress: %v", err)
			}
		}
	}

	if _, err := svc.SwitchTier(ctx, user.ID, types.TierRobust); err != nil {
		t.Fatalf("SwitchTier: %v", err)
	}
	// The robust set is just the shared metric, already compliant: nothing new
	// was created and the emitted info reflects the preserved completion.
	if len(recorder.assignedBatches) != 1 {
		t.Fatalf("assigned batches=%d after switch, want still 1 (no new records)", len(recorder.assignedBatches))
	}
	if len(recorder.tierInfos) != 2 {
		t.Fatalf("tier events=%d, want 2", len(recorder.tierInfos))
	}
	info := recorder.tierInfos[1]
	if info.TotalRequirements != 1 || info.CompletedRequirements != 1 {
		t.Fatalf("emitted counts=%d/%d, want 1/1", info.CompletedRequirements, info.TotalRequirements)
	}
}

func TestAssignTierValidation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	user := testutil.SeedUser(t, ctx, tx, "validation@example.com", types.RoleIT)
	svc, _, _ := newTierService(t, tx)

	if _, err := svc.AssignTier(ctx, user.ID, "XX", types.TierBasic); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("unknown role err=%v, want ErrValidation", err)
	}
	if _, err := svc.AssignTier(ctx, user.ID, types.RoleIT, "gold"); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("unknown tier err=%v, want ErrValidation", err)
	}
}
