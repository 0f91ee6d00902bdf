package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/types"
)

// RequirementMigrator moves a user's compliance records between role-keyed
// requirement templates. Requirements shared by both templates keep their
// status and evidence; only the symmetric difference is touched.
type RequirementMigrator interface {
	// MigrateUserRequirements runs inside the caller's transaction when tx is
	// non-nil, so a role change and its record migration commit together.
	MigrateUserRequirements(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fromRole, toRole, fromTier, toTier string) (*MigrationResult, error)
}

type MigrationResult struct {
	FromTemplate string `json:"from_template"`
	ToTemplate   string `json:"to_template"`
	Retired      int    `json:"retired"`
	Added        int    `json:"added"`
	Preserved    int    `json:"preserved"`
	// RetiredMetricIDs feeds the realtime retirement event for the user.
	RetiredMetricIDs []uuid.UUID `json:"retired_metric_ids"`
}

type requirementMigrator struct {
	db         *gorm.DB
	log        *logger.Logger
	metricRepo repos.ComplianceMetricRepo
	recordRepo repos.UserComplianceRecordRepo
}

func NewRequirementMigrator(
	db *gorm.DB,
	baseLog *logger.Logger,
	metricRepo repos.ComplianceMetricRepo,
	recordRepo repos.UserComplianceRecordRepo,
) RequirementMigrator {
	return &requirementMigrator{
		db:         db,
		log:        baseLog.With("service", "RequirementMigrator"),
		metricRepo: metricRepo,
		recordRepo: recordRepo,
	}
}

func (m *requirementMigrator) MigrateUserRequirements(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fromRole, toRole, fromTier, toTier string) (*MigrationResult, error) {
	metrics, err := m.metricRepo.ListOrdered(ctx, tx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	fromSet := ResolveRequirementSet(fromRole, fromTier, metrics)
	toSet := ResolveRequirementSet(toRole, toTier, metrics)
	diff := DiffRequirementSets(metricIDs(fromSet), metricIDs(toSet))

	result := &MigrationResult{
		FromTemplate:     TemplateName(fromRole, fromTier),
		ToTemplate:       TemplateName(toRole, toTier),
		Preserved:        len(diff.Keep),
		RetiredMetricIDs: diff.Retire,
	}

	run := func(tx *gorm.DB) error {
		existing, err := m.recordRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		recordByMetric := make(map[uuid.UUID]*types.UserComplianceRecord, len(existing))
		for _, rec := range existing {
			recordByMetric[rec.MetricID] = rec
		}

		var retire []uuid.UUID
		for _, metricID := range diff.Retire {
			if rec, ok := recordByMetric[metricID]; ok && rec.Applicable() {
				retire = append(retire, rec.ID)
			}
		}
		if err := m.recordRepo.SetStatusByIDs(ctx, tx, retire, types.RecordStatusNotApplicable); err != nil {
			return err
		}
		result.Retired = len(retire)

		var revive []uuid.UUID
		var create []*types.UserComplianceRecord
		metricByID := make(map[uuid.UUID]*types.ComplianceMetric, len(toSet))
		for _, metric := range toSet {
			metricByID[metric.ID] = metric
		}
		for _, metricID := range diff.Add {
			if rec, ok := recordByMetric[metricID]; ok {
				if !rec.Applicable() {
					revive = append(revive, rec.ID)
				}
				continue
			}
			create = append(create, &types.UserComplianceRecord{
				UserID:        userID,
				MetricID:      metricID,
				Status:        types.RecordStatusPending,
				RequiredValue: defaultRequiredValue(metricByID[metricID]),
			})
		}
		if err := m.recordRepo.ResetToPendingByIDs(ctx, tx, revive); err != nil {
			return err
		}
		if _, err := m.recordRepo.Create(ctx, tx, create); err != nil {
			return err
		}
		result.Added = len(revive) + len(create)
		return nil
	}

	if tx != nil {
		err = run(tx)
	} else {
		err = m.db.Transaction(run)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}

	m.log.Info("requirements migrated",
		"user_id", userID,
		"from", result.FromTemplate, "to", result.ToTemplate,
		"retired", result.Retired, "added", result.Added, "preserved", result.Preserved)
	return result, nil
}
