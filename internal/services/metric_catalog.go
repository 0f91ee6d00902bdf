package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/types"
)

// MetricCatalogService manages the admin-defined requirement catalog. A metric
// that user records reference is load-bearing: its tier flags and measurement
// type are frozen and it refuses plain deletion.
type MetricCatalogService interface {
	// List returns the catalog ordered by category then name; a non-empty tier
	// narrows it to the metrics that tier requires.
	List(ctx context.Context, tier string) ([]*types.ComplianceMetric, error)
	Get(ctx context.Context, id uuid.UUID) (*types.ComplianceMetric, error)
	Create(ctx context.Context, input *CreateMetricInput) (*types.ComplianceMetric, error)
	Update(ctx context.Context, id uuid.UUID, input *UpdateMetricInput) (*types.ComplianceMetric, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// ForceDelete retires every referencing record, then removes the metric.
	ForceDelete(ctx context.Context, id uuid.UUID) error
}

type CreateMetricInput struct {
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	MeasurementType   string   `json:"measurement_type"`
	Description       string   `json:"description"`
	RequiredForBasic  bool     `json:"required_for_basic"`
	RequiredForRobust bool     `json:"required_for_robust"`
	ApplicableRoles   []string `json:"applicable_roles"`
}

// UpdateMetricInput carries partial updates; nil fields are left untouched.
type UpdateMetricInput struct {
	Name              *string   `json:"name"`
	Category          *string   `json:"category"`
	MeasurementType   *string   `json:"measurement_type"`
	Description       *string   `json:"description"`
	RequiredForBasic  *bool     `json:"required_for_basic"`
	RequiredForRobust *bool     `json:"required_for_robust"`
	ApplicableRoles   *[]string `json:"applicable_roles"`
}

type metricCatalogService struct {
	db         *gorm.DB
	log        *logger.Logger
	metricRepo repos.ComplianceMetricRepo
	recordRepo repos.UserComplianceRecordRepo
	notifier   ComplianceNotifier
}

func NewMetricCatalogService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metricRepo repos.ComplianceMetricRepo,
	recordRepo repos.UserComplianceRecordRepo,
	notifier ComplianceNotifier,
) MetricCatalogService {
	return &metricCatalogService{
		db:         db,
		log:        baseLog.With("service", "MetricCatalogService"),
		metricRepo: metricRepo,
		recordRepo: recordRepo,
		notifier:   notifier,
	}
}

func (s *metricCatalogService) List(ctx context.Context, tier string) ([]*types.ComplianceMetric, error) {
	if tier == "" {
		return s.metricRepo.ListOrdered(ctx, nil)
	}
	if !types.ValidTier(tier) {
		return nil, apperrors.Wrap(fmt.Errorf("unknown tier %q", tier), apperrors.ErrValidation)
	}
	return s.metricRepo.ListRequiredForTier(ctx, nil, tier)
}

func (s *metricCatalogService) Get(ctx context.Context, id uuid.UUID) (*types.ComplianceMetric, error) {
	rows, err := s.metricRepo.GetByIDs(ctx, nil, []uuid.UUID{id})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if len(rows) == 0 {
		return nil, apperrors.Wrap(fmt.Errorf("metric %s not found", id), apperrors.ErrNotFound)
	}
	return rows[0], nil
}

func (s *metricCatalogService) Create(ctx context.Context, input *CreateMetricInput) (*types.ComplianceMetric, error) {
	if input == nil {
		return nil, apperrors.Wrap(fmt.Errorf("missing metric payload"), apperrors.ErrValidation)
	}
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	if name == "" || category == "" {
		return nil, apperrors.Wrap(fmt.Errorf("name and category are required"), apperrors.ErrValidation)
	}
	if !types.ValidMeasurementType(input.MeasurementType) {
		return nil, apperrors.Wrap(fmt.Errorf("unknown measurement type %q", input.MeasurementType), apperrors.ErrValidation)
	}
	for _, role := range input.ApplicableRoles {
		if !types.ValidRole(role) {
			return nil, apperrors.Wrap(fmt.Errorf("unknown role %q", role), apperrors.ErrValidation)
		}
	}

	row := &types.ComplianceMetric{
		Name:              name,
		Category:          category,
		MeasurementType:   input.MeasurementType,
		Description:       input.Description,
		RequiredForBasic:  input.RequiredForBasic,
		RequiredForRobust: input.RequiredForRobust,
		ApplicableRoles:   input.ApplicableRoles,
	}
	created, err := s.metricRepo.Create(ctx, nil, row)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	s.log.Info("metric created", "metric_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *metricCatalogService) Update(ctx context.Context, id uuid.UUID, input *UpdateMetricInput) (*types.ComplianceMetric, error) {
	if input == nil {
		return nil, apperrors.Wrap(fmt.Errorf("missing metric payload"), apperrors.ErrValidation)
	}
	metric, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	referenced, err := s.recordRepo.CountByMetricID(ctx, nil, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}

	fields := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.Wrap(fmt.Errorf("name cannot be empty"), apperrors.ErrValidation)
		}
		fields["name"] = name
	}
	if input.Category != nil {
		category := strings.TrimSpace(*input.Category)
		if category == "" {
			return nil, apperrors.Wrap(fmt.Errorf("category cannot be empty"), apperrors.ErrValidation)
		}
		fields["category"] = category
	}
	if input.Description != nil {
		fields["description"] = *input.Description
	}

	// Structural fields are frozen once any user record references the metric,
	// otherwise existing assignments would silently disagree with the catalog.
	structural := input.MeasurementType != nil || input.RequiredForBasic != nil ||
		input.RequiredForRobust != nil || input.ApplicableRoles != nil
	if structural {
		if referenced > 0 {
			return nil, apperrors.Wrap(
				fmt.Errorf("metric %s is referenced by %d user records; only name, category and description may change", id, referenced),
				apperrors.ErrConflict)
		}
		if input.MeasurementType != nil {
			if !types.ValidMeasurementType(*input.MeasurementType) {
				return nil, apperrors.Wrap(fmt.Errorf("unknown measurement type %q", *input.MeasurementType), apperrors.ErrValidation)
			}
			fields["measurement_type"] = *input.MeasurementType
		}
		if input.RequiredForBasic != nil {
			fields["required_for_basic"] = *input.RequiredForBasic
		}
		if input.RequiredForRobust != nil {
			fields["required_for_robust"] = *input.RequiredForRobust
		}
		if input.ApplicableRoles != nil {
			for _, role := range *input.ApplicableRoles {
				if !types.ValidRole(role) {
					return nil, apperrors.Wrap(fmt.Errorf("unknown role %q", role), apperrors.ErrValidation)
				}
			}
			fields["applicable_roles"] = datatypes.JSONSlice[string](*input.ApplicableRoles)
		}
	}

	if len(fields) == 0 {
		return metric, nil
	}
	if err := s.metricRepo.UpdateFields(ctx, nil, id, fields); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	return s.Get(ctx, id)
}

func (s *metricCatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	referenced, err := s.recordRepo.CountByMetricID(ctx, nil, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	if referenced > 0 {
		return apperrors.Wrap(
			fmt.Errorf("metric %s is referenced by %d user records; use force delete to retire them", id, referenced),
			apperrors.ErrConflict)
	}
	if err := s.metricRepo.DeleteByID(ctx, nil, id); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence)
	}
	s.log.Info("metric deleted", "metric_id", id)
	return nil
}

func (s *metricCatalogService) ForceDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	var retiredByUser map[uuid.UUID][]uuid.UUID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		records, err := s.recordRepo.GetByMetricID(ctx, tx, id)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(records))
		retiredByUser = make(map[uuid.UUID][]uuid.UUID)
		for _, rec := range records {
			ids = append(ids, rec.ID)
			retiredByUser[rec.UserID] = append(retiredByUser[rec.UserID], rec.MetricID)
		}
		if err := s.recordRepo.SetStatusByIDs(ctx, tx, ids, types.RecordStatusNotApplicable); err != nil {
			return err
		}
		return s.metricRepo.DeleteByID(ctx, tx, id)
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistence)
	}

	if s.notifier != nil {
		for userID, metricIDs := range retiredByUser {
			s.notifier.RequirementsRetired(userID, metricIDs)
		}
	}
	s.log.Info("metric force-deleted", "metric_id", id, "retired_users", len(retiredByUser))
	return nil
}
