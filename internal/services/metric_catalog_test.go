package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	apperrors "github.com/BlindPI/arccm-backend/internal/pkg/errors"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/repos/testutil"
	"github.com/BlindPI/arccm-backend/internal/types"
)

func newCatalogService(t *testing.T, tx *gorm.DB) MetricCatalogService {
	t.Helper()
	log := testutil.Logger(t)
	metricRepo := repos.NewComplianceMetricRepo(tx, log)
	recordRepo := repos.NewUserComplianceRecordRepo(tx, log)
	return NewMetricCatalogService(tx, log, metricRepo, recordRepo, nil)
}

func TestCatalogListFiltersByTier(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()

	testutil.SeedMetric(t, ctx, tx, "basic_only", "training", true, false)
	testutil.SeedMetric(t, ctx, tx, "robust_only", "training", false, true)
	testutil.SeedMetric(t, ctx, tx, "both_tiers", "training", true, true)

	svc := newCatalogService(t, tx)

	all, err := svc.List(ctx, "")
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("unfiltered list=%d metrics, want 3", len(all))
	}

	robust, err := svc.List(ctx, types.TierRobust)
	if err != nil {
		t.Fatalf("List robust: %v", err)
	}
	if len(robust) != 2 {
		t.Fatalf("robust list=%d metrics, want 2", len(robust))
	}
	for _, m := range robust {
		if !m.RequiredForRobust {
			t.Fatalf("metric %q is not required for robust", m.Name)
		}
	}

	if _, err := svc.List(ctx, "gold"); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("List with unknown tier: err=%v, want validation error", err)
	}
}
