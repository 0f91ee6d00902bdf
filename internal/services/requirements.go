package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/types"
)

// TemplateName derives the requirement template identifier for a role+tier
// combination, e.g. "IP_ROBUST".
func TemplateName(role, tier string) string {
	return strings.ToUpper(role) + "_" + strings.ToUpper(tier)
}

// ResolveRequirementSet filters metrics down to those in force for the given
// role and tier.
func ResolveRequirementSet(role, tier string, metrics []*types.ComplianceMetric) []*types.ComplianceMetric {
	out := make([]*types.ComplianceMetric, 0, len(metrics))
	for _, m := range metrics {
		if m == nil {
			continue
		}
		if m.RequiredForTier(tier) && m.AppliesToRole(role) {
			out = append(out, m)
		}
	}
	return out
}

type RequirementDiff struct {
	Retire []uuid.UUID // unique to the "from" set
	Add    []uuid.UUID // unique to the "to" set
	Keep   []uuid.UUID // present in both; progress is preserved
}

// DiffRequirementSets computes the symmetric difference between two
// requirement sets. Requirements in both sets are kept untouched so that a
// role or tier change never loses in-progress evidence for a requirement that
// continues to apply.
func DiffRequirementSets(from, to []uuid.UUID) RequirementDiff {
	fromSet := make(map[uuid.UUID]bool, len(from))
	for _, id := range from {
		fromSet[id] = true
	}
	toSet := make(map[uuid.UUID]bool, len(to))
	for _, id := range to {
		toSet[id] = true
	}

	var diff RequirementDiff
	for _, id := range from {
		if !toSet[id] {
			diff.Retire = append(diff.Retire, id)
		}
	}
	for _, id := range to {
		if fromSet[id] {
			diff.Keep = append(diff.Keep, id)
		} else {
			diff.Add = append(diff.Add, id)
		}
	}
	return diff
}

func metricIDs(metrics []*types.ComplianceMetric) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(metrics))
	for _, m := range metrics {
		ids = append(ids, m.ID)
	}
	return ids
}
