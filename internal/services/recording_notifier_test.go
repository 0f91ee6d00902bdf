package services

import (
	"sync"

	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/types"
)

// recordingNotifier captures notifier calls for assertions.
type recordingNotifier struct {
	mu              sync.Mutex
	assignedBatches [][]*types.UserComplianceRecord
	statusChanges   []*types.UserComplianceRecord
	retiredBatches  [][]uuid.UUID
	tierInfos       []*TierInfo
	statsInfos      []*TierInfo
	requested       []*types.RoleTransitionRequest
	requestedAdmins [][]uuid.UUID
	reviewed        []*types.RoleTransitionRequest
}

func (r *recordingNotifier) RequirementsAssigned(userID uuid.UUID, records []*types.UserComplianceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignedBatches = append(r.assignedBatches, records)
}

func (r *recordingNotifier) RequirementStatusChanged(userID uuid.UUID, record *types.UserComplianceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusChanges = append(r.statusChanges, record)
}

func (r *recordingNotifier) RequirementsRetired(userID uuid.UUID, metricIDs []uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retiredBatches = append(r.retiredBatches, metricIDs)
}

func (r *recordingNotifier) TierChanged(userID uuid.UUID, role, tier string, info *TierInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tierInfos = append(r.tierInfos, info)
}

func (r *recordingNotifier) StatsChanged(userID uuid.UUID, info *TierInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsInfos = append(r.statsInfos, info)
}

func (r *recordingNotifier) TransitionRequested(request *types.RoleTransitionRequest, adminIDs []uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requested = append(r.requested, request)
	r.requestedAdmins = append(r.requestedAdmins, adminIDs)
}

func (r *recordingNotifier) TransitionReviewed(request *types.RoleTransitionRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviewed = append(r.reviewed, request)
}
