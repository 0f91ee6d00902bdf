package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/realtime"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/types"
)

// ComplianceNotifier is the fire-and-forget notify boundary. Every method is
// best-effort: failures are logged and never propagated to the caller, so a
// broken notification channel cannot fail a primary mutation.
type ComplianceNotifier interface {
	RequirementsAssigned(userID uuid.UUID, records []*types.UserComplianceRecord)
	RequirementStatusChanged(userID uuid.UUID, record *types.UserComplianceRecord)
	RequirementsRetired(userID uuid.UUID, metricIDs []uuid.UUID)
	TierChanged(userID uuid.UUID, role, tier string, info *TierInfo)
	StatsChanged(userID uuid.UUID, info *TierInfo)
	TransitionRequested(request *types.RoleTransitionRequest, adminIDs []uuid.UUID)
	TransitionReviewed(request *types.RoleTransitionRequest)
}

type complianceNotifier struct {
	log              *logger.Logger
	emit             Emitter
	notificationRepo repos.NotificationRepo
}

func NewComplianceNotifier(log *logger.Logger, emit Emitter, notificationRepo repos.NotificationRepo) ComplianceNotifier {
	return &complianceNotifier{
		log:              log.With("service", "ComplianceNotifier"),
		emit:             emit,
		notificationRepo: notificationRepo,
	}
}

func (n *complianceNotifier) RequirementsAssigned(userID uuid.UUID, records []*types.UserComplianceRecord) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.UserRequirementsChannel(userID),
		Event:   realtime.EventRequirementCreated,
		Data:    map[string]any{"records": records},
	})
}

func (n *complianceNotifier) RequirementStatusChanged(userID uuid.UUID, record *types.UserComplianceRecord) {
	if n == nil || n.emit == nil || userID == uuid.Nil || record == nil {
		return
	}
	payload := map[string]any{
		"record_id": record.ID,
		"metric_id": record.MetricID,
		"status":    record.Status,
		"progress":  record.ProgressValue,
	}
	ctx := context.Background()
	n.emit.Emit(ctx, realtime.Message{
		Channel: realtime.UserRequirementsChannel(userID),
		Event:   realtime.EventRequirementStatusChanged,
		Data:    payload,
	})
	n.emit.Emit(ctx, realtime.Message{
		Channel: realtime.RequirementChannel(record.MetricID),
		Event:   realtime.EventRequirementStatusChanged,
		Data:    payload,
	})
}

func (n *complianceNotifier) RequirementsRetired(userID uuid.UUID, metricIDs []uuid.UUID) {
	if n == nil || n.emit == nil || userID == uuid.Nil || len(metricIDs) == 0 {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.UserRequirementsChannel(userID),
		Event:   realtime.EventRequirementRetired,
		Data:    map[string]any{"metric_ids": metricIDs},
	})
}

func (n *complianceNotifier) TierChanged(userID uuid.UUID, role, tier string, info *TierInfo) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	ctx := context.Background()
	n.emit.Emit(ctx, realtime.Message{
		Channel: realtime.UserTierChannel(userID),
		Event:   realtime.EventTierChanged,
		Data: map[string]any{
			"role": role,
			"tier": tier,
			"info": info,
		},
	})
	n.persist(ctx, []*types.Notification{{
		UserID:  userID,
		Type:    types.NotificationTierChanged,
		Title:   "Compliance tier updated",
		Message: fmt.Sprintf("Your compliance tier is now %s (%s).", tier, TemplateName(role, tier)),
	}})
	n.StatsChanged(userID, info)
}

func (n *complianceNotifier) StatsChanged(userID uuid.UUID, info *TierInfo) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.Message{
		Channel: realtime.ComplianceStatsChannel(userID),
		Event:   realtime.EventComplianceStatsChanged,
		Data:    map[string]any{"info": info},
	})
}

func (n *complianceNotifier) TransitionRequested(request *types.RoleTransitionRequest, adminIDs []uuid.UUID) {
	if n == nil || n.emit == nil || request == nil {
		return
	}
	ctx := context.Background()
	n.emit.Emit(ctx, realtime.Message{
		Channel: realtime.UserTierChannel(request.UserID),
		Event:   realtime.EventTransitionRequested,
		Data:    map[string]any{"request": request},
	})

	if len(adminIDs) == 0 {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"request_id": request.ID,
		"from_role":  request.FromRole,
		"to_role":    request.ToRole,
	})
	rows := make([]*types.Notification, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		rows = append(rows, &types.Notification{
			UserID:   adminID,
			Type:     types.NotificationTransitionRequested,
			Title:    "Role progression requested",
			Message:  fmt.Sprintf("A user requested progression from %s to %s.", request.FromRole, request.ToRole),
			Metadata: datatypes.JSON(meta),
		})
	}
	n.persist(ctx, rows)
}

func (n *complianceNotifier) TransitionReviewed(request *types.RoleTransitionRequest) {
	if n == nil || n.emit == nil || request == nil {
		return
	}
	ctx := context.Background()
	n.emit.Emit(ctx, realtime.Message{
		Channel: realtime.UserTierChannel(request.UserID),
		Event:   realtime.EventTransitionReviewed,
		Data:    map[string]any{"request": request},
	})

	message := fmt.Sprintf("Your progression request to %s was approved.", request.ToRole)
	if request.Status == types.TransitionStatusRejected {
		message = fmt.Sprintf("Your progression request to %s was rejected.", request.ToRole)
		if request.RejectionReason != "" {
			message += " Reason: " + request.RejectionReason
		}
	}
	n.persist(ctx, []*types.Notification{{
		UserID:  request.UserID,
		Type:    types.NotificationTransitionReviewed,
		Title:   "Progression request reviewed",
		Message: message,
	}})
}

// persist writes notification rows in parallel batches; errors are logged,
// never returned.
func (n *complianceNotifier) persist(ctx context.Context, rows []*types.Notification) {
	if n.notificationRepo == nil || len(rows) == 0 {
		return
	}

	const batchSize = 50
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		g.Go(func() error {
			_, err := n.notificationRepo.Create(gctx, nil, batch)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		n.log.Warn("notification fan-out failed", "error", err)
	}
}
