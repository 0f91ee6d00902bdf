package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/http/response"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/repos"
	"github.com/BlindPI/arccm-backend/internal/requestdata"
	"github.com/BlindPI/arccm-backend/internal/services"
	"github.com/BlindPI/arccm-backend/internal/types"
)

type ComplianceHandler struct {
	log        *logger.Logger
	tierSvc    services.ComplianceTierService
	recordRepo repos.UserComplianceRecordRepo
	notifier   services.ComplianceNotifier
}

func NewComplianceHandler(
	log *logger.Logger,
	tierSvc services.ComplianceTierService,
	recordRepo repos.UserComplianceRecordRepo,
	notifier services.ComplianceNotifier,
) *ComplianceHandler {
	return &ComplianceHandler{
		log:        log.With("handler", "ComplianceHandler"),
		tierSvc:    tierSvc,
		recordRepo: recordRepo,
		notifier:   notifier,
	}
}

// AssignTier is admin-only: it can move any user onto any role+tier template.
func (h *ComplianceHandler) AssignTier(c *gin.Context) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Role   string    `json:"role"`
		Tier   string    `json:"tier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	result, err := h.tierSvc.AssignTier(c.Request.Context(), req.UserID, req.Role, req.Tier)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

// SwitchTier moves the calling user between basic and robust on their current
// role.
func (h *ComplianceHandler) SwitchTier(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req struct {
		Tier string `json:"tier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	result, err := h.tierSvc.SwitchTier(c.Request.Context(), rd.UserID, req.Tier)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *ComplianceHandler) GetTierInfo(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	info, err := h.tierSvc.GetTierInfo(c.Request.Context(), rd.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"tier_info": info})
}

func (h *ComplianceHandler) ListRecords(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	records, err := h.recordRepo.GetApplicableByUserID(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"records": records})
}

// UpdateRecordProgress is admin-only evidence entry for a single record.
func (h *ComplianceHandler) UpdateRecordProgress(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid record id"))
		return
	}
	var req struct {
		UserID        uuid.UUID `json:"user_id"`
		Status        string    `json:"status"`
		ProgressValue float64   `json:"progress_value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	if !types.ValidRecordStatus(req.Status) || req.Status == types.RecordStatusNotApplicable {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid status %q", req.Status))
		return
	}
	if err := h.recordRepo.UpdateProgress(c.Request.Context(), nil, recordID, req.Status, req.ProgressValue); err != nil {
		response.FromError(c, err)
		return
	}

	if h.notifier != nil && req.UserID != uuid.Nil {
		records, err := h.recordRepo.GetByUserID(c.Request.Context(), nil, req.UserID)
		if err == nil {
			for _, rec := range records {
				if rec.ID == recordID {
					h.notifier.RequirementStatusChanged(req.UserID, rec)
					break
				}
			}
		}
	}
	response.OK(c, gin.H{"status": "updated"})
}
