package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/http/response"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/requestdata"
	"github.com/BlindPI/arccm-backend/internal/services"
)

type ProgressionHandler struct {
	log *logger.Logger
	svc services.ProgressionService
}

func NewProgressionHandler(log *logger.Logger, svc services.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{log: log.With("handler", "ProgressionHandler"), svc: svc}
}

func (h *ProgressionHandler) ListTriggers(c *gin.Context) {
	triggers, err := h.svc.ListTriggers(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"triggers": triggers})
}

func (h *ProgressionHandler) CreateTrigger(c *gin.Context) {
	var input services.CreateTriggerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	trigger, err := h.svc.CreateTrigger(c.Request.Context(), &input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, trigger)
}

func (h *ProgressionHandler) UpdateTrigger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid trigger id"))
		return
	}
	var input services.UpdateTriggerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	if err := h.svc.UpdateTrigger(c.Request.Context(), id, &input); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"status": "updated"})
}

func (h *ProgressionHandler) DeleteTrigger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid trigger id"))
		return
	}
	if err := h.svc.DeleteTrigger(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"status": "deleted"})
}

// GetReport returns the calling user's readiness against every outbound path.
func (h *ProgressionHandler) GetReport(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	report, err := h.svc.GetReport(c.Request.Context(), rd.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, report)
}

func (h *ProgressionHandler) RequestProgression(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req struct {
		ToRole string `json:"to_role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	request, err := h.svc.TriggerProgression(c.Request.Context(), rd.UserID, req.ToRole)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, request)
}

func (h *ProgressionHandler) ListMyRequests(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	requests, err := h.svc.ListUserRequests(c.Request.Context(), rd.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"requests": requests})
}

func (h *ProgressionHandler) ListPending(c *gin.Context) {
	requests, err := h.svc.ListPendingRequests(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"requests": requests})
}

func (h *ProgressionHandler) Review(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid request id"))
		return
	}
	var req struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	reviewed, err := h.svc.ReviewRequest(c.Request.Context(), requestID, rd.UserID, req.Approve, req.Reason)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, reviewed)
}
