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
)

type NotificationHandler struct {
	log  *logger.Logger
	repo repos.NotificationRepo
}

func NewNotificationHandler(log *logger.Logger, repo repos.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{log: log.With("handler", "NotificationHandler"), repo: repo}
}

func (h *NotificationHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	unreadOnly := c.Query("unread") == "true"
	rows, err := h.repo.ListByUserID(c.Request.Context(), nil, rd.UserID, unreadOnly)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"notifications": rows})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload"))
		return
	}
	if err := h.repo.MarkRead(c.Request.Context(), nil, rd.UserID, req.IDs); err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"status": "read"})
}
