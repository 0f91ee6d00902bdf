package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BlindPI/arccm-backend/internal/http/response"
	"github.com/BlindPI/arccm-backend/internal/platform/logger"
	"github.com/BlindPI/arccm-backend/internal/services"
)

type MetricHandler struct {
	log     *logger.Logger
	catalog services.MetricCatalogService
}

func NewMetricHandler(log *logger.Logger, catalog services.MetricCatalogService) *MetricHandler {
	return &MetricHandler{log: log.With("handler", "MetricHandler"), catalog: catalog}
}

func (h *MetricHandler) List(c *gin.Context) {
	metrics, err := h.catalog.List(c.Request.Context(), c.Query("tier"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"metrics": metrics})
}

func (h *MetricHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid metric id"))
		return
	}
	metric, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, metric)
}

func (h *MetricHandler) Create(c *gin.Context) {
	var input services.CreateMetricInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	metric, err := h.catalog.Create(c.Request.Context(), &input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, metric)
}

func (h *MetricHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid metric id"))
		return
	}
	var input services.UpdateMetricInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid payload: %w", err))
		return
	}
	metric, err := h.catalog.Update(c.Request.Context(), id, &input)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, metric)
}

func (h *MetricHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid metric id"))
		return
	}
	force := c.Query("force") == "true"
	if force {
		err = h.catalog.ForceDelete(c.Request.Context(), id)
	} else {
		err = h.catalog.Delete(c.Request.Context(), id)
	}
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, gin.H{"status": "deleted"})
}
