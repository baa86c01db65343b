package provider

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/service/provider"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

type Handler struct {
	service *provider.Service
}

func NewHandler(service *provider.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:id", h.GetProvider)
}

func (h *Handler) GetProvider(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid provider ID", err))
		return
	}

	p, err := h.service.GetProvider(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": p})
}
