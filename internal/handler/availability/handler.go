package availability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/middleware"
	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/service/availability"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

const defaultSlotMinutes = 60

type Handler struct {
	service *availability.Service
}

func NewHandler(service *availability.Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes exposes the read-only slot computation. Clients
// browse availability before they authenticate.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:id/availability", h.GetAvailability)
}

// RegisterProviderRoutes exposes the provider-side schedule management.
func (h *Handler) RegisterProviderRoutes(r *gin.RouterGroup) {
	schedule := r.Group("/schedule")
	{
		schedule.PUT("/working-hours", h.SetWorkingHours)
		schedule.GET("/working-hours", h.GetWorkingHours)
		schedule.POST("/blocks", h.BlockSlot)
		schedule.DELETE("/blocks/:id", h.UnblockSlot)
	}
}

func (h *Handler) GetAvailability(c *gin.Context) {
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid provider ID", err))
		return
	}

	duration := time.Duration(defaultSlotMinutes) * time.Minute
	if v := c.Query("slot_minutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			c.Error(apperrors.Validation("invalid slot_minutes", err))
			return
		}
		duration = time.Duration(minutes) * time.Minute
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		c.Error(apperrors.Validation("date must be YYYY-MM-DD", err))
		return
	}

	if endStr := c.Query("end_date"); endStr != "" {
		endDate, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			c.Error(apperrors.Validation("end_date must be YYYY-MM-DD", err))
			return
		}
		days, err := h.service.ComputeAvailableSlotsForRange(c.Request.Context(), providerID, date, endDate, duration)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": days})
		return
	}

	slots, err := h.service.ComputeAvailableSlots(c.Request.Context(), providerID, date, duration)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": slots})
}

func (h *Handler) SetWorkingHours(c *gin.Context) {
	providerID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	var req model.SetWorkingHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	if err := h.service.SetWorkingHours(c.Request.Context(), providerID, &req); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) GetWorkingHours(c *gin.Context) {
	providerID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	hours, err := h.service.GetWorkingHours(c.Request.Context(), providerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": hours})
}

func (h *Handler) BlockSlot(c *gin.Context) {
	providerID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	var req model.BlockSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	blocked, err := h.service.BlockSlot(c.Request.Context(), providerID, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": blocked})
}

func (h *Handler) UnblockSlot(c *gin.Context) {
	providerID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	slotID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid slot ID", err))
		return
	}

	if err := h.service.UnblockSlot(c.Request.Context(), providerID, slotID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
