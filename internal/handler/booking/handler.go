package booking

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wakilipro/booking-api/internal/middleware"
	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/service/booking"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/confirm-completion", h.ConfirmCompletion)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/reschedule", h.RescheduleBooking)
	}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), actorID, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": created})
}

func (h *Handler) GetBooking(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid booking ID", err))
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), id, actorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": b})
}

func (h *Handler) ListBookings(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	filters := &model.BookingFilters{}
	switch c.GetString(middleware.ContextUserRole) {
	case "provider":
		filters.ProviderID = actorID
	default:
		filters.ClientID = actorID
	}

	if status := c.Query("status"); status != "" {
		filters.Status = model.BookingStatus(status)
	}
	if date := c.Query("start_date"); date != "" {
		start, err := time.Parse(time.RFC3339, date)
		if err != nil {
			c.Error(apperrors.Validation("invalid start_date", err))
			return
		}
		filters.StartDate = start
	}
	if date := c.Query("end_date"); date != "" {
		end, err := time.Parse(time.RFC3339, date)
		if err != nil {
			c.Error(apperrors.Validation("invalid end_date", err))
			return
		}
		filters.EndDate = end
	}

	bookings, err := h.service.ListBookings(c.Request.Context(), filters)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": bookings})
}

func (h *Handler) ConfirmCompletion(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid booking ID", err))
		return
	}

	result, err := h.service.ConfirmCompletion(c.Request.Context(), id, actorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid booking ID", err))
		return
	}

	var req model.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	if err := h.service.CancelBooking(c.Request.Context(), id, actorID, req.Reason); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) RescheduleBooking(c *gin.Context) {
	actorID, ok := middleware.ActorID(c)
	if !ok {
		c.Error(apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.Validation("invalid booking ID", err))
		return
	}

	var req model.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	updated, err := h.service.RescheduleBooking(c.Request.Context(), id, actorID, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": updated})
}
