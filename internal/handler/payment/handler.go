package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wakilipro/booking-api/internal/model"
	"github.com/wakilipro/booking-api/internal/service/booking"
	apperrors "github.com/wakilipro/booking-api/pkg/errors"
	"github.com/wakilipro/booking-api/pkg/security"
)

// Handler ingests payment-gateway callbacks. The gateway retries on
// non-2xx, so the endpoint answers 200 for every outcome the gateway cannot
// fix by retrying.
type Handler struct {
	service  *booking.Service
	verifier security.SecretVerifier
}

// NewHandler builds the callback handler. verifier may be nil when no
// webhook credential is configured.
func NewHandler(service *booking.Service, verifier security.SecretVerifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments/callback", h.PaymentCallback)
}

func (h *Handler) PaymentCallback(c *gin.Context) {
	if h.verifier != nil {
		// Auth failures return 401 so the gateway keeps retrying until the
		// credential is fixed, rather than silently dropping payments.
		if err := h.verifier.Verify(c.GetHeader("X-Webhook-Token")); err != nil {
			c.Error(apperrors.Unauthorized(err))
			return
		}
	}

	var callback model.PaymentCallback
	if err := c.ShouldBindJSON(&callback); err != nil {
		c.Error(apperrors.Validation(err.Error(), err))
		return
	}

	if err := h.service.ConfirmPayment(c.Request.Context(), &callback); err != nil {
		// Validation and conflict outcomes are final; retrying the
		// callback cannot change them.
		if apperrors.IsValidation(err) || apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"status": "rejected", "message": err.Error()})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
