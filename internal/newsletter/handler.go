package newsletter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the public newsletter routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/newsletter/subscribe", h.subscribe)
	rg.POST("/newsletter/unsubscribe", h.unsubscribe)
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) subscribe(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid email address", nil)
		return
	}
	if _, err := h.Svc.Subscribe(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, ErrInvalidEmail) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid email address", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to subscribe to newsletter", nil)
		return
	}
	respond.OK(c, gin.H{"message": "Successfully subscribed to newsletter"})
}

func (h *Handler) unsubscribe(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Invalid email address", nil)
		return
	}
	ok, err := h.Svc.Unsubscribe(c.Request.Context(), req.Email)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to unsubscribe from newsletter", nil)
		return
	}
	if !ok {
		respond.Error(c, http.StatusNotFound, "not_found", "Email not found", nil)
		return
	}
	respond.OK(c, gin.H{"message": "Successfully unsubscribed from newsletter"})
}
