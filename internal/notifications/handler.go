package notifications

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-backend/internal/shared/server/respond"
)

// Handler exposes the manual sweep trigger.
type Handler struct {
	Dispatcher *Dispatcher
}

// NewHandler constructs a Handler.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{Dispatcher: d}
}

// RegisterRoutes attaches the operator routes. Callers guard the group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process-notifications", h.process)
}

func (h *Handler) process(c *gin.Context) {
	result, err := h.Dispatcher.Sweep(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to process notifications", nil)
		return
	}
	respond.OK(c, gin.H{
		"message": "Notifications processed",
		"due":     result.Due,
		"sent":    result.Sent,
		"failed":  result.Failed,
	})
}
