package contracts

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"contract-backend/internal/shared/server/middleware"
	"contract-backend/internal/shared/server/respond"
)

// multipart framing allowance on top of the document ceiling
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the orchestrator.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches contract and dashboard routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/contracts/upload", h.upload)
	rg.GET("/contracts", h.list)
	rg.GET("/contracts/:id", h.get)
	rg.POST("/contracts/:id/reanalyze", h.reanalyze)
	rg.DELETE("/contracts/:id", h.delete)
	rg.GET("/dashboard/stats", h.stats)
}

func (h *Handler) upload(c *gin.Context) {
	owner := Owner{
		ID:    middleware.UserIDFromContext(c),
		Email: middleware.UserEmailFromContext(c),
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes+multipartOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds 10MB limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "No file uploaded", nil)
		return
	}
	if fileHeader.Size > MaxUploadBytes {
		respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds 10MB limit", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	up, err := Validate(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), content)
	if err != nil {
		switch {
		case errors.Is(err, ErrPayloadTooLarge):
			respond.Error(c, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error(), nil)
		case errors.Is(err, ErrUnsupportedMediaType):
			respond.Error(c, http.StatusBadRequest, "unsupported_media_type", "Invalid file type. Only PDF and image files are allowed.", gin.H{"allowed": AllowedContentTypes})
		default:
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		}
		return
	}

	id, err := h.Svc.AnalyzeNew(c.Request.Context(), owner, up)
	if id != "" {
		c.Set(middleware.ContractIDKey, id)
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to analyze contract", nil)
		return
	}

	respond.Created(c, gin.H{"contractId": id})
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	items, err := h.Svc.List(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to fetch contracts", nil)
		return
	}
	respond.OK(c, gin.H{"items": toResponses(items)})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ContractIDKey, id)

	contract, err := h.Svc.Get(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "Contract not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to fetch contract", nil)
		return
	}
	respond.OK(c, toResponse(contract))
}

func (h *Handler) reanalyze(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ContractIDKey, id)

	ok, err := h.Svc.Reanalyze(c.Request.Context(), id, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "Contract not found", nil)
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to re-analyze contract", nil)
	case !ok:
		c.Set(middleware.StatusTransitionKey, "analyzing->failed")
		respond.Error(c, http.StatusInternalServerError, "analysis_failed", "Failed to re-analyze contract", nil)
	default:
		c.Set(middleware.StatusTransitionKey, "analyzing->analyzed")
		respond.OK(c, gin.H{"message": "Contract re-analyzed successfully"})
	}
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")
	c.Set(middleware.ContractIDKey, id)

	deleted, err := h.Svc.Delete(c.Request.Context(), id, userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to delete contract", nil)
		return
	}
	if !deleted {
		respond.Error(c, http.StatusNotFound, "not_found", "Contract not found", nil)
		return
	}
	respond.OK(c, gin.H{"message": "Contract deleted successfully"})
}

func (h *Handler) stats(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	st, err := h.Svc.Stats(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "storage_error", "Failed to fetch dashboard stats", nil)
		return
	}
	respond.OK(c, st)
}
