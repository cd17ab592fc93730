package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/requestdata"
	"github.com/ArtisanClarinets/eccb-backend/internal/services"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

type ReviewHandler struct {
	log           *logger.Logger
	reviewService services.ReviewService
}

func NewReviewHandler(log *logger.Logger, reviewService services.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		log:           log.With("handler", "ReviewHandler"),
		reviewService: reviewService,
	}
}

// GET /api/review?status=
func (h *ReviewHandler) List(c *gin.Context) {
	status := types.SessionStatus(c.Query("status"))
	sessions, stats, err := h.reviewService.List(c.Request.Context(), status)
	if err != nil {
		h.log.Error("List sessions failed", "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions, "stats": stats})
}

// POST /api/review/:id/approve
func (h *ReviewHandler) Approve(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("id", "invalid session id"))
		return
	}
	var overrides services.CommitOverrides
	if err := c.ShouldBindJSON(&overrides); err != nil {
		RespondError(c, apperr.Validation("body", "invalid request body"))
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())

	result, err := h.reviewService.Approve(c.Request.Context(), sessionID, overrides, rd.UserID)
	if err != nil {
		h.log.Warn("Approve failed", "session_id", sessionID, "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

// POST /api/review/:id/reject
func (h *ReviewHandler) Reject(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("id", "invalid session id"))
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			RespondError(c, apperr.Validation("body", "invalid request body"))
			return
		}
	}
	rd := requestdata.GetRequestData(c.Request.Context())

	if err := h.reviewService.Reject(c.Request.Context(), sessionID, body.Reason, rd.UserID); err != nil {
		h.log.Warn("Reject failed", "session_id", sessionID, "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"session_id": sessionID, "status": types.SessionStatusRejected})
}

// POST /api/review/bulk-approve
func (h *ReviewHandler) BulkApprove(c *gin.Context) {
	var body struct {
		SessionIDs []uuid.UUID `json:"session_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperr.Validation("body", "invalid request body"))
		return
	}
	if len(body.SessionIDs) == 0 {
		RespondError(c, apperr.Validation("session_ids", "session_ids is required"))
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())

	outcomes := h.reviewService.BulkApprove(c.Request.Context(), body.SessionIDs, rd.UserID)
	RespondOK(c, gin.H{"outcomes": outcomes})
}

// POST /api/second-pass
func (h *ReviewHandler) SecondPass(c *gin.Context) {
	var body struct {
		SessionID uuid.UUID `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SessionID == uuid.Nil {
		RespondError(c, apperr.Validation("session_id", "session_id is required"))
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())

	session, err := h.reviewService.TriggerSecondPass(c.Request.Context(), body.SessionID, rd.UserID)
	if err != nil {
		h.log.Warn("Second pass failed", "session_id", body.SessionID, "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, session)
}

// GET /api/review/:id/preview?page=
func (h *ReviewHandler) Preview(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("id", "invalid session id"))
		return
	}
	page, opts, err := previewParams(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	image, err := h.reviewService.PreviewPage(c.Request.Context(), sessionID, page, opts)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"page": page, "image": image})
}

// GET /api/review/:id/part-preview?partStorageKey=&page=
func (h *ReviewHandler) PartPreview(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, apperr.Validation("id", "invalid session id"))
		return
	}
	key := c.Query("partStorageKey")
	if key == "" {
		RespondError(c, apperr.Validation("partStorageKey", "partStorageKey is required"))
		return
	}
	page, opts, err := previewParams(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	image, err := h.reviewService.PreviewPartPage(c.Request.Context(), sessionID, key, page, opts)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"page": page, "image": image})
}

func previewParams(c *gin.Context) (int, services.RenderOptions, error) {
	page := 0
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, services.RenderOptions{}, apperr.Validation("page", "page must be a non-negative integer")
		}
		page = n
	}
	var opts services.RenderOptions
	if raw := c.Query("width"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			opts.Width = n
		}
	}
	if raw := c.Query("quality"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			opts.Quality = n
		}
	}
	return page, opts, nil
}
