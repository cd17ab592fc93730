package handlers

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/requestdata"
	"github.com/ArtisanClarinets/eccb-backend/internal/services"
)

// 50 MiB upload cap.
const maxUploadBytes = 50 << 20

type UploadHandler struct {
	log           *logger.Logger
	intakeService services.UploadIntakeService
}

func NewUploadHandler(log *logger.Logger, intakeService services.UploadIntakeService) *UploadHandler {
	return &UploadHandler{
		log:           log.With("handler", "UploadHandler"),
		intakeService: intakeService,
	}
}

// POST /api/uploads (multipart, field "file")
func (h *UploadHandler) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, apperr.Validation("file", "multipart field 'file' is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		RespondError(c, apperr.Validation("file", "file exceeds the 50 MiB limit"))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, apperr.Validation("file", "could not open uploaded file"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, apperr.Validation("file", "could not read uploaded file"))
		return
	}
	rd := requestdata.GetRequestData(c.Request.Context())

	result, err := h.intakeService.Intake(c.Request.Context(), rd.UserID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		h.log.Warn("Upload intake failed", "file", fileHeader.Filename, "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}
