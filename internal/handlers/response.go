package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ArtisanClarinets/eccb-backend/internal/apperr"
)

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: payload})
}

// RespondError maps the apperr taxonomy onto HTTP statuses. Unknown
// errors are a 500 with a generic message; the detail goes to the log,
// not the client.
func RespondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, Envelope{Success: false, Error: "internal error", Code: "internal"})
		return
	}

	status := http.StatusInternalServerError
	code := "internal"
	switch appErr.Kind {
	case apperr.KindValidation:
		status, code = http.StatusBadRequest, "validation_error"
	case apperr.KindNotFound:
		status, code = http.StatusNotFound, "not_found"
	case apperr.KindState:
		status, code = http.StatusConflict, "state_error"
		if errors.Is(err, apperr.ErrAlreadyCommitted) {
			code = "already_committed"
		}
	case apperr.KindPermission:
		status, code = http.StatusForbidden, "permission_denied"
	case apperr.KindDependency:
		status, code = http.StatusBadGateway, "dependency_failure"
	}
	c.JSON(status, Envelope{Success: false, Error: appErr.Msg, Code: code, Field: appErr.Field})
}
