package handler

import (
	"errors"
	"net/http"

	"tillcore/internal/apierror"
	"tillcore/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeDomainError maps the session error taxonomy onto HTTP responses.
// Version conflicts carry the current version so the caller can re-fetch
// and decide whether to retry — retry is never automatic here.
func writeDomainError(c *gin.Context, err error) {
	var vc *model.VersionConflict
	if errors.As(err, &vc) {
		c.JSON(http.StatusConflict, apierror.Conflict(err.Error(), vc.CurrentVersion))
		return
	}

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_input", err.Error()))
	case errors.Is(err, model.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, apierror.WithCode("invalid_action", err.Error()))
	case errors.Is(err, model.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, apierror.WithCode("not_found", err.Error()))
	case errors.Is(err, model.ErrRegisterAlreadyOpen):
		c.JSON(http.StatusConflict, apierror.WithCode("already_open", err.Error()))
	case errors.Is(err, model.ErrSessionNotOpen):
		c.JSON(http.StatusConflict, apierror.WithCode("not_open", err.Error()))
	case errors.Is(err, model.ErrInvalidState):
		c.JSON(http.StatusConflict, apierror.WithCode("invalid_state", err.Error()))
	case errors.Is(err, model.ErrVersionConflict):
		c.JSON(http.StatusConflict, apierror.WithCode("version_conflict", err.Error()))
	default:
		// Infrastructure failure — logged by the ErrorHandler middleware.
		_ = c.Error(err)
	}
}
