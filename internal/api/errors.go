package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/generation"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// statusFor maps an error to an HTTP status by its most specific marker.
func statusFor(err error) int {
	switch {
	case errors.Is(err, director.ErrSuperseded), errors.Is(err, services.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrLoginRequired):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccessDenied), errors.Is(err, services.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNoDestination):
		return http.StatusPreconditionFailed
	case errors.Is(err, services.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrContentFiltered):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	resp := ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
	if errors.Is(err, director.ErrSuperseded) {
		resp.Kind = "superseded"
	}
	if errors.Is(err, services.ErrProvider) {
		resp.Hint = generation.ProviderMessage(err)
	}
	c.AbortWithStatusJSON(statusFor(err), resp)
}

func badRequest(c *gin.Context, msg string, err error) {
	writeError(c, services.Wrap(services.ErrValidation, "api", c.FullPath(), msg, err))
}
