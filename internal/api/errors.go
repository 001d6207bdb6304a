package api

import (
	"errors"

	"github.com/shopcore/ecommerce-api/internal/services"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// sendServiceError maps the service error taxonomy to a status and a short message.
// Unrecognized errors never leak their text.
func (s *Server) sendServiceError(ctx *fasthttp.RequestCtx, err error) {
	var (
		validation *services.ValidationError
		duplicate  *services.DuplicateCredentialError
	)

	switch {
	case errors.As(err, &validation):
		s.sendErrorFields(ctx, fasthttp.StatusBadRequest, "Validation failed", validation.Fields)
	case errors.As(err, &duplicate):
		s.sendErrorResponse(ctx, fasthttp.StatusBadRequest, duplicate.Error())
	case errors.Is(err, services.ErrValidation):
		s.sendErrorResponse(ctx, fasthttp.StatusBadRequest, "Validation failed")
	case errors.Is(err, services.ErrDuplicateCredential):
		s.sendErrorResponse(ctx, fasthttp.StatusBadRequest, "Credential already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		s.sendErrorResponse(ctx, fasthttp.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrUnauthenticated):
		s.sendErrorResponse(ctx, fasthttp.StatusUnauthorized, "Authentication required")
	case errors.Is(err, services.ErrForbidden):
		s.sendErrorResponse(ctx, fasthttp.StatusForbidden, "You can only manage your own account")
	case errors.Is(err, services.ErrNotFound):
		s.sendErrorResponse(ctx, fasthttp.StatusNotFound, "User not found")
	default:
		s.logger.Error("Request failed", zap.String("path", string(ctx.Path())), zap.Error(err))
		s.sendErrorResponse(ctx, fasthttp.StatusInternalServerError, "Internal server error")
	}
}
