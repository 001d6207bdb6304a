package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopcore/ecommerce-api/internal/models"
	"github.com/shopcore/ecommerce-api/internal/services"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// userContextKey holds the authenticated *models.User in the request context
const userContextKey = "user"

// loggingMiddleware logs HTTP requests (security-focused, no sensitive data)
func (s *Server) loggingMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()

		next(ctx)

		s.logger.Info("HTTP request",
			zap.String("method", string(ctx.Method())),
			zap.String("path", string(ctx.Path())),
			zap.Int("status", ctx.Response.StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("user_agent", string(ctx.UserAgent())),
		)
	}
}

// metricsMiddleware records request count and latency under the route template
func (s *Server) metricsMiddleware(route string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	if s.metrics == nil {
		return next
	}
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		s.metrics.ObserveRequest(route, ctx.Response.StatusCode(), time.Since(start))
	}
}

// securityMiddleware adds security headers
func (s *Server) securityMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Set("X-Content-Type-Options", "nosniff")
		ctx.Response.Header.Set("X-Frame-Options", "DENY")
		ctx.Response.Header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		ctx.Response.Header.Set("Cache-Control", "no-store")
		if s.config.Server.IsProduction() {
			ctx.Response.Header.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		ctx.Response.Header.Del("Server")

		next(ctx)
	}
}

// corsMiddleware sets CORS headers on every response
func (s *Server) corsMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		s.setCORSHeaders(ctx)
		next(ctx)
	}
}

// authMiddleware resolves the session cookie to an active user.
// Only the cookie is consulted; an Authorization header is ignored.
func (s *Server) authMiddleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		token := string(ctx.Request.Header.Cookie(sessionCookieName))
		if token == "" {
			s.sendErrorResponse(ctx, fasthttp.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := s.tokens.Validate(token)
		if err != nil {
			s.logger.Debug("Rejected session token", zap.Error(err))
			s.sendErrorResponse(ctx, fasthttp.StatusUnauthorized, "Invalid or expired session")
			return
		}

		// The account may have been disabled or deleted since the token was issued.
		user, err := s.authService.ValidateSession(ctx, claims.UserID)
		if err != nil {
			s.sendServiceError(ctx, err)
			return
		}

		ctx.SetUserValue(userContextKey, user)

		next(ctx)
	}
}

// ownerOnly rejects requests whose :id path parameter is not the acting user
func (s *Server) ownerOnly(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		acting := actingUser(ctx)
		if acting == nil {
			s.sendErrorResponse(ctx, fasthttp.StatusUnauthorized, "Authentication required")
			return
		}

		id, ok := pathID(ctx)
		if !ok || id != acting.ID {
			s.logger.Warn("Ownership check failed",
				zap.String("user_id", acting.ID.String()),
				zap.String("target", pathParam(ctx)))
			s.sendServiceError(ctx, services.ErrForbidden)
			return
		}

		next(ctx)
	}
}

func actingUser(ctx *fasthttp.RequestCtx) *models.User {
	user, _ := ctx.UserValue(userContextKey).(*models.User)
	return user
}

func pathParam(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	return id
}

func pathID(ctx *fasthttp.RequestCtx) (uuid.UUID, bool) {
	id, err := uuid.Parse(pathParam(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// sendErrorResponse sends a JSON error response
func (s *Server) sendErrorResponse(ctx *fasthttp.RequestCtx, statusCode int, message string) {
	s.sendErrorFields(ctx, statusCode, message, nil)
}

func (s *Server) sendErrorFields(ctx *fasthttp.RequestCtx, statusCode int, message string, fields map[string]string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(fields) > 0 {
		response["fields"] = fields
	}

	s.sendJSON(ctx, statusCode, response)
}

// sendMessage sends a JSON body with a single message
func (s *Server) sendMessage(ctx *fasthttp.RequestCtx, message string) {
	s.sendJSON(ctx, fasthttp.StatusOK, map[string]string{"message": message})
}

// sendJSON writes data as the JSON response body
func (s *Server) sendJSON(ctx *fasthttp.RequestCtx, statusCode int, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("Failed to marshal response", zap.Error(err))
		ctx.SetContentType("application/json")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":true,"message":"Internal server error"}`)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(statusCode)
	ctx.SetBody(jsonData)
}

// parseJSONBody parses JSON request body
func (s *Server) parseJSONBody(ctx *fasthttp.RequestCtx, dest interface{}) error {
	return decodeBody(ctx, dest, false)
}

// parseStrictJSONBody parses JSON request body and rejects unknown fields
func (s *Server) parseStrictJSONBody(ctx *fasthttp.RequestCtx, dest interface{}) error {
	return decodeBody(ctx, dest, true)
}

func decodeBody(ctx *fasthttp.RequestCtx, dest interface{}, strict bool) error {
	contentType := string(ctx.Request.Header.ContentType())
	if !strings.Contains(contentType, "application/json") {
		return services.NewValidationError("body", "content-type must be application/json")
	}

	body := ctx.PostBody()
	if len(body) == 0 {
		return services.NewValidationError("body", "request body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dest); err != nil {
		return services.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}

	return nil
}
