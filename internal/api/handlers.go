package api

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopcore/ecommerce-api/internal/models"
	"github.com/shopcore/ecommerce-api/internal/services"
	"github.com/valyala/fasthttp"
)

// registerHandler handles user registration
func (s *Server) registerHandler(ctx *fasthttp.RequestCtx) {
	var req models.UserRegistration
	if err := s.parseJSONBody(ctx, &req); err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	user, err := s.authService.Register(ctx, req)
	if err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.sendJSON(ctx, fasthttp.StatusCreated, user)
}

// loginHandler handles user login. The token travels only in the cookie.
func (s *Server) loginHandler(ctx *fasthttp.RequestCtx) {
	var req models.UserLogin
	if err := s.parseJSONBody(ctx, &req); err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	resp, err := s.authService.Login(ctx, req)
	if err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.setSessionCookie(ctx, resp.Token)
	s.sendJSON(ctx, fasthttp.StatusOK, map[string]models.PublicUser{"user": resp.User})
}

// profileHandler returns the acting user
func (s *Server) profileHandler(ctx *fasthttp.RequestCtx) {
	s.sendJSON(ctx, fasthttp.StatusOK, actingUser(ctx).Public())
}

// logoutHandler clears the session cookie. The token itself stays valid until expiry.
func (s *Server) logoutHandler(ctx *fasthttp.RequestCtx) {
	s.clearSessionCookie(ctx)
	s.sendMessage(ctx, "Logged out successfully")
}

// listUsersHandler returns one page of active users
func (s *Server) listUsersHandler(ctx *fasthttp.RequestCtx) {
	limit, offset, err := s.pagination(ctx)
	if err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	list, err := s.authService.ListUsers(ctx, limit, offset)
	if err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.sendJSON(ctx, fasthttp.StatusOK, list)
}

// getUserHandler returns an active user by id
func (s *Server) getUserHandler(ctx *fasthttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		s.sendServiceError(ctx, services.ErrNotFound)
		return
	}

	user, err := s.authService.GetUser(ctx, id)
	if err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.sendJSON(ctx, fasthttp.StatusOK, user)
}

// updateUserHandler applies a partial profile update. Password is not accepted here.
func (s *Server) updateUserHandler(ctx *fasthttp.RequestCtx) {
	id, _ := pathID(ctx)

	var patch models.UserPatch
	if err := s.parseStrictJSONBody(ctx, &patch); err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	user, err := s.authService.UpdateProfile(ctx, id, patch, actingUser(ctx))
	if err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.sendJSON(ctx, fasthttp.StatusOK, user)
}

// disableAccountHandler soft-deletes the acting user's account
func (s *Server) disableAccountHandler(ctx *fasthttp.RequestCtx) {
	id, _ := pathID(ctx)

	if err := s.authService.DisableAccount(ctx, id, actingUser(ctx)); err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.clearSessionCookie(ctx)
	s.sendMessage(ctx, "Account disabled successfully")
}

// deleteAccountHandler removes the acting user's account permanently
func (s *Server) deleteAccountHandler(ctx *fasthttp.RequestCtx) {
	id, _ := pathID(ctx)

	if err := s.authService.DeleteAccountPermanently(ctx, id, actingUser(ctx)); err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.clearSessionCookie(ctx)
	s.sendMessage(ctx, "Account deleted permanently")
}

// changePasswordHandler replaces the acting user's password
func (s *Server) changePasswordHandler(ctx *fasthttp.RequestCtx) {
	var req models.PasswordChange
	if err := s.parseJSONBody(ctx, &req); err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	acting := actingUser(ctx)
	err := s.authService.ChangePassword(ctx, acting.ID, req, acting)
	if errors.Is(err, services.ErrInvalidCredentials) {
		s.sendErrorResponse(ctx, fasthttp.StatusBadRequest, "Old password is incorrect")
		return
	}
	if err != nil {
		s.sendServiceError(ctx, err)
		return
	}

	s.sendMessage(ctx, "Password changed successfully")
}

// pagination reads limit and offset, applying configured defaults and bounds
func (s *Server) pagination(ctx *fasthttp.RequestCtx) (int, int, error) {
	v := &services.ValidationError{}
	limit := s.queryInt(ctx, v, "limit", s.config.Pagination.DefaultLimit)
	offset := s.queryInt(ctx, v, "offset", 0)

	if limit > s.config.Pagination.MaxLimit {
		v.Add("limit", fmt.Sprintf("limit must be at most %d", s.config.Pagination.MaxLimit))
	}
	if !v.Empty() {
		return 0, 0, v
	}
	return limit, offset, nil
}

func (s *Server) queryInt(ctx *fasthttp.RequestCtx, v *services.ValidationError, key string, def int) int {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return def
	}

	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		v.Add(key, key+" must be a non-negative integer")
		return def
	}
	return n
}
