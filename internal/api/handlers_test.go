package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopcore/ecommerce-api/internal/config"
	"github.com/shopcore/ecommerce-api/internal/database"
	"github.com/shopcore/ecommerce-api/internal/metrics"
	"github.com/shopcore/ecommerce-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testFrontend = "http://localhost:5173"
)

type testServer struct {
	*Server
	metrics *metrics.Metrics
	tokens  *services.TokenService
}

func newTestServer(t *testing.T, env string) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server:     config.ServerConfig{Address: "127.0.0.1:0", Environment: env},
		CORS:       config.CORSConfig{FrontendURL: testFrontend},
		Pagination: config.PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
	}

	hasher, err := services.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := services.NewTokenService(testSecret)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()
	auth := services.NewAuthService(database.NewMemoryUserRepository(), hasher, tokens, m, logger)

	return &testServer{
		Server:  NewServer(cfg, logger, auth, tokens, m),
		metrics: m,
		tokens:  tokens,
	}
}

// do runs a request through the full router and middleware chain
func (ts *testServer) do(method, uri, body, token string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	if token != "" {
		req.Header.SetCookie(sessionCookieName, token)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	ts.Handler()(ctx)
	return ctx
}

func (ts *testServer) register(t *testing.T, username, email, password string) uuid.UUID {
	t.Helper()
	ctx := ts.do(fasthttp.MethodPost, "/api/v1/auth/register",
		fmt.Sprintf(`{"username":%q,"email":%q,"password":%q}`, username, email, password), "")
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	id, err := uuid.Parse(body["id"].(string))
	require.NoError(t, err)
	return id
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	ctx := ts.do(fasthttp.MethodPost, "/api/v1/auth/login",
		fmt.Sprintf(`{"email":%q,"password":%q}`, email, password), "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	return sessionToken(t, ctx)
}

func sessionToken(t *testing.T, ctx *fasthttp.RequestCtx) string {
	t.Helper()
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(sessionCookieName)
	require.True(t, ctx.Response.Header.Cookie(cookie), "session cookie not set")
	return string(cookie.Value())
}

func responseJSON(t *testing.T, ctx *fasthttp.RequestCtx) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body), string(ctx.Response.Body()))
	return body
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)

	ctx := ts.do(fasthttp.MethodGet, "/api/v1/health", "", "")

	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "healthy", responseJSON(t, ctx)["status"])
	assert.Equal(t, "nosniff", string(ctx.Response.Header.Peek("X-Content-Type-Options")))
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)

	// Register
	ctx := ts.do(fasthttp.MethodPost, "/api/v1/auth/register",
		`{"username":"alice","email":"a@x.com","password":"Abc123!"}`, "")
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	raw := string(ctx.Response.Body())
	assert.NotContains(t, raw, "password")
	assert.NotContains(t, raw, "Abc123!")
	assert.Equal(t, true, responseJSON(t, ctx)["isActive"])

	// Login
	ctx = ts.do(fasthttp.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"Abc123!"}`, "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := responseJSON(t, ctx)
	assert.NotContains(t, body, "token")
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])

	setCookie := strings.ToLower(string(ctx.Response.Header.PeekCookie(sessionCookieName)))
	assert.Contains(t, setCookie, "httponly")
	assert.Contains(t, setCookie, "samesite=strict")
	assert.Contains(t, setCookie, "path=/")
	assert.Contains(t, setCookie, "max-age=604800")
	assert.Contains(t, setCookie, fmt.Sprintf("max-age=%d", int(ts.tokens.TTL().Seconds())))
	assert.NotContains(t, setCookie, "secure")
	token := sessionToken(t, ctx)

	// Profile
	ctx = ts.do(fasthttp.MethodGet, "/api/v1/auth/profile", "", token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "alice", responseJSON(t, ctx)["username"])
	assert.NotContains(t, string(ctx.Response.Body()), "passwordHash")

	// Disable
	id := user["id"].(string)
	ctx = ts.do(fasthttp.MethodDelete, "/api/v1/auth/users/"+id+"/disable-account", "", token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	// Login and the old session both fail afterwards
	ctx = ts.do(fasthttp.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"Abc123!"}`, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	ctx = ts.do(fasthttp.MethodGet, "/api/v1/auth/profile", "", token)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	ts.register(t, "alice", "a@x.com", "Abc123!")

	tests := []struct {
		name    string
		body    string
		message string
		field   string
	}{
		{name: "duplicate email", body: `{"username":"alice2","email":"a@x.com","password":"Abc123!"}`, message: "email already registered"},
		{name: "duplicate username", body: `{"username":"alice","email":"b@x.com","password":"Abc123!"}`, message: "username already registered"},
		{name: "short username", body: `{"username":"al","email":"c@x.com","password":"Abc123!"}`, message: "Validation failed", field: "username"},
		{name: "bad email", body: `{"username":"carol","email":"nope","password":"Abc123!"}`, message: "Validation failed", field: "email"},
		{name: "short password", body: `{"username":"carol","email":"c@x.com","password":"123"}`, message: "Validation failed", field: "password"},
		{name: "malformed json", body: `{"username":`, message: "Validation failed", field: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ts.do(fasthttp.MethodPost, "/api/v1/auth/register", tt.body, "")

			require.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
			body := responseJSON(t, ctx)
			assert.Equal(t, true, body["error"])
			assert.Equal(t, tt.message, body["message"])
			if tt.field != "" {
				fields := body["fields"].(map[string]interface{})
				assert.Contains(t, fields, tt.field)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	ts.register(t, "alice", "a@x.com", "Abc123!")

	unknown := ts.do(fasthttp.MethodPost, "/api/v1/auth/login", `{"email":"ghost@x.com","password":"Abc123!"}`, "")
	wrong := ts.do(fasthttp.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"nope123"}`, "")

	assert.Equal(t, fasthttp.StatusUnauthorized, unknown.Response.StatusCode())
	assert.Equal(t, fasthttp.StatusUnauthorized, wrong.Response.StatusCode())
	assert.Equal(t, responseJSON(t, unknown)["message"], responseJSON(t, wrong)["message"])
	assert.Empty(t, unknown.Response.Header.PeekCookie(sessionCookieName))

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.LoginFailures.WithLabelValues(services.FailureUnknownEmail)))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.LoginFailures.WithLabelValues(services.FailureWrongPassword)))
	assert.Equal(t, 2.0, testutil.ToFloat64(ts.metrics.RequestsTotal.WithLabelValues("/auth/login", "401")))
}

func TestSessionExtraction(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	id := ts.register(t, "alice", "a@x.com", "Abc123!")
	token := ts.login(t, "a@x.com", "Abc123!")

	t.Run("missing cookie", func(t *testing.T) {
		ctx := ts.do(fasthttp.MethodGet, "/api/v1/auth/profile", "", "")
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("bearer header is ignored", func(t *testing.T) {
		var req fasthttp.Request
		req.Header.SetMethod(fasthttp.MethodGet)
		req.SetRequestURI("/api/v1/auth/profile")
		req.Header.Set("Authorization", "Bearer "+token)
		ctx := &fasthttp.RequestCtx{}
		ctx.Init(&req, nil, nil)

		ts.Handler()(ctx)

		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("tampered token", func(t *testing.T) {
		ctx := ts.do(fasthttp.MethodGet, "/api/v1/auth/profile", "", token+"x")
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("token for unknown user", func(t *testing.T) {
		ghost, err := ts.tokens.Issue(uuid.New(), "ghost", "ghost@x.com")
		require.NoError(t, err)
		ctx := ts.do(fasthttp.MethodGet, "/api/v1/auth/profile", "", ghost)
		assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("valid cookie", func(t *testing.T) {
		ctx := ts.do(fasthttp.MethodGet, "/api/v1/auth/profile", "", token)
		require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, id.String(), responseJSON(t, ctx)["id"])
	})
}

func TestOwnershipGuard(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	alice := ts.register(t, "alice", "a@x.com", "Abc123!")
	ts.register(t, "bobby", "b@x.com", "Abc123!")
	bobToken := ts.login(t, "b@x.com", "Abc123!")

	tests := []struct {
		name   string
		method string
		uri    string
		body   string
	}{
		{name: "patch", method: fasthttp.MethodPatch, uri: "/api/v1/auth/users/" + alice.String(), body: `{"username":"hijacked"}`},
		{name: "disable", method: fasthttp.MethodDelete, uri: "/api/v1/auth/users/" + alice.String() + "/disable-account"},
		{name: "delete", method: fasthttp.MethodDelete, uri: "/api/v1/auth/users/" + alice.String() + "/delete-account-permanently"},
		{name: "malformed id", method: fasthttp.MethodDelete, uri: "/api/v1/auth/users/not-a-uuid/disable-account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ts.do(tt.method, tt.uri, tt.body, bobToken)
			assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
		})
	}

	ctx := ts.do(fasthttp.MethodGet, "/api/v1/auth/users/"+alice.String(), "", bobToken)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "alice", responseJSON(t, ctx)["username"])
	ts.login(t, "a@x.com", "Abc123!")
}

func TestUpdateUser(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	id := ts.register(t, "alice", "a@x.com", "Abc123!")
	ts.register(t, "bobby", "b@x.com", "Abc123!")
	token := ts.login(t, "a@x.com", "Abc123!")
	uri := "/api/v1/auth/users/" + id.String()

	ctx := ts.do(fasthttp.MethodPatch, uri, `{"username":"alice_new"}`, token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "alice_new", responseJSON(t, ctx)["username"])

	ctx = ts.do(fasthttp.MethodPatch, uri, `{"password":"Zyx987!"}`, token)
	require.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Contains(t, responseJSON(t, ctx)["fields"], "body")

	ctx = ts.do(fasthttp.MethodPatch, uri, `{"email":"b@x.com"}`, token)
	require.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "email already registered", responseJSON(t, ctx)["message"])

	// The password was not touched
	ts.login(t, "a@x.com", "Abc123!")
}

func TestChangePassword(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	ts.register(t, "alice", "a@x.com", "Abc123!")
	token := ts.login(t, "a@x.com", "Abc123!")

	ctx := ts.do(fasthttp.MethodPatch, "/api/v1/auth/change-password", `{"oldPassword":"wrong12","newPassword":"Zyx987!"}`, token)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	ts.login(t, "a@x.com", "Abc123!")

	ctx = ts.do(fasthttp.MethodPatch, "/api/v1/auth/change-password", `{"oldPassword":"Abc123!","newPassword":"Zyx987!"}`, token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = ts.do(fasthttp.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"Abc123!"}`, "")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	ts.login(t, "a@x.com", "Zyx987!")
}

func TestListUsers(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	ts.register(t, "alice", "a@x.com", "Abc123!")
	ts.register(t, "bobby", "b@x.com", "Abc123!")
	ts.register(t, "carol", "c@x.com", "Abc123!")
	token := ts.login(t, "a@x.com", "Abc123!")

	ctx := ts.do(fasthttp.MethodGet, "/api/v1/auth/users", "", token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := responseJSON(t, ctx)
	assert.Equal(t, 3.0, body["total"])
	assert.Equal(t, 10.0, body["limit"])
	assert.Len(t, body["users"], 3)

	ctx = ts.do(fasthttp.MethodGet, "/api/v1/auth/users?limit=2&offset=2", "", token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body = responseJSON(t, ctx)
	assert.Equal(t, 3.0, body["total"])
	assert.Len(t, body["users"], 1)

	for _, query := range []string{"limit=abc", "limit=-1", "offset=-5", "limit=1000"} {
		ctx = ts.do(fasthttp.MethodGet, "/api/v1/auth/users?"+query, "", token)
		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode(), query)
	}

	ctx = ts.do(fasthttp.MethodGet, "/api/v1/auth/users", "", "")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestGetUserNotFound(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	ts.register(t, "alice", "a@x.com", "Abc123!")
	token := ts.login(t, "a@x.com", "Abc123!")

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		ctx := ts.do(fasthttp.MethodGet, "/api/v1/auth/users/"+id, "", token)
		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode(), id)
	}
}

func TestDeleteAccountPermanently(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	id := ts.register(t, "alice", "a@x.com", "Abc123!")
	token := ts.login(t, "a@x.com", "Abc123!")

	ctx := ts.do(fasthttp.MethodDelete, "/api/v1/auth/users/"+id.String()+"/delete-account-permanently", "", token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = ts.do(fasthttp.MethodGet, "/api/v1/auth/profile", "", token)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	// Credentials are free again
	ts.register(t, "alice", "a@x.com", "Abc123!")
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	ts.register(t, "alice", "a@x.com", "Abc123!")
	token := ts.login(t, "a@x.com", "Abc123!")

	ctx := ts.do(fasthttp.MethodPost, "/api/v1/auth/logout", "", token)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "Logged out successfully", responseJSON(t, ctx)["message"])
	assert.Empty(t, sessionToken(t, ctx))
	assert.Contains(t, strings.ToLower(string(ctx.Response.Header.PeekCookie(sessionCookieName))), "expires=")
}

func TestProductionCookieIsSecure(t *testing.T) {
	ts := newTestServer(t, config.EnvProduction)
	ts.register(t, "alice", "a@x.com", "Abc123!")

	ctx := ts.do(fasthttp.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"Abc123!"}`, "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, strings.ToLower(string(ctx.Response.Header.PeekCookie(sessionCookieName))), "secure")
	assert.NotEmpty(t, ctx.Response.Header.Peek("Strict-Transport-Security"))
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)

	ctx := ts.do(fasthttp.MethodOptions, "/api/v1/auth/login", "", "")
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, testFrontend, string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
	assert.Equal(t, "true", string(ctx.Response.Header.Peek("Access-Control-Allow-Credentials")))

	ctx = ts.do(fasthttp.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, testFrontend, string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)
	ts.do(fasthttp.MethodGet, "/api/v1/health", "", "")

	ctx := ts.do(fasthttp.MethodGet, "/metrics", "", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `ecommerce_http_requests_total{route="/health",status="200"} 1`)
}

func TestSendServiceError(t *testing.T) {
	ts := newTestServer(t, config.EnvTest)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "validation", err: services.NewValidationError("email", "invalid email format"), status: 400, message: "Validation failed"},
		{name: "duplicate", err: &services.DuplicateCredentialError{Field: "email"}, status: 400, message: "email already registered"},
		{name: "invalid credentials", err: services.ErrInvalidCredentials, status: 401, message: "Invalid credentials"},
		{name: "unauthenticated", err: services.ErrUnauthenticated, status: 401, message: "Authentication required"},
		{name: "forbidden", err: services.ErrForbidden, status: 403, message: "You can only manage your own account"},
		{name: "not found", err: fmt.Errorf("load: %w", services.ErrNotFound), status: 404, message: "User not found"},
		{name: "internal", err: fmt.Errorf("issue token: %w", services.ErrInternal), status: 500, message: "Internal server error"},
		{name: "unknown", err: errors.New("dial tcp: secret-host refused"), status: 500, message: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &fasthttp.RequestCtx{}
			ts.sendServiceError(ctx, tt.err)

			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			body := responseJSON(t, ctx)
			assert.Equal(t, tt.message, body["message"])
			assert.NotContains(t, string(ctx.Response.Body()), "secret-host")
		})
	}
}
