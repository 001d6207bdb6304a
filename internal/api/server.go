package api

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/shopcore/ecommerce-api/internal/config"
	"github.com/shopcore/ecommerce-api/internal/metrics"
	"github.com/shopcore/ecommerce-api/internal/services"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Server represents the API server
type Server struct {
	config      *config.Config
	logger      *zap.Logger
	authService *services.AuthService
	tokens      *services.TokenService
	metrics     *metrics.Metrics
	router      *router.Router
	server      *fasthttp.Server
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	authService *services.AuthService,
	tokens *services.TokenService,
	m *metrics.Metrics,
) *Server {
	s := &Server{
		config:      cfg,
		logger:      logger,
		authService: authService,
		tokens:      tokens,
		metrics:     m,
		router:      router.New(),
	}

	s.setupRoutes()
	s.setupServer()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GlobalOPTIONS = s.corsHandler

	v1 := s.router.Group("/api/v1")
	auth := v1.Group("/auth")

	// Public routes
	auth.POST("/register", s.withMiddleware("/auth/register", s.registerHandler))
	auth.POST("/login", s.withMiddleware("/auth/login", s.loginHandler))

	// Session routes
	auth.GET("/profile", s.withMiddleware("/auth/profile", s.authMiddleware(s.profileHandler)))
	auth.POST("/logout", s.withMiddleware("/auth/logout", s.authMiddleware(s.logoutHandler)))
	auth.GET("/users", s.withMiddleware("/auth/users", s.authMiddleware(s.listUsersHandler)))
	auth.GET("/users/{id}", s.withMiddleware("/auth/users/{id}", s.authMiddleware(s.getUserHandler)))
	auth.PATCH("/change-password", s.withMiddleware("/auth/change-password", s.authMiddleware(s.changePasswordHandler)))

	// Owner-only routes
	auth.PATCH("/users/{id}", s.withMiddleware("/auth/users/{id}",
		s.authMiddleware(s.ownerOnly(s.updateUserHandler))))
	auth.DELETE("/users/{id}/disable-account", s.withMiddleware("/auth/users/{id}/disable-account",
		s.authMiddleware(s.ownerOnly(s.disableAccountHandler))))
	auth.DELETE("/users/{id}/delete-account-permanently", s.withMiddleware("/auth/users/{id}/delete-account-permanently",
		s.authMiddleware(s.ownerOnly(s.deleteAccountHandler))))

	// Health check endpoint
	v1.GET("/health", s.withMiddleware("/health", s.healthHandler))

	if s.metrics != nil {
		s.router.GET("/metrics", s.metrics.Handler())
	}
}

// setupServer configures the FastHTTP server
func (s *Server) setupServer() {
	s.server = &fasthttp.Server{
		Handler:               s.router.Handler,
		Name:                  "ecommerce-api",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
		MaxRequestBodySize:    1024 * 1024, // 1MB
		NoDefaultServerHeader: true,
		NoDefaultDate:         true,
		NoDefaultContentType:  true,
	}
}

// Handler returns the root request handler
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.server.Handler
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("Starting API server",
		zap.String("address", s.config.Server.Address),
		zap.String("environment", s.config.Server.Environment))

	return s.server.ListenAndServe(s.config.Server.Address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.server.ShutdownWithContext(ctx)
}

// withMiddleware wraps handlers with common middleware
func (s *Server) withMiddleware(route string, handler fasthttp.RequestHandler) fasthttp.RequestHandler {
	return s.loggingMiddleware(
		s.metricsMiddleware(route,
			s.securityMiddleware(
				s.corsMiddleware(handler),
			),
		),
	)
}

// corsHandler handles CORS preflight requests
func (s *Server) corsHandler(ctx *fasthttp.RequestCtx) {
	s.setCORSHeaders(ctx)
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// setCORSHeaders allows the configured frontend origin to send the session cookie
func (s *Server) setCORSHeaders(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Access-Control-Allow-Origin", s.config.CORS.FrontendURL)
	ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type")
	ctx.Response.Header.Set("Access-Control-Max-Age", "86400")
	ctx.Response.Header.Set("Vary", "Origin")
}

// healthHandler handles health check requests
func (s *Server) healthHandler(ctx *fasthttp.RequestCtx) {
	s.sendJSON(ctx, fasthttp.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "ecommerce-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
