package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/skillbridge/upwork-oauth-broker/core"
)

// Broker is the slice of the lifecycle orchestrator the HTTP surface needs.
type Broker interface {
	AuthorizationURL() (string, error)
	CompleteAuthorization(ctx context.Context, code, errorParam string) (core.TokenRecord, error)
	Refresh(ctx context.Context) (core.RefreshOutcome, error)
	CurrentStatus(ctx context.Context) (core.Status, error)
}

// Server exposes the broker over the fixed HTTP surface. All paths are part
// of the external contract and must not change.
type Server struct {
	engine     *gin.Engine
	broker     Broker
	logger     core.Logger
	httpServer *http.Server
}

type Option func(*Server)

func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(broker Broker, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		engine: gin.New(),
		broker: broker,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(server)
	}
	server.logger = glog.Ensure(server.logger)

	server.engine.Use(gin.Recovery())
	server.engine.Use(requestLogger(server.logger))
	server.setupRoutes()

	return server
}

// Engine returns the gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/upwork/health", s.handleHealth)
	s.engine.GET("/upwork/auth", s.handleAuth)
	s.engine.GET("/upwork/callback", s.handleCallback)
	s.engine.POST("/upwork/refresh", s.handleRefresh)
	s.engine.GET("/upwork/token", s.handleToken)
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "upwork-oauth-broker",
		"endpoints": []string{
			"GET /upwork/health",
			"GET /upwork/auth",
			"GET /upwork/callback",
			"POST /upwork/refresh",
			"GET /upwork/token",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAuth(c *gin.Context) {
	target, err := s.broker.AuthorizationURL()
	if err != nil {
		status, envelope := resolveError(err)
		c.JSON(status, envelope)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (s *Server) handleCallback(c *gin.Context) {
	code := c.Query("code")
	errorParam := c.Query("error")

	_, err := s.broker.CompleteAuthorization(c.Request.Context(), code, errorParam)
	if err != nil {
		status, envelope := resolveError(err)
		if status == http.StatusBadRequest {
			c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(callbackRejectedPage))
			return
		}
		s.logger.Error("authorization exchange failed", "error", envelope.Error)
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(callbackFailurePage))
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(callbackSuccessPage))
}

func (s *Server) handleRefresh(c *gin.Context) {
	outcome, err := s.broker.Refresh(c.Request.Context())
	if err != nil {
		status, envelope := resolveError(err)
		if core.IsTokenNotFound(err) || envelope.Code == core.BrokerErrorNoCredential {
			// The surface contract fixes "nothing to refresh" at 400.
			c.JSON(http.StatusBadRequest, envelope)
			return
		}
		c.JSON(status, envelope)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"expires_in": outcome.ExpiresIn,
	})
}

func (s *Server) handleToken(c *gin.Context) {
	status, err := s.broker.CurrentStatus(c.Request.Context())
	if err != nil {
		httpStatus, envelope := resolveError(err)
		c.JSON(httpStatus, envelope)
		return
	}
	if !status.Present {
		c.JSON(http.StatusNotFound, errorEnvelope{
			Error: "no token stored",
			Code:  core.BrokerErrorNoCredential,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"has_token":     true,
		"is_expired":    status.Expired,
		"expires_at":    status.ExpiresAt.UTC().Format(time.RFC3339),
		"access_token":  status.AccessToken,
		"refresh_token": status.RefreshToken,
	})
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting http server", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
