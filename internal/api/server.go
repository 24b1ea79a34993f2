package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firefly-engineering/desklab/internal/lifecycle"
	"github.com/firefly-engineering/desklab/internal/relay"
	"github.com/firefly-engineering/desklab/internal/users"
)

// Config holds API server configuration
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Relay, when set, is mounted on the same listener
	Relay *relay.Relay

	// Logger for request handling
	Logger *slog.Logger
}

// Server serves the JSON API.
type Server struct {
	config  *Config
	echo    *echo.Echo
	manager *lifecycle.Manager
	users   *users.Store
	log     *slog.Logger
}

// NewServer creates an API server for the given services.
func NewServer(cfg *Config, manager *lifecycle.Manager, accounts *users.Store) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		config:  cfg,
		echo:    e,
		manager: manager,
		users:   accounts,
		log:     cfg.Logger,
	}
	e.HTTPErrorHandler = s.handleError

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting API server", "addr", s.config.ListenAddr)
	if err := s.echo.Start(s.config.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// The relay authenticates by token
	if s.config.Relay != nil {
		s.config.Relay.Register(s.echo)
	}

	api := s.echo.Group("/api", s.basicAuth())

	api.GET("/sessions", s.handleListSessions, s.require(actionManage))
	api.POST("/sessions", s.handleLaunch, s.require(actionLaunch))
	api.DELETE("/sessions/:id", s.handleDestroy, s.require(actionManage))
	api.POST("/sessions/:id/reboot", s.handleReboot, s.require(actionManage))
	api.POST("/sessions/:id/reset", s.handleReset, s.require(actionManage))
	api.POST("/sessions/:id/credential", s.handleCredential, s.require(actionManage))
	api.POST("/sessions/:id/save", s.handleSave, s.require(actionSave))
	api.GET("/sessions/:id/metadata", s.handleSessionMetadata, s.require(actionManage))
	api.GET("/sessions/:id/home", s.handleHome, s.require(actionManage))

	api.GET("/images", s.handleListImages, s.require(actionLaunch))
	api.DELETE("/images", s.handleDeleteImage, s.require(actionDeleteImage))
	api.POST("/images/promote", s.handlePromote, s.require(actionPromote))
	api.GET("/images/metadata", s.handleImageMetadata, s.require(actionLaunch))

	api.GET("/users", s.handleListUsers, s.require(actionManageUsers))
	api.POST("/users", s.handleAddUser, s.require(actionManageUsers))
	api.PUT("/users/me/password", s.handleChangePassword)

	api.POST("/reconcile", s.handleReconcile, s.require(actionReconcile))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
