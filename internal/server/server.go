package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"petaverse-chat/config"
	"petaverse-chat/internal/handler"
	"petaverse-chat/internal/middleware"
	"petaverse-chat/internal/transport/httpdto"
	"petaverse-chat/internal/websocket"
	"petaverse-chat/pkg/database"
	"petaverse-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

const shutdownTimeout = 5 * time.Second

type Handlers struct {
	Rooms         *handler.RoomHandler
	Messages      *handler.MessageHandler
	Notifications *handler.NotificationHandler
	WebSocket     *websocket.Handler
}

// Dependencies are the cross cutting collaborators the routes need besides
// the handlers themselves.
type Dependencies struct {
	Auth    middleware.Authenticator
	Limiter middleware.MessageLimiter
	DB      *sql.DB
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	if l == nil {
		l = logger.GetGlobalLogger()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.MetricsMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), deps.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("database unavailable", "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")

	// The socket authenticates from its own query token during the upgrade.
	if handlers.WebSocket != nil {
		v1.GET("/ws", handlers.WebSocket.Connect)
	}

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(deps.Auth))

	rooms := authed.Group("/rooms")
	{
		rooms.POST("", handlers.Rooms.Create)
		rooms.GET("", handlers.Rooms.List)
		rooms.GET("/:id", handlers.Rooms.Get)
		rooms.GET("/:id/messages", handlers.Messages.History)
		if deps.Limiter != nil {
			rooms.POST("/:id/messages", middleware.MessageRateLimitMiddleware(deps.Limiter, s.logger), handlers.Messages.Send)
		} else {
			rooms.POST("/:id/messages", handlers.Messages.Send)
		}
		rooms.POST("/:id/read", handlers.Messages.MarkRead)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", handlers.Notifications.List)
		notifications.GET("/unread", handlers.Notifications.Unread)
		notifications.GET("/unread/count", handlers.Notifications.UnreadCount)
		notifications.PUT("/read-all", handlers.Notifications.MarkAllRead)
		notifications.PUT("/:id/read", handlers.Notifications.MarkRead)
		notifications.DELETE("/:id", handlers.Notifications.Delete)
		notifications.POST("/test", handlers.Notifications.SendTest)
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Errorf("Error in starting the server: %s", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Shutdown signal received, draining for up to %s", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
