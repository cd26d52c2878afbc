// Package web serves the read-only status endpoints of the bot.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"watering_notification_bot/internal/infra/scheduler"
)

const healthCheckTimeout = 2 * time.Second

// StatusSource provides the watering loop status.
type StatusSource interface {
	Snapshot() scheduler.Snapshot
}

// HealthCheck returns nil when the dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Dependencies struct {
	Status StatusSource
	// Checks are run by /healthz, keyed by dependency name.
	Checks map[string]HealthCheck
	// AllowOrigins enables CORS for browser dashboards. Empty disables CORS.
	AllowOrigins []string
	Logger       *logrus.Entry
}

type Server struct {
	httpServer *http.Server
	status     StatusSource
	checks     map[string]HealthCheck
	startedAt  time.Time
	logger     *logrus.Entry
}

func New(addr string, deps Dependencies) *Server {
	s := &Server{
		status:    deps.Status,
		checks:    deps.Checks,
		startedAt: time.Now(),
		logger:    deps.Logger,
	}
	if s.logger == nil {
		s.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s.logger = s.logger.WithField("component", "web")

	router := gin.New()
	router.Use(gin.Recovery())
	if len(deps.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: deps.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
			MaxAge:       12 * time.Hour,
		}))
	}
	router.GET("/healthz", s.handleHealth)
	router.GET("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Status server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	code := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WithError(err).WithField("check", name).Warn("Health check failed")
			results[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	status := "ok"
	if code != http.StatusOK {
		status = "degraded"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}

func (s *Server) handleStatus(c *gin.Context) {
	body := gin.H{
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if s.status != nil {
		body["loop"] = s.status.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}
