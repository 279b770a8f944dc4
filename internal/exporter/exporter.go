// Package exporter provides an HTTP server for Prometheus metrics, health
// endpoints and a live message tail.
package exporter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
)

// Feed is a source of encoded messages for the live tail.
// *publisher.Tap implements it.
type Feed interface {
	Subscribe(buffer int) (<-chan []byte, func())
}

// tailBuffer is the per-connection backlog before messages are dropped.
const tailBuffer = 256

// Server is an HTTP server that exposes Prometheus metrics and health endpoints.
type Server struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger
	ready  atomic.Bool
}

// New creates a new exporter server listening on addr and serving metrics
// from reg. feed may be nil, which disables the tail endpoint.
func New(addr string, reg *prometheus.Registry, feed Feed, logger *zap.Logger) *Server {
	s := &Server{addr: addr, logger: logger}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           constants.HTTPReadTimeout,
		WriteTimeout:          constants.HTTPWriteTimeout,
		IdleTimeout:           constants.HTTPIdleTimeout,
	})
	app.Use(recover.New())

	app.Get(constants.PathMetrics, adaptor.HTTPHandler(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	app.Get(constants.PathHealthz, s.handleHealthz)
	app.Get(constants.PathReadyz, s.handleReadyz)

	if feed != nil {
		app.Use(constants.PathTail, func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get(constants.PathTail, websocket.New(func(c *websocket.Conn) {
			s.handleTail(c, feed)
		}))
	}

	s.app = app
	return s
}

// SetReady marks the server as ready to serve traffic.
// Call this after the runtime and publisher are up.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Run starts the HTTP server. It blocks until the context is cancelled
// or the server encounters a fatal error.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting metrics exporter",
		zap.String("addr", s.addr),
		zap.String("metrics_path", constants.PathMetrics))

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		s.logger.Info("Shutting down metrics exporter...")
		if err := s.app.ShutdownWithTimeout(constants.ExporterShutdownTimeout); err != nil {
			s.logger.Error("metrics exporter shutdown error", zap.Error(err))
		}
	}()

	if err := s.app.Listen(s.addr); err != nil {
		return fmt.Errorf("metrics exporter failed: %w", err)
	}
	return nil
}

// App exposes the router, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// handleHealthz is a liveness probe endpoint.
// Always returns 200 OK if the plugin is loaded.
func (s *Server) handleHealthz(c *fiber.Ctx) error {
	return c.SendString("ok\n")
}

// handleReadyz is a readiness probe endpoint.
// Returns 200 OK only while the plugin accepts events.
func (s *Server) handleReadyz(c *fiber.Ctx) error {
	if s.ready.Load() {
		return c.SendString("ready\n")
	}
	return c.Status(fiber.StatusServiceUnavailable).SendString("not ready\n")
}

// handleTail streams every published message as a text frame until the
// client goes away or the feed ends.
func (s *Server) handleTail(c *websocket.Conn, feed Feed) {
	msgs, cancel := feed.Subscribe(tailBuffer)
	defer cancel()

	// Reader detects client close; tail clients never send anything.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("Tail client connected", zap.String("remote", c.RemoteAddr().String()))
	for {
		select {
		case <-gone:
			return
		case data, ok := <-msgs:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}
