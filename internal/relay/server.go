package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithConnectLimit throttles websocket upgrades to limit per second per IP,
// allowing bursts of burst.
func WithConnectLimit(limit rate.Limit, burst int) Option {
	return func(s *Server) {
		s.connectRate = limit
		s.connectBurst = burst
	}
}

// Server is the relay's HTTP front: GET /ws upgrades to the room protocol,
// GET /up reports liveness.
type Server struct {
	E      *echo.Echo
	hub    *Hub
	logger *slog.Logger

	connectRate  rate.Limit
	connectBurst int
}

// New builds the echo instance around hub.
func New(hub *Hub, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		E:            echo.New(),
		hub:          hub,
		logger:       logger.With("component", "relay"),
		connectRate:  DefaultConnectRate,
		connectBurst: int(DefaultConnectRate),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.E.HideBanner = true
	s.E.HidePort = true
	s.E.Use(middleware.Recover())
	s.E.Use(middleware.RequestID())
	s.E.Use(requestLogger(s.logger))
	s.E.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			loggerFrom(c.Request().Context(), s.logger).Debug("Request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.E.GET("/ws", s.handleSocket, connectLimiter(s.connectRate, s.connectBurst))
	s.E.GET("/up", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}

func (s *Server) handleSocket(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Development relay: any origin may connect.
		InsecureSkipVerify: true,
	})
	if err != nil {
		loggerFrom(c.Request().Context(), s.logger).Warn("Failed to upgrade connection to WebSocket", "error", err)
		return nil
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  s.hub,
	}
	select {
	case s.hub.register <- cl:
	case <-s.hub.done:
		conn.Close(websocket.StatusGoingAway, "relay shutting down")
		return nil
	}

	loggerFrom(c.Request().Context(), s.logger).Debug("Client connected", "client_id", cl.id, "remote_ip", c.RealIP())
	go cl.writePump()
	go cl.readPump(context.Background())
	return nil
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Relay listening", "addr", addr)
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down relay")
	return s.E.Shutdown(shutdownCtx)
}
