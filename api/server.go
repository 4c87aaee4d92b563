// Package api exposes a running orchestrator over HTTP: state inspection,
// pause/resume/stop control, recent event history, and a WebSocket stream of
// live events. The API observes and steers a run; it never mutates scenario
// state directly.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Itangalo/scenario-lab-sub001/bus"
	"github.com/Itangalo/scenario-lab-sub001/core"
	"github.com/Itangalo/scenario-lab-sub001/logging"
)

// Controller is the slice of the orchestrator the API drives. Pause and Stop
// are requests honored at the next turn boundary, matching the engine's
// semantics.
type Controller interface {
	Pause()
	Resume()
	Stop()
	State() core.ScenarioState
}

// Options configures a Server.
type Options struct {
	// Logger receives request-level diagnostics. Defaults to NoOp if nil.
	Logger logging.Logger

	// EventBuffer is the per-client queue depth for the WebSocket stream.
	// A client that falls further behind is disconnected.
	EventBuffer int
}

// Server wires HTTP routes onto an echo instance. Construct with NewServer,
// then Start, and Shutdown when done.
type Server struct {
	echo       *echo.Echo
	controller Controller
	bus        *bus.Bus
	logger     logging.Logger
	buffer     int
}

// NewServer creates an API server around a controller and the bus its run
// emits on.
func NewServer(controller Controller, b *bus.Bus, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		EventBuffer: 64,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		controller: controller,
		bus:        b,
		logger:     core.EnsureLogger(opts.Logger),
		buffer:     opts.EventBuffer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)
	s.echo.GET("/state", s.state)
	s.echo.GET("/events", s.events)
	s.echo.POST("/pause", s.pause)
	s.echo.POST("/resume", s.resume)
	s.echo.POST("/stop", s.stop)
	s.echo.GET("/ws", s.stream)
}

// Start blocks serving on addr until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	s.logger.Info("api server starting", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// GET /healthz
func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GET /state
func (s *Server) state(c echo.Context) error {
	state := s.controller.State()
	return c.JSON(http.StatusOK, map[string]any{
		"run_id":      state.RunID,
		"scenario_id": state.ScenarioID,
		"status":      state.Status,
		"turn":        state.Turn,
		"total_cost":  state.TotalCost(),
		"halt_reason": state.HaltReason(),
		"world_state": state.WorldState,
		"actors":      state.Actors,
	})
}

// GET /events?type=turn_completed
func (s *Server) events(c echo.Context) error {
	var types []core.EventType
	if raw := c.QueryParam("type"); raw != "" {
		types = append(types, core.EventType(raw))
	}
	return c.JSON(http.StatusOK, s.bus.History(types...))
}

// POST /pause
func (s *Server) pause(c echo.Context) error {
	s.controller.Pause()
	s.logger.Info("pause requested via api")
	return c.JSON(http.StatusAccepted, map[string]string{"status": "pause requested"})
}

// POST /resume
func (s *Server) resume(c echo.Context) error {
	s.controller.Resume()
	s.logger.Info("resume requested via api")
	return c.JSON(http.StatusAccepted, map[string]string{"status": "resume requested"})
}

// POST /stop
func (s *Server) stop(c echo.Context) error {
	s.controller.Stop()
	s.logger.Info("stop requested via api")
	return c.JSON(http.StatusAccepted, map[string]string{"status": "stop requested"})
}
