// Package server exposes an agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/docker/angi/pkg/agent"
	"github.com/docker/angi/pkg/api"
	"github.com/docker/angi/pkg/config"
	"github.com/docker/angi/pkg/sse"
	"github.com/docker/angi/pkg/version"
)

type Server struct {
	e     *echo.Echo
	agent atomic.Pointer[agent.Agent]
}

type Opt func(*options)

type options struct {
	endpointPath string
}

// WithEndpointPath sets the route prompts are posted to.
func WithEndpointPath(path string) Opt {
	return func(o *options) {
		o.endpointPath = path
	}
}

func New(a *agent.Agent, opts ...Opt) *Server {
	o := options{endpointPath: config.DefaultEndpointPath}
	for _, opt := range opts {
		opt(&o)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				slog.Warn("Request failed", append(attrs, "error", v.Error)...)
			} else {
				slog.Debug("Request", attrs...)
			}
			return nil
		},
	}))

	s := &Server{e: e}
	s.agent.Store(a)

	// Run a prompt against the posted components
	e.POST(o.endpointPath, s.runPrompt)

	// Health check endpoint
	e.GET("/api/ping", s.ping)

	return s
}

// SetAgent swaps the agent used by requests that start from now on.
func (s *Server) SetAgent(a *agent.Agent) {
	s.agent.Store(a)
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := http.Server{
		Handler:           s.e,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

func (s *Server) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, api.PingResponse{
		Status:  "ok",
		Version: version.Version,
		Model:   s.agent.Load().Model(),
	})
}

func (s *Server) runPrompt(c echo.Context) error {
	var body api.RequestBody
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if body.Prompt == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}

	a := s.agent.Load()
	ctx := c.Request().Context()

	if streamParam := c.QueryParam("stream"); streamParam != "" {
		stream, err := strconv.ParseBool(streamParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid stream parameter")
		}
		if !stream {
			resp, err := a.ProcessRequest(ctx, body)
			if err != nil {
				slog.Error("Failed to process request", "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to process request")
			}
			return c.JSON(http.StatusOK, resp)
		}
	}

	sse.SetHeaders(c.Response().Header())
	c.Response().WriteHeader(http.StatusOK)

	w := sse.NewWriter(c.Response())
	for chunk := range a.ProcessRequestStream(ctx, body) {
		if err := w.WriteChunk(chunk); err != nil {
			slog.Debug("Client went away", "error", err)
			return nil
		}
	}
	if err := w.WriteDone(); err != nil {
		slog.Debug("Client went away", "error", err)
	}
	return nil
}
