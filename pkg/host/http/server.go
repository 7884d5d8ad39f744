// Package http exposes the host commands over HTTP
package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/host"
	"github.com/walteh/plantshare/pkg/operation"
	"github.com/walteh/plantshare/pkg/status"
)

// Runner is the part of the host the server drives
type Runner interface {
	Commands() []host.Command
	Run(ctx context.Context, name string, sink status.Sink) (*operation.Result, error)
}

// ServerOptions configure the server
type ServerOptions struct {
	// AllowOrigins lists the CORS origins, every origin when empty
	AllowOrigins []string
	Version      string
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// RunResponse is the body returned for a command run
type RunResponse struct {
	Command  string   `json:"command"`
	RunID    string   `json:"run_id,omitempty"`
	Outcome  string   `json:"outcome"`
	Phase    string   `json:"phase"`
	Lines    []string `json:"lines"`
	Errors   []string `json:"errors,omitempty"`
	Target   string   `json:"target,omitempty"`
	Files    int      `json:"files,omitempty"`
	Location string   `json:"location,omitempty"`
	Paths    []string `json:"paths,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// 🌐 Server serves the command bridge
type Server struct {
	runner  Runner
	version string
	router  *gin.Engine
}

// NewServer builds the router
func NewServer(runner Runner, opts ServerOptions) *Server {
	s := &Server{runner: runner, version: opts.Version, router: gin.New()}
	s.router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.AllowOrigins
	}
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	s.router.Use(cors.New(corsCfg))

	s.RegisterRoutes(s.router)
	return s
}

// RegisterRoutes adds the bridge routes to r
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", s.health)
	r.GET("/commands", s.commands)
	r.POST("/commands/:name", s.run)
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   s.version,
	})
}

func (s *Server) commands(c *gin.Context) {
	c.JSON(http.StatusOK, s.runner.Commands())
}

func (s *Server) run(c *gin.Context) {
	name := c.Param("name")
	rec := status.NewRecorder()
	sink := status.Multi(rec, status.SinkFunc(func(ctx context.Context, msg string) {
		zerolog.Ctx(ctx).Info().Str("command", name).Str("sink", "http").Msg(msg)
	}))

	res, err := s.runner.Run(c.Request.Context(), name, sink)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, host.ErrUnknownCommand) {
			code = http.StatusNotFound
		}
		c.JSON(code, errorResponse{Error: err.Error()})
		return
	}

	out := RunResponse{
		Command: name,
		Outcome: string(res.Outcome),
		Phase:   string(res.Phase),
		Lines:   rec.Lines(),
		Errors:  res.Messages(),
	}
	if res.RunID != uuid.Nil {
		out.RunID = res.RunID.String()
	}
	if res.Target != nil {
		out.Target = res.Target.String()
	}
	if res.Uploaded != nil {
		out.Files = res.Uploaded.Files
		out.Location = res.Uploaded.Location
		out.Paths = res.Uploaded.Paths
	}
	c.JSON(http.StatusOK, out)
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	logger := zerolog.Ctx(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving command bridge")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Errorf("serving: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Errorf("shutting down: %w", err)
		}
		return nil
	}
}
