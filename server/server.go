package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	secondbrain "github.com/DhruvTemura/second-brain-ai"
	"github.com/DhruvTemura/second-brain-ai/chat"
	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	// UserHeader carries the caller's user ID.
	UserHeader = "X-User-ID"

	// DefaultUser is used when a request carries no UserHeader.
	DefaultUser = "default-user"

	shutdownTimeout = 10 * time.Second
)

// ErrBrainRequired is returned when no Brain is provided.
var ErrBrainRequired = errors.New("brain required")

// Brain is the subset of secondbrain.Brain the HTTP API drives.
type Brain interface {
	SubmitText(ctx context.Context, userID string, note secondbrain.TextNote) (*secondbrain.Submission, error)
	SubmitFile(ctx context.Context, userID string, upload secondbrain.FileUpload) (*secondbrain.Submission, error)
	GetJob(ctx context.Context, id core.ID) (*core.Job, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]*core.JobSummary, error)
	Chat(ctx context.Context, query, userID string) (*chat.Answer, error)
}

var _ Brain = (*secondbrain.Brain)(nil)

// Server is the HTTP API.
type Server struct {
	echo        *echo.Echo
	brain       Brain
	defaultUser string
	maxUpload   int64
	logger      *slog.Logger
	started     time.Time
}

// Option configures a Server.
type Option func(*Server) error

// WithDefaultUser sets the user assumed when UserHeader is absent.
func WithDefaultUser(user string) Option {
	return func(s *Server) error {
		if user == "" {
			return errors.New("default user must not be empty")
		}
		s.defaultUser = user
		return nil
	}
}

// WithMaxUploadBytes bounds multipart request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) error {
		if n <= 0 {
			return errors.New("upload limit must be positive")
		}
		s.maxUpload = n
		return nil
	}
}

// WithLogger sets the logger. A nil logger selects slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "server")
		return nil
	}
}

// New creates the HTTP API for brain.
func New(brain Brain, opts ...Option) (*Server, error) {
	if brain == nil {
		return nil, ErrBrainRequired
	}

	s := &Server{
		brain:       brain,
		defaultUser: DefaultUser,
		maxUpload:   secondbrain.DefaultMaxUploadBytes,
		logger:      slog.Default().With("component", "server"),
		started:     time.Now(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.echo = s.routes()
	return s, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				s.logger.Warn("request failed", append(attrs, "err", v.Error)...)
			} else {
				s.logger.Debug("request", attrs...)
			}
			return nil
		},
	}))

	e.GET("/health", s.health)

	api := e.Group("/api")
	api.POST("/ingest/text", s.ingestText)
	api.POST("/ingest/file", s.ingestFile, middleware.BodyLimit(bodyLimit(s.maxUpload)))
	api.GET("/jobs/:id", s.getJob)
	api.GET("/jobs", s.listJobs)
	api.POST("/chat", s.chat)
	return e
}

// Handler returns the API as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// userID returns the caller's user ID.
func (s *Server) userID(c echo.Context) string {
	if user := c.Request().Header.Get(UserHeader); user != "" {
		return user
	}
	return s.defaultUser
}

// bodyLimit renders n bytes in the form middleware.BodyLimit expects,
// leaving room for multipart framing.
func bodyLimit(n int64) string {
	const framing = 1 << 20
	return formatBytes(n + framing)
}
