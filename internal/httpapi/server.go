// Package httpapi exposes the retrieval service over HTTP.
package httpapi

import (
	"context"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"docqa/internal/domain"
	"docqa/internal/extract"
	"docqa/internal/lexical"
	"docqa/internal/logging"
	"docqa/internal/service"
)

// DefaultMaxUploadBytes caps multipart uploads.
const DefaultMaxUploadBytes = 25 << 20

// multipartEnvelope is the room left for form headers and boundaries on top
// of the file itself.
const multipartEnvelope = 16 << 10

// Backend is the part of service.Service the handlers use.
type Backend interface {
	IngestUpload(ctx context.Context, name string, data []byte, progress extract.Progress) (service.Ingest, error)
	Session(id string) (*lexical.Session, error)
	Summary(sessionID string) (string, error)
	DeleteSession(id string) bool
	SearchSession(sessionID, question string, topK int) ([]domain.ScoredChunk, error)
	AskSession(ctx context.Context, sessionID, question string) (service.Answer, error)
	PublishSession(ctx context.Context, sessionID, namespace, userID string) (int, error)
	PublishDocument(ctx context.Context, req service.PublishRequest) (int, error)
	DeleteDocument(ctx context.Context, namespace, docID string) error
	SearchNamespace(ctx context.Context, namespace, question string, topK int) ([]domain.RAGMatch, error)
	AskNamespace(ctx context.Context, namespace, question string) (service.Answer, error)
}

// Options configures the HTTP layer.
type Options struct {
	MaxUploadBytes int64
	// RequestTimeout bounds every request's context. Zero disables it.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Handler holds the route handlers.
type Handler struct {
	svc       Backend
	maxUpload int64
	log       *slog.Logger
}

// New creates the route handlers.
func New(svc Backend, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{svc: svc, maxUpload: opts.MaxUploadBytes, log: logging.OrDiscard(opts.Logger)}
}

// NewEcho builds an echo instance with middleware and all routes.
func NewEcho(h *Handler, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= 500 {
				level = slog.LevelError
			}
			h.log.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	if opts.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: opts.RequestTimeout}))
	}
	h.Register(e)
	return e
}

// Register mounts the routes on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.health)
	e.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))

	// Oversized bodies are refused before the multipart form is parsed.
	limit := fmt.Sprintf("%dK", (h.maxUpload+multipartEnvelope+1023)>>10)
	s := e.Group("/sessions", middleware.BodyLimit(limit))
	s.POST("", h.createSession)
	s.GET("/:id", h.getSession)
	s.DELETE("/:id", h.deleteSession)
	s.POST("/:id/search", h.searchSession)
	s.POST("/:id/ask", h.askSession)
	s.POST("/:id/publish", h.publishSession)

	n := e.Group("/namespaces/:ns")
	n.POST("/documents", h.publishDocument)
	n.DELETE("/documents/:doc", h.deleteDocument)
	n.POST("/search", h.searchNamespace)
	n.POST("/ask", h.askNamespace)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
