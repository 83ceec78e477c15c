package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yangwenmai/reviewer/internal/logger"
	"github.com/yangwenmai/reviewer/internal/model"
)

// defaultMaxBody is the request body limit when none is configured (25 MB).
const defaultMaxBody int64 = 25 << 20

// Options configures the HTTP surface.
type Options struct {
	Logger         *logger.Logger
	CORSOrigins    []string
	JWTSecret      string
	DevUserID      string
	UploadDir      string
	MaxUploadBytes int64
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	svc    Generator
	opts   Options
	log    *logger.Logger
	engine *gin.Engine
}

// New creates a new API server.
func New(svc Generator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxBody
	}
	s := &Server{svc: svc, opts: opts, log: opts.Logger.With("component", "api")}
	s.routes()
	return s
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.log), corsMiddleware(s.opts.CORSOrigins))

	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "Reviewer Backend is running") })
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	protected := r.Group("/")
	protected.Use(s.requireAuth())
	protected.POST("/feature/:type", s.handleFeature)
	protected.GET("/reviewers/:type", s.handleListReviewers)
	protected.GET("/reviewers/:type/:id", s.handleGetReviewer)

	r.NoRoute(func(c *gin.Context) { writeError(c, http.StatusNotFound, "Route not found") })
	s.engine = r
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware allows the configured origins. An empty list or "*" allows
// any origin without credentials.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// RequestLogger logs one line per request; 5xx at error and 4xx at warn level.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if uid := c.GetString(userIDKey); uid != "" {
			fields = append(fields, "user_id", uid)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(c *gin.Context, status int, v interface{}) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNoContent), errors.Is(err, model.ErrConversion):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnknownFeature), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
