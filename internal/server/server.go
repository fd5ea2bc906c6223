package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/urduscribe/internal/core/ai/session"
	"github.com/guiyumin/urduscribe/internal/core/ai/transcriber"
	"github.com/guiyumin/urduscribe/internal/core/config"
	"github.com/guiyumin/urduscribe/internal/core/i18n"
	"github.com/guiyumin/urduscribe/internal/core/version"
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// Server is the HTTP server for urduscribe
type Server struct {
	port       int
	cfg        *config.Config
	backend    transcriber.Backend
	normalizer session.Normalizer
	store      *Store
	engine     *gin.Engine

	mu      sync.Mutex // guards server and stopped
	server  *http.Server
	stopped bool
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, backend transcriber.Backend, normalizer session.Normalizer) *Server {
	return &Server{
		port:       cfg.Server.Port,
		cfg:        cfg,
		backend:    backend,
		normalizer: normalizer,
		store:      NewStore(cfg.Server.SessionTTL),
	}
}

// Handler builds the routes. It is safe to call once per Server.
func (s *Server) Handler() http.Handler {
	if s.engine != nil {
		return s.engine
	}

	s.engine = gin.New()

	// Add middleware
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())

	// Web page
	s.engine.GET("/", s.handleIndex)

	// API routes
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/config", s.handleGetConfig)
	api.GET("/i18n", s.handleI18n)
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:id", s.handleGetSession)
	api.POST("/sessions/:id/transcribe", s.handleTranscribeSSE)
	api.GET("/sessions/:id/ws", s.handleTranscribeWS)
	api.GET("/sessions/:id/transcript", s.handleTranscript)
	api.DELETE("/sessions/:id", s.handleDeleteSession)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code:    404,
			Data:    nil,
			Message: "not found",
		})
	})

	return s.engine
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if !config.Exists() {
		log.Printf("No config file found, using defaults (run: urduscribe init)")
	}

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return http.ErrServerClosed
	}
	s.store.Start()
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Minute, // large uploads
		WriteTimeout: 0,               // transcripts stream for as long as the model runs
		IdleTimeout:  120 * time.Second,
	}
	s.server = srv
	s.mu.Unlock()

	log.Printf("Starting urduscribe server on port %d", s.port)
	log.Printf("Backend: %s", s.backend.Name())

	return srv.ListenAndServe()
}

// Stop gracefully shuts down the server. It may be called more than once,
// and before or concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.server
	s.mu.Unlock()

	s.store.Stop()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Middleware

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Handlers

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":  "ok",
			"version": version.Version,
		},
		Message: "everything is good",
	})
}

// handleGetConfig reports non-secret settings. The API key is only
// reported as present or absent.
func (s *Server) handleGetConfig(c *gin.Context) {
	data := gin.H{
		"language":            s.cfg.Language,
		"backend":             s.cfg.Backend,
		"backend_name":        s.backend.Name(),
		"streaming":           s.backend.Streaming(),
		"transcript_language": s.cfg.TranscriptLanguage,
		"max_upload_mb":       s.cfg.Server.MaxUploadMB,
		"extensions":          supportedExtensions(),
	}

	switch s.cfg.Backend {
	case config.BackendRemote:
		data["provider"] = s.cfg.Remote.Provider
		data["model"] = s.cfg.Remote.Model
		data["credential_present"] = s.cfg.APIKey() != ""
	default:
		if opts, err := transcriber.Resolve(s.cfg.LocalASR); err == nil {
			data["model"] = opts.Model
			data["device"] = opts.Device
			data["precision"] = opts.Precision
		} else {
			data["model"] = s.cfg.LocalASR.Model
			data["model_error"] = err.Error()
		}
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    data,
		Message: "config retrieved",
	})
}

func (s *Server) handleI18n(c *gin.Context) {
	lang := c.Query("lang")
	if lang == "" {
		lang = s.cfg.Language
	}

	t := i18n.GetTranslations(lang)

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"language": lang,
			"web":      t.Web,
			"status":   t.Status,
		},
		Message: "translations retrieved",
	})
}

func supportedExtensions() []string {
	out := make([]string, 0, len(mediaExtensions))
	for _, ext := range mediaExtensions {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	return out
}
