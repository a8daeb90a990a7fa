package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bozzyboy/nano-director-5/internal/autosave"
	"github.com/bozzyboy/nano-director-5/internal/director"
	"github.com/bozzyboy/nano-director-5/internal/logging"
	"github.com/bozzyboy/nano-director-5/internal/persistence"
	"github.com/bozzyboy/nano-director-5/internal/services"
)

// Pipeline requests hold the connection open until the provider answers, so
// the write timeout is sized for a full remaster batch.
const pipelineWriteTimeout = 15 * time.Minute

// RequestIDHeader carries the correlation identifier on every response.
const RequestIDHeader = "X-Request-ID"

// Config wires the server to its collaborators. Director and Router are
// required; Autosave and Logs are optional.
type Config struct {
	Bind     string
	Director *director.Orchestrator
	Router   *persistence.Router
	Autosave *autosave.Coordinator
	Logs     *logging.StreamHub
	Logger   *slog.Logger
}

// Server hosts the HTTP API.
type Server struct {
	bind     string
	director *director.Orchestrator
	router   *persistence.Router
	autosave *autosave.Coordinator
	logs     *logging.StreamHub
	logger   *slog.Logger
	engine   *gin.Engine
	stream   *streamHub
	server   *http.Server

	mu          sync.Mutex
	listener    net.Listener
	unsubscribe func()
}

// New builds the gin engine and subscribes to orchestrator events.
func New(cfg Config) (*Server, error) {
	if cfg.Director == nil {
		return nil, errors.New("api: director is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("api: persistence router is required")
	}
	s := &Server{
		bind:     strings.TrimSpace(cfg.Bind),
		director: cfg.Director,
		router:   cfg.Router,
		autosave: cfg.Autosave,
		logs:     cfg.Logs,
		logger:   logging.NewComponentLogger(cfg.Logger, "api"),
		stream:   newStreamHub(),
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestContext())
	s.routes()
	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      pipelineWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.unsubscribe = s.director.Subscribe(s.onEvent)
	if s.logs != nil {
		s.logs.AddSink(s.stream)
	}
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured bind address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api: bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.bind, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address once Start succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down and detaches from the orchestrator.
func (s *Server) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.stream.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.GET("/project", s.handleProject)
	api.PUT("/project/idea", s.handleIdea)
	api.PUT("/project/settings", s.handleSettings)
	api.PUT("/project/style", s.handleStyle)
	api.PUT("/project/shots/:index", s.handleEditShot)

	api.POST("/generate", s.handleGenerate)
	api.POST("/select/:index", s.handleSelect)
	api.POST("/direct", s.handleDirect)
	api.GET("/history", s.handleHistory)
	api.POST("/history/:id/restore", s.handleRestore)
	api.GET("/panels/:index/prompt", s.handlePanelPrompt)
	api.POST("/editor/render", s.handleEditorRender)

	api.POST("/save", s.handleSave)
	api.POST("/load/local", s.handleLoadLocal)
	api.POST("/load/import", s.handleImport)
	api.GET("/cloud/files", s.handleCloudFiles)
	api.POST("/cloud/files/:id/load", s.handleCloudLoad)
	api.POST("/export", s.handleExport)

	api.GET("/logs", s.handleLogs)
	api.GET("/events", s.handleEvents)
}

// requestContext tags each request with a correlation identifier, reusing
// the caller's when present.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		ctx := services.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	}
}

// onEvent runs outside the orchestrator lock.
func (s *Server) onEvent(evt director.Event) {
	if evt.Type == director.EventStateChanged && s.autosave != nil {
		s.autosave.Notify(s.director.Snapshot())
	}
	s.stream.broadcast(StreamMessage{Type: "event", Event: &evt})
}
