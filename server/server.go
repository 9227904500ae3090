// Package server exposes the knowledge base, the document manager and chat history over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Abraxas-365/coursekb/chathistory"
	"github.com/Abraxas-365/coursekb/docmanager"
	"github.com/Abraxas-365/coursekb/ingest"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/Abraxas-365/coursekb/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Server struct {
	kb      *kb.KnowledgeBase
	docs    *docmanager.Manager
	ingest  *ingest.Processor
	history *chathistory.Memory

	log           logger.Logger
	corsOrigins   []string
	presignExpiry time.Duration
	maxMemory     int64
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCORSOrigins enables CORS for the given origins
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithPresignExpiry sets the lifetime of download redirects for stores that presign
func WithPresignExpiry(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.presignExpiry = d
		}
	}
}

// WithMultipartMemory caps the in-memory part of multipart uploads; the rest spills to disk
func WithMultipartMemory(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxMemory = n
		}
	}
}

func New(knowledge *kb.KnowledgeBase, docs *docmanager.Manager, proc *ingest.Processor, history *chathistory.Memory, opts ...Option) *Server {
	s := &Server{
		kb:            knowledge,
		docs:          docs,
		ingest:        proc,
		history:       history,
		log:           logger.Default(),
		presignExpiry: 15 * time.Minute,
		maxMemory:     32 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.maxMemory
	r.Use(gin.Recovery(), s.requestLogger())

	if len(s.corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.corsOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", s.health)

	api := r.Group("/api/v1")
	api.POST("/ask", s.ask)
	api.POST("/ask/stream", s.askStream)

	docs := api.Group("/documents")
	docs.GET("", s.listDocuments)
	docs.POST("", s.uploadDocuments)
	docs.GET("/:id", s.getDocument)
	docs.GET("/:id/file", s.downloadDocument)
	docs.DELETE("/:id", s.deleteDocument)

	api.GET("/batches/:id", s.getBatch)

	conv := api.Group("/conversations")
	conv.POST("", s.createConversation)
	conv.GET("/:id/messages", s.listMessages)
	conv.POST("/:id/messages", s.postMessage)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Run serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
