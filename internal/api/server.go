// Package api exposes scans over HTTP: the public gin API and the chi admin
// router for metrics and profiling.
package api

import (
	"net/http"

	"fractalscan/app"
	"fractalscan/internal"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// Options tunes request limits
type Options struct {
	MaxBodyBytes int64
	MaxBatchSize int
	MaxListLimit int
}

// DefaultOptions returns the limits used when none are configured
func DefaultOptions() Options {
	return Options{MaxBodyBytes: 4 << 20, MaxBatchSize: 100, MaxListLimit: 500}
}

// Server represents the public scan API
type Server struct {
	router  *gin.Engine
	service *app.ScanService
	hub     *SSEHub
	logger  *internal.Logger
	opts    Options
}

// NewServer wires routes for the service. hub may be nil to disable streaming;
// publishing records to the hub is left to the caller.
func NewServer(service *app.ScanService, hub *SSEHub, logger *internal.Logger, opts Options) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	defaults := DefaultOptions()
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = defaults.MaxBatchSize
	}
	if opts.MaxListLimit <= 0 {
		opts.MaxListLimit = defaults.MaxListLimit
	}

	s := &Server{
		router:  gin.New(),
		service: service,
		hub:     hub,
		logger:  logger.With("api"),
		opts:    opts,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(Metrics())
	s.router.Use(RequestID())
	s.router.Use(Logger(s.logger.Zerolog()))
	s.router.Use(MaxBodySize(s.opts.MaxBodyBytes))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/fractal_scan", s.handleScan)
	s.router.POST("/fractal_scan/batch", s.handleBatch)
	s.router.POST("/fractal_scan/report", s.handleScanReport)

	scans := s.router.Group("/scans")
	{
		scans.GET("", s.handleListScans)
		if s.hub != nil {
			scans.GET("/stream", s.hub.HandleSSE)
		}
		scans.GET("/:id", s.handleGetScan)
		scans.GET("/:id/report", s.handleGetReport)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found", "code": "NOT_FOUND"})
	})
}
