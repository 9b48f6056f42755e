// Package http is the HTTP adapter: it translates requests into service
// calls and service errors into status codes, nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/auth"
	"github.com/amitoj1996/fieldops-web/internal/ocr"
	"github.com/amitoj1996/fieldops-web/internal/report"
	"github.com/amitoj1996/fieldops-web/internal/service"
	"github.com/amitoj1996/fieldops-web/internal/storage"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	DefaultTenant string
	AllowOrigins  []string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:          "0.0.0.0",
		Port:          8080,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  60 * time.Second,
		DefaultTenant: "default",
	}
}

// Deps bundles everything the server serves.
type Deps struct {
	Tasks     service.TaskService
	Expenses  service.ExpenseService
	Products  service.ProductService
	Directory service.DirectoryService
	Reports   *report.Aggregator
	Excel     *report.ExcelWriter
	Issuer    storage.SASIssuer
	Analyzer  ocr.Analyzer

	// LocalBlobs is set only in local-storage mode; it enables the
	// /blobs endpoints backing the issued URLs.
	LocalBlobs *storage.LocalBlobStore

	JWTParser *auth.JWTParser
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// NewServer creates a new HTTP server wired to the given services.
func NewServer(config ServerConfig, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())
	router.Use(cors.New(corsConfig(config.AllowOrigins)))
	router.Use(auth.Middleware(deps.JWTParser, logger))

	s.setupRoutes(deps)
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", auth.ClientPrincipalHeader)
	return cfg
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Server) setupRoutes(deps Deps) {
	h := NewHandlers(deps, s.config.DefaultTenant, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.Use(auth.RequireAuthenticated())
	{
		api.GET("/tasks", h.GetTasks)
		api.POST("/tasks", auth.RequireAdmin(), h.CreateTask)
		api.POST("/tasks/update", auth.RequireAdmin(), h.UpdateTask)
		api.POST("/tasks/delete", auth.RequireAdmin(), h.DeleteTask)
		api.POST("/tasks/checkin", h.CheckIn)
		api.POST("/tasks/checkout", h.CheckOut)
		api.GET("/tasks/events", h.ListEvents)

		api.GET("/receipts/sas", h.UploadSAS)
		api.GET("/receipts/readSas", h.ReadSAS)
		api.POST("/receipts/ocr", h.IngestReceipt)

		api.POST("/expenses/finalize", h.FinalizeExpense)
		api.GET("/expenses", h.ListExpenses)
		api.GET("/expenses/byTask", h.ListExpensesByTask)
		api.GET("/expenses/pending", auth.RequireAdmin(), h.ListPendingExpenses)
		api.POST("/expenses/approve", auth.RequireAdmin(), h.ApproveExpense)
		api.POST("/expenses/reject", auth.RequireAdmin(), h.RejectExpense)

		api.GET("/report/csv", auth.RequireAdmin(), h.ReportCSV)
		api.GET("/report/xlsx", auth.RequireAdmin(), h.ReportXLSX)

		api.GET("/products", h.ListProducts)
		api.POST("/products", auth.RequireAdmin(), h.CreateProduct)
		api.POST("/products/delete", auth.RequireAdmin(), h.DeleteProduct)

		api.GET("/assignees", h.ListAssignees)
		api.POST("/users/seen", h.RecordSeen)
	}

	if deps.LocalBlobs != nil {
		s.router.PUT("/blobs/*blobPath", h.PutBlob)
		s.router.GET("/blobs/*blobPath", h.GetBlob)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
