package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/order-analyzer/constants"
	"github.com/joseph-ayodele/order-analyzer/internal/entity"
	"github.com/joseph-ayodele/order-analyzer/internal/uploads"
)

// ServiceName is reported by the index and health endpoints.
const ServiceName = "PDF Analyzer API"

// Analyzer runs the analysis pipeline on one document.
type Analyzer interface {
	Analyze(ctx context.Context, pdf []byte) (*entity.AnalysisResult, error)
}

// Exporter renders a result as a spreadsheet.
type Exporter interface {
	ResultXLSX(ctx context.Context, res *entity.AnalysisResult) ([]byte, error)
}

// RunLister lists recent analysis runs.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]*entity.AnalysisRun, error)
}

// HealthFunc returns nil while the service can serve analyses.
type HealthFunc func() error

type Config struct {
	CORSOrigin     string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	cfg      Config
	analyzer Analyzer
	spool    *uploads.Spool
	exporter Exporter
	runs     RunLister
	health   HealthFunc
	logger   *slog.Logger
}

type Option func(*Server)

func WithExporter(e Exporter) Option   { return func(s *Server) { s.exporter = e } }
func WithRunLister(r RunLister) Option { return func(s *Server) { s.runs = r } }
func WithHealth(h HealthFunc) Option   { return func(s *Server) { s.health = h } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(cfg Config, analyzer Analyzer, spool *uploads.Spool, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.MaxUploadBytesDefault
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}
	s := &Server{cfg: cfg, analyzer: analyzer, spool: spool, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the gin engine with every route and middleware installed.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = s.cfg.MaxUploadBytes
	r.Use(gin.Recovery(), requestID(), requestLogger(s.logger))
	if mw := corsPolicy(s.cfg.CORSOrigin); mw != nil {
		r.Use(mw)
	}

	r.GET("/", s.index)
	api := r.Group("/api")
	{
		api.GET("/health", s.healthCheck)
		api.POST("/analyze", s.analyze)
		api.GET("/runs", s.listRuns)
	}

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed", "details": c.Request.Method + " " + c.Request.URL.Path})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "details": c.Request.URL.Path})
	})
	return r
}

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": ServiceName,
		"version": "1.0.0",
		"endpoints": gin.H{
			"health":  "/api/health",
			"analyze": "/api/analyze (POST)",
			"runs":    "/api/runs",
		},
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	if s.health != nil {
		if err := s.health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": ServiceName, "details": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": ServiceName})
}
