// Package api exposes the webhook inlet, admin operations, health, and
// metrics over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/queue"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/version"
)

// JobQueue is the queue capability the API needs.
type JobQueue interface {
	Enqueue(ctx context.Context, job *queue.Job) error
	Stats(ctx context.Context) (*queue.Stats, error)
	RetryFromDLQ(ctx context.Context, jobID string) error
}

// SessionCloser closes sessions by id.
type SessionCloser interface {
	Close(ctx context.Context, sessionID string) error
}

// Resumer flips an escalated conversation back to AI control.
type Resumer interface {
	ResumeAIControl(ctx context.Context, conversationID string) error
}

// Ingestor embeds and stores properties and knowledge documents.
type Ingestor interface {
	IngestProperty(ctx context.Context, p *models.PropertyDocument) error
	IngestKnowledgeDocument(ctx context.Context, d *models.KnowledgeDocument, content string) error
}

// HealthChecker reports a subsystem's health document.
type HealthChecker func(ctx context.Context) (map[string]any, error)

// Server is the HTTP surface of the conversation core.
type Server struct {
	cfg      *config.ServerConfig
	queue    JobQueue
	sessions SessionCloser
	resumer  Resumer
	ingestor Ingestor
	agentID  string
	health   map[string]HealthChecker
	logger   *slog.Logger
	engine   *gin.Engine
}

// NewServer builds the router. agentID identifies the tenant this webhook
// deployment serves. ingestor may be nil (ingestion endpoints disabled).
func NewServer(cfg *config.ServerConfig, q JobQueue, sessions SessionCloser, resumer Resumer, ingestor Ingestor, agentID string, health map[string]HealthChecker) *Server {
	s := &Server{
		cfg:      cfg,
		queue:    q,
		sessions: sessions,
		resumer:  resumer,
		ingestor: ingestor,
		agentID:  agentID,
		health:   health,
		logger:   slog.Default().With("component", "api"),
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.GET("/webhook/whatsapp", s.handleWebhookVerify)
	engine.POST("/webhook/whatsapp", s.handleWebhook)

	admin := engine.Group("/admin")
	admin.GET("/queue/stats", s.handleQueueStats)
	admin.POST("/queue/dlq/:jobId/retry", s.handleDLQRetry)
	admin.POST("/conversations/:id/resume", s.handleResume)
	admin.POST("/sessions/:id/close", s.handleCloseSession)
	if ingestor != nil {
		admin.POST("/properties", s.handleIngestProperty)
		admin.POST("/documents", s.handleIngestDocument)
	}

	s.engine = engine
	return s
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "port", s.cfg.Port)
	return s.engine.Run(":" + s.cfg.Port)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	out := gin.H{"status": "healthy", "build": version.Info()}
	code := http.StatusOK
	for name, check := range s.health {
		doc, err := check(ctx)
		out[name] = doc
		if err != nil {
			out["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, out)
}

// requestLogger is a minimal structured access log.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		slog.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status())
	}
}
