package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/models"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/queue"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/session"
	"github.com/ahmmed-fouad/real-estate-agent/pkg/whatsapp"
)

// handleWebhookVerify answers the gateway's subscription handshake.
func (s *Server) handleWebhookVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == s.cfg.WebhookVerifyTok {
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// handleWebhook parses the inbound payload and enqueues one job per message.
// The gateway gets a 200 as long as the payload was parseable: processing
// failures are the queue's business, and a non-200 only triggers redelivery.
func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	messages, err := whatsapp.ParseWebhook(body, s.agentID)
	if err != nil {
		s.logger.Warn("Webhook payload rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	enqueued := 0
	for i := range messages {
		job := &queue.Job{ID: messages[i].MessageID, Message: messages[i]}
		switch err := s.queue.Enqueue(c.Request.Context(), job); {
		case err == nil:
			enqueued++
		case errors.Is(err, queue.ErrDuplicateJob):
			// Redelivery; already handled.
		default:
			s.logger.Error("Webhook enqueue failed", "message_id", job.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"enqueued": enqueued})
}

func (s *Server) handleQueueStats(c *gin.Context) {
	stats, err := s.queue.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleDLQRetry(c *gin.Context) {
	jobID := c.Param("jobId")
	err := s.queue.RetryFromDLQ(c.Request.Context(), jobID)
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not in DLQ"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"requeued": jobID})
	}
}

func (s *Server) handleResume(c *gin.Context) {
	if err := s.resumer.ResumeAIControl(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumed": c.Param("id")})
}

// ingestDocumentRequest carries a knowledge document plus its raw content for
// chunking and embedding.
type ingestDocumentRequest struct {
	Document models.KnowledgeDocument `json:"document"`
	Content  string                   `json:"content"`
}

func (s *Server) handleIngestProperty(c *gin.Context) {
	var property models.PropertyDocument
	if err := c.ShouldBindJSON(&property); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid property"})
		return
	}
	if property.ID == "" || property.AgentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and agentId are required"})
		return
	}
	if err := s.ingestor.IngestProperty(c.Request.Context(), &property); err != nil {
		s.logger.Error("Property ingestion failed", "property_id", property.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingested": property.ID})
}

func (s *Server) handleIngestDocument(c *gin.Context) {
	var req ingestDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document"})
		return
	}
	if req.Document.ID == "" || req.Document.AgentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id and agentId are required"})
		return
	}
	if err := s.ingestor.IngestKnowledgeDocument(c.Request.Context(), &req.Document, req.Content); err != nil {
		s.logger.Error("Document ingestion failed", "document_id", req.Document.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingested": req.Document.ID})
}

func (s *Server) handleCloseSession(c *gin.Context) {
	err := s.sessions.Close(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, session.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"closed": c.Param("id")})
	}
}
