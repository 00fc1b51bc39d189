package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocgo/internal/session"
	"legaldocgo/internal/stream"
	"legaldocgo/internal/worker"
)

const turnTimeout = 2 * time.Minute

// TurnRunner queues turns for execution; the manager in internal/worker is
// the production implementation.
type TurnRunner interface {
	Submit(worker.TurnRequest) error
	Purge(conversationID string)
}

// Handler wires HTTP routes to the conversation registry and the per
// conversation turn runner.
type Handler struct {
	registry *session.Registry
	workers  TurnRunner
}

// NewHandler constructs a Handler instance.
func NewHandler(registry *session.Registry, workers TurnRunner) *Handler {
	return &Handler{
		registry: registry,
		workers:  workers,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/conversations", h.createConversation)
	conv := api.Group("/conversations/:id")
	conv.DELETE("", h.deleteConversation)
	conv.GET("/history", h.getHistory)
	conv.POST("/chat", h.chat)
	conv.GET("/document", h.getDocument)
}

// CORSMiddleware reflects origins from the configured allow list. An empty
// list allows any origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			_, ok := allowed[strings.TrimRight(origin, "/")]
			if ok || len(allowed) == 0 {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) createConversation(c *gin.Context) {
	id := h.registry.Create(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"conversation_id": id})
}

func (h *Handler) deleteConversation(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Delete(c.Request.Context(), id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	h.workers.Purge(id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) getHistory(c *gin.Context) {
	id := c.Param("id")
	history, err := h.registry.History(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": id,
		"history":         history,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chat(c *gin.Context) {
	id := c.Param("id")
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if !h.registry.Exists(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	enc, err := stream.NewEncoder(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	turnCtx, cancel := context.WithTimeout(c.Request.Context(), turnTimeout)
	defer cancel()

	err = h.workers.Submit(worker.TurnRequest{
		Context:        turnCtx,
		ConversationID: id,
		UserText:       message,
		Emit:           enc.Emit,
	})
	if err != nil {
		// The turn failed before any frame was written, so a JSON status
		// is still possible once the SSE headers are replaced.
		c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		switch {
		case errors.Is(err, worker.ErrBusy):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "conversation is busy, please retry"})
		case errors.Is(err, session.ErrNotFound), errors.Is(err, worker.ErrStopped):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) getDocument(c *gin.Context) {
	id := c.Param("id")
	doc, ok, err := h.registry.Document(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no document generated yet"})
		return
	}
	if c.Query("format") == "data" {
		c.JSON(http.StatusOK, gin.H{
			"conversation_id": id,
			"document_type":   doc.Type,
			"data":            doc.Data,
			"generated_at":    doc.GeneratedAt,
		})
		return
	}
	c.Data(http.StatusOK, doc.ArtifactMIME, doc.Artifact)
}
