package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/NegusBas/In/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const welcomeMessage = "Welcome to the Messaging System API"

// Store is the data access the handlers depend on. It is satisfied by
// *store.Store and by the durable workflow wrapper.
type Store interface {
	ListConversationsWithMessages(ctx context.Context) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
	CreateConversation(ctx context.Context, title string, temperature float64) (models.Conversation, error)
	CreateMessage(ctx context.Context, conversationID int64, content string, role models.Role) (models.Message, error)
	Ping(ctx context.Context) error
}

// ChatHandler handles conversation and message HTTP requests
type ChatHandler struct {
	store   Store
	logger  *zap.Logger
	durable bool
}

// NewChatHandler creates a new chat handler. durable is reported by the
// health check and tells whether writes go through DBOS workflows.
func NewChatHandler(store Store, logger *zap.Logger, durable bool) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		store:   store,
		logger:  logger,
		durable: durable,
	}
}

// Root greets API clients
func (h *ChatHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, models.RootResponse{Message: welcomeMessage})
}

// Health reports whether the database is reachable
func (h *ChatHandler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "dbos": h.durable})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "dbos": h.durable})
}

// ListConversations lists all conversations with their messages
func (h *ChatHandler) ListConversations(c *gin.Context) {
	conversations, err := h.store.ListConversationsWithMessages(c.Request.Context())
	if err != nil {
		h.fail(c, "Failed to list conversations", err)
		return
	}

	h.logger.Debug("Retrieved conversations", zap.Int("count", len(conversations)))
	c.JSON(http.StatusOK, conversations)
}

// GetMessages retrieves all messages for a conversation
func (h *ChatHandler) GetMessages(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation ID"})
		return
	}

	messages, err := h.store.ListMessages(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get messages", err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// CreateConversation creates a new conversation
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := models.ValidateTemperature(*req.Temperature); err != nil {
		h.fail(c, "Invalid temperature", err)
		return
	}

	conv, err := h.store.CreateConversation(c.Request.Context(), *req.Title, *req.Temperature)
	if err != nil {
		h.fail(c, "Failed to create conversation", err)
		return
	}

	h.logger.Info("Conversation created", zap.Int64("conversation_id", conv.ID))
	c.JSON(http.StatusOK, conv)
}

// CreateMessage appends a message to an existing conversation
func (h *ChatHandler) CreateMessage(c *gin.Context) {
	var req models.CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	role, err := models.ParseRole(*req.Role)
	if err != nil {
		h.fail(c, "Invalid role", err)
		return
	}

	msg, err := h.store.CreateMessage(c.Request.Context(), *req.ConversationID, *req.Content, role)
	if err != nil {
		h.fail(c, "Failed to create message", err)
		return
	}

	h.logger.Info("Message created",
		zap.Int64("conversation_id", msg.ConversationID),
		zap.Int64("message_id", msg.ID))
	c.JSON(http.StatusOK, msg)
}

// fail maps domain errors to client responses and everything else to a 500
func (h *ChatHandler) fail(c *gin.Context, what string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidTemperature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Temperature must be between 0 and 2"})
	case errors.Is(err, models.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be either 'user' or 'assistant'"})
	case errors.Is(err, models.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	default:
		h.logger.Error(what,
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
