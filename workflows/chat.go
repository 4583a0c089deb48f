package workflows

import (
	"context"

	"github.com/NegusBas/In/models"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
)

// Store is the transactional data layer the workflows delegate to
type Store interface {
	ListConversationsWithMessages(ctx context.Context) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error)
	CreateConversation(ctx context.Context, title string, temperature float64) (models.Conversation, error)
	CreateMessage(ctx context.Context, conversationID int64, content string, role models.Role) (models.Message, error)
	ConversationExists(ctx context.Context, id int64) (bool, error)
	Ping(ctx context.Context) error
}

// ChatWorkflows runs conversation and message creation as DBOS workflows.
// Reads pass straight through to the store.
type ChatWorkflows struct {
	store   Store
	dbosCtx dbos.DBOSContext
}

// NewChatWorkflows creates a new ChatWorkflows instance
func NewChatWorkflows(store Store, dbosCtx dbos.DBOSContext) *ChatWorkflows {
	return &ChatWorkflows{
		store:   store,
		dbosCtx: dbosCtx,
	}
}

// Register registers every workflow with DBOS. It must run before dbos.Launch.
func (w *ChatWorkflows) Register() {
	dbos.RegisterWorkflow(w.dbosCtx, w.CreateConversationWorkflow)
	dbos.RegisterWorkflow(w.dbosCtx, w.CreateMessageWorkflow)
}

// CreateConversationInput contains the input for the CreateConversation workflow
type CreateConversationInput struct {
	Title       string
	Temperature float64
}

// CreateMessageInput contains the input for the CreateMessage workflow
type CreateMessageInput struct {
	ConversationID int64
	Content        string
	Role           models.Role
}

// CreateConversationWorkflow creates a new conversation durably
func (w *ChatWorkflows) CreateConversationWorkflow(ctx dbos.DBOSContext, input CreateConversationInput) (models.Conversation, error) {
	return dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Conversation, error) {
		return w.store.CreateConversation(stepCtx, input.Title, input.Temperature)
	})
}

// CreateMessageWorkflow stores a message and touches its conversation in one
// step; the store wraps both writes in a single transaction.
func (w *ChatWorkflows) CreateMessageWorkflow(ctx dbos.DBOSContext, input CreateMessageInput) (models.Message, error) {
	return dbos.RunAsStep(ctx, func(stepCtx context.Context) (models.Message, error) {
		return w.store.CreateMessage(stepCtx, input.ConversationID, input.Content, input.Role)
	})
}

// ListConversationsWithMessages reads through to the store
func (w *ChatWorkflows) ListConversationsWithMessages(ctx context.Context) ([]models.Conversation, error) {
	return w.store.ListConversationsWithMessages(ctx)
}

// ListMessages reads through to the store
func (w *ChatWorkflows) ListMessages(ctx context.Context, conversationID int64) ([]models.Message, error) {
	return w.store.ListMessages(ctx, conversationID)
}

// Ping checks the application database
func (w *ChatWorkflows) Ping(ctx context.Context) error {
	return w.store.Ping(ctx)
}

// CreateConversation validates the input, then runs the durable workflow.
// Validation happens up front so domain errors reach the caller unchanged.
func (w *ChatWorkflows) CreateConversation(ctx context.Context, title string, temperature float64) (models.Conversation, error) {
	if err := models.ValidateTemperature(temperature); err != nil {
		return models.Conversation{}, err
	}

	handle, err := dbos.RunWorkflow(w.dbosCtx, w.CreateConversationWorkflow, CreateConversationInput{
		Title:       title,
		Temperature: temperature,
	})
	if err != nil {
		return models.Conversation{}, err
	}
	return handle.GetResult()
}

// CreateMessage checks the role and the conversation before starting the
// durable workflow.
func (w *ChatWorkflows) CreateMessage(ctx context.Context, conversationID int64, content string, role models.Role) (models.Message, error) {
	if !role.Valid() {
		return models.Message{}, models.ErrInvalidRole
	}
	exists, err := w.store.ConversationExists(ctx, conversationID)
	if err != nil {
		return models.Message{}, err
	}
	if !exists {
		return models.Message{}, models.ErrConversationNotFound
	}

	handle, err := dbos.RunWorkflow(w.dbosCtx, w.CreateMessageWorkflow, CreateMessageInput{
		ConversationID: conversationID,
		Content:        content,
		Role:           role,
	})
	if err != nil {
		return models.Message{}, err
	}
	return handle.GetResult()
}
