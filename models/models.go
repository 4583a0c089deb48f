package models

import (
	"errors"
	"math"
	"time"
)

// Domain-level errors shared by the store and the HTTP handlers
var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrInvalidTemperature   = errors.New("chat: temperature must be between 0 and 2")
	ErrInvalidRole          = errors.New("chat: role must be either 'user' or 'assistant'")
)

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the allowed roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts raw input into a Role, rejecting anything else
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// ValidateTemperature checks the [0, 2] bound. NaN never passes.
func ValidateTemperature(t float64) error {
	if math.IsNaN(t) || t < MinTemperature || t > MaxTemperature {
		return ErrInvalidTemperature
	}
	return nil
}

// Conversation represents a chat conversation
type Conversation struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Temperature float64   `json:"temperature" db:"temperature"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
	Messages    []Message `json:"messages" db:"-"`
}

// Message represents a message in a conversation
type Message struct {
	ID             int64     `json:"id" db:"id"`
	ConversationID int64     `json:"conversation_id" db:"conversation_id"`
	Content        string    `json:"content" db:"content"`
	Role           Role      `json:"role" db:"role"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}

// CreateConversationRequest is the request body for creating a conversation
type CreateConversationRequest struct {
	Title       *string  `json:"title" binding:"required"`
	Temperature *float64 `json:"temperature" binding:"required"`
}

// CreateMessageRequest is the request body for creating a message
type CreateMessageRequest struct {
	ConversationID *int64  `json:"conversation_id" binding:"required"`
	Content        *string `json:"content" binding:"required"`
	Role           *string `json:"role" binding:"required"`
}

// RootResponse is returned by the API root
type RootResponse struct {
	Message string `json:"message"`
}
