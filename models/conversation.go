package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation tracks a chat session.
type Conversation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title     string             `bson:"title,omitempty" json:"title,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Message is a single turn in a conversation. Agent turns carry the agent
// name so the full multi-agent exchange can be replayed.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role           string             `bson:"role" json:"role"` // "user", "assistant", "agent", "system"
	Agent          string             `bson:"agent,omitempty" json:"agent,omitempty"`
	Content        string             `bson:"content" json:"content"`
	Citations      []Citation         `bson:"citations,omitempty" json:"citations,omitempty"`
	Traces         []AgentTrace       `bson:"traces,omitempty" json:"traces,omitempty"`
	TokenCost      int                `bson:"token_cost,omitempty" json:"token_cost,omitempty"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
}

// ChatRequest is the /chat/send payload.
type ChatRequest struct {
	Message        string `json:"message" binding:"required,min=1,max=2000"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the final orchestrator answer plus the agent traces
// accumulated while producing it.
type ChatResponse struct {
	Reply          string       `json:"reply"`
	Status         string       `json:"status"`
	Attempts       int          `json:"attempts"`
	Citations      []Citation   `json:"citations,omitempty"`
	Traces         []AgentTrace `json:"traces,omitempty"`
	ConversationID string       `json:"conversation_id"`
	Timestamp      time.Time    `json:"timestamp"`
}
