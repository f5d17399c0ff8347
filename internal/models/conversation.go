package models

import "time"

type Message struct {
	ID        int64     `json:"id"`
	ConvID    int64     `json:"conversation_id"`
	TurnID    string    `json:"turn_id,omitempty"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Message roles stored in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"canvas_user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one user message and the assistant reply to it. Status and the
// pending tool are kept so a replayed turn answers exactly as it did first.
type Turn struct {
	ConvID      int64          `json:"conversation_id"`
	TurnID      string         `json:"turn_id"`
	User        Message        `json:"user"`
	Assistant   Message        `json:"assistant"`
	Status      string         `json:"status,omitempty"`
	PendingTool string         `json:"pending_tool,omitempty"`
	PendingArgs map[string]any `json:"pending_args,omitempty"`
}
