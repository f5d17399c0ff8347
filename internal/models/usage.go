package models

import "time"

// UsageRecord is the per-turn accounting row. Rows are only ever inserted.
type UsageRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UserID          int64     `gorm:"index" json:"user_id"`
	UserRole        string    `json:"user_role"`
	SessionID       string    `json:"session_id"`
	ConversationID  int64     `json:"conversation_id"`
	InferenceSystem string    `json:"inference_system"`
	ModelName       string    `json:"model_name"`
	InputTokens     int       `json:"input_tokens"`
	OutputTokens    int       `json:"output_tokens"`
	TotalTokens     int       `json:"total_tokens"`
	ToolUsed        bool      `json:"tool_used"`
	ToolName        string    `json:"tool_name"`
	Status          string    `json:"status"`
	LatencyMS       int64     `json:"latency_ms"`
	RequestType     string    `gorm:"default:chat" json:"request_type"`
}

func (UsageRecord) TableName() string { return "usage_logs" }
