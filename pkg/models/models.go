// Package models defines the shared data types used across the gateway:
// conversation messages, token usage, cost records and the /ask wire shapes.
package models

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message written by the caller.
	RoleUser Role = "user"

	// RoleAssistant marks a message produced by a language model.
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. Messages are immutable once
// written; ordering is insertion order and duplicates are permitted.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
	SessionID string `json:"sessionId"`
}

// NewMessage builds a Message stamped with the current time.
func NewMessage(role Role, content, sessionID string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		SessionID: sessionID,
	}
}

// TokenUsage is the normalized token count block returned by providers.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// UsageRecord is one persisted record of token consumption and cost for a
// single completed exchange. Records are append-only and owned exclusively
// by the cost ledger.
type UsageRecord struct {
	Timestamp    int64   `json:"timestamp"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	InputCost    float64 `json:"inputCost"`
	OutputCost   float64 `json:"outputCost"`
	TotalCost    float64 `json:"totalCost"`
	Message      string  `json:"message"`
	SessionID    string  `json:"sessionId"`
	Model        string  `json:"model"`
}

// ModelTotals aggregates usage counters for one wallet or one model.
// Derived data: always equal to the fold of the underlying UsageRecords.
type ModelTotals struct {
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Cost         float64 `json:"cost"`
}

// AskRequest is the JSON body of POST /ask. In multipart requests the same
// fields arrive as form values alongside an optional markdown file part.
type AskRequest struct {
	Message       string         `json:"message"`
	Model         string         `json:"model,omitempty"`
	SessionID     string         `json:"sessionId,omitempty"`
	WalletAddress string         `json:"walletAddress,omitempty"`
	Context       string         `json:"context,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

// AskResponse is the JSON body returned by POST /ask. Output is empty when
// both providers failed; TxHash is the zero placeholder when the mint side
// effect degraded.
type AskResponse struct {
	Output       string      `json:"output,omitempty"`
	Model        string      `json:"model"`
	Network      string      `json:"network"`
	TxHash       string      `json:"txHash"`
	ExplorerLink string      `json:"explorerLink"`
	SessionID    string      `json:"sessionId"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}
