package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a transcript may hold.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one append-only entry of a conversation transcript.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Prompt is the input of the completion interface.
type Prompt struct {
	System string
	Turns  []Message
}

// Sink receives the fragments of a streamed answer in generation order,
// followed by exactly one Done call.
type Sink interface {
	Fragment(text string) error
	Done(finishReason string) error
}

const (
	FinishReasonStop  = "stop"
	FinishReasonError = "error"
)
