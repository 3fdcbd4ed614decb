package transcript

import (
	"context"
	"fmt"
	"sync"

	"document-chat/internal/models"
)

// Store is an append-only, per-conversation message log.
type Store interface {
	Append(ctx context.Context, msg models.Message) error
	List(ctx context.Context, conversationID string) ([]models.Message, error)
}

// Memory keeps transcripts in process memory. It is used with the chromem backend
// and in tests.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string][]models.Message
	ids           map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string][]models.Message),
		ids:           make(map[string]struct{}),
	}
}

func (m *Memory) Append(_ context.Context, msg models.Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: invalid role %q", models.ErrTranscript, msg.Role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[msg.ID]; ok {
		return fmt.Errorf("%w: duplicate message id %s", models.ErrTranscript, msg.ID)
	}
	m.ids[msg.ID] = struct{}{}
	m.conversations[msg.ConversationID] = append(m.conversations[msg.ConversationID], msg)
	return nil
}

// List returns a copy of the conversation in append order.
func (m *Memory) List(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.conversations[conversationID]
	return append([]models.Message(nil), msgs...), nil
}
