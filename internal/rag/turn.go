package rag

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-chat/internal/models"
)

type TurnState int

const (
	TurnIdle TurnState = iota
	TurnQuerySent
	TurnRetrieving
	TurnPromptAssembled
	TurnStreaming
	TurnCompleted
	TurnFailed
)

var turnStateNames = map[TurnState]string{
	TurnIdle:            "idle",
	TurnQuerySent:       "query_sent",
	TurnRetrieving:      "retrieving",
	TurnPromptAssembled: "prompt_assembled",
	TurnStreaming:       "streaming",
	TurnCompleted:       "completed",
	TurnFailed:          "failed",
}

func (s TurnState) String() string {
	if name, ok := turnStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TurnState(%d)", int(s))
}

// Retrieving goes straight to Completed only for the degraded store-unavailable answer.
// Streaming loops on itself once per fragment.
var turnTransitions = map[TurnState][]TurnState{
	TurnIdle:            {TurnQuerySent},
	TurnQuerySent:       {TurnRetrieving},
	TurnRetrieving:      {TurnPromptAssembled, TurnCompleted, TurnFailed},
	TurnPromptAssembled: {TurnStreaming},
	TurnStreaming:       {TurnStreaming, TurnCompleted, TurnFailed},
}

// Turn tracks one question and answer through the pipeline.
type Turn struct {
	ID             string
	ConversationID string
	DocumentID     string
	Degraded       bool

	state     TurnState
	fragments int
	logger    zerolog.Logger
}

func NewTurn(id, conversationID, documentID string) *Turn {
	return &Turn{
		ID:             id,
		ConversationID: conversationID,
		DocumentID:     documentID,
		logger: log.With().
			Str("turn_id", id).
			Str("conversation_id", conversationID).
			Logger(),
	}
}

func (t *Turn) State() TurnState {
	return t.state
}

// Terminal reports whether the turn has completed or failed.
func (t *Turn) Terminal() bool {
	return t.state == TurnCompleted || t.state == TurnFailed
}

// Fragments is the number of Streaming self-transitions.
func (t *Turn) Fragments() int {
	return t.fragments
}

// Transition moves the turn to the next state. Edges not in the state machine
// return models.ErrInvalidTransition and leave the state unchanged.
func (t *Turn) Transition(to TurnState) error {
	if !slices.Contains(turnTransitions[t.state], to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, t.state, to)
	}
	if t.state == TurnStreaming && to == TurnStreaming {
		t.fragments++
		t.logger.Trace().Int("fragments", t.fragments).Msg("Fragment received")
		return nil
	}
	t.logger.Debug().Stringer("from", t.state).Stringer("to", to).Msg("Turn transition")
	t.state = to
	return nil
}
