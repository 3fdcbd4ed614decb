package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"document-chat/internal/helper"
	"document-chat/internal/models"
	"document-chat/internal/transcript"
)

// ErrInvalidRequest is returned for turns that cannot start from the given input.
var ErrInvalidRequest = errors.New("invalid chat request")

// Streamer produces the model answer as ordered fragments.
type Streamer interface {
	Stream(ctx context.Context, prompt models.Prompt) iter.Seq2[string, error]
}

type RAG struct {
	retriever  *Retriever
	streamer   Streamer
	transcript transcript.Store
	topK       int
	now        func() time.Time
}

func NewRAG(retriever *Retriever, streamer Streamer, store transcript.Store, topK int) *RAG {
	return &RAG{
		retriever:  retriever,
		streamer:   streamer,
		transcript: store,
		topK:       topK,
		now:        time.Now,
	}
}

// TurnRequest is one user question. A nil History is loaded from the transcript.
type TurnRequest struct {
	ConversationID string
	DocumentID     string
	Query          string
	History        []models.Message
}

type TurnResult struct {
	Turn *Turn
	// Message is the persisted assistant message, empty when the turn failed.
	Message models.Message
	Context models.RetrievedContext
}

// Chat runs one turn: it stores the question, retrieves context, streams the answer
// into sink and stores the full answer once streaming ends.
//
// Errors before the turn starts (bad request, the question could not be stored) are
// returned with a nil result and nothing written to sink. Once started, sink always
// receives exactly one Done. A store failure yields a canned answer and a completed,
// degraded turn. Embedding and upstream failures send a generic failure message, end
// with finish reason "error", and persist nothing for the assistant.
func (r *RAG) Chat(ctx context.Context, req TurnRequest, sink models.Sink) (*TurnResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidRequest)
	}
	if req.ConversationID == "" || req.DocumentID == "" {
		return nil, fmt.Errorf("%w: conversation and document are required", ErrInvalidRequest)
	}

	history := req.History
	if history == nil {
		var err error
		history, err = r.transcript.List(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	userMsg, err := r.newMessage(req.ConversationID, models.RoleUser, req.Query)
	if err != nil {
		return nil, err
	}
	if err := r.transcript.Append(ctx, userMsg); err != nil {
		return nil, err
	}

	turnID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	turn := NewTurn(turnID, req.ConversationID, req.DocumentID)
	result := &TurnResult{Turn: turn}
	if err := turn.Transition(TurnQuerySent); err != nil {
		return nil, err
	}

	if err := turn.Transition(TurnRetrieving); err != nil {
		return nil, err
	}
	query, err := r.retriever.Embed(ctx, req.Query)
	if err != nil {
		return result, r.fail(turn, sink, err)
	}
	retrieved, err := r.retriever.Retrieve(ctx, req.DocumentID, query, r.topK)
	if errors.Is(err, models.ErrStoreUnavailable) {
		turn.logger.Error().Err(err).Msg("Chunk store unavailable, answering degraded")
		return r.degrade(ctx, turn, result, sink)
	}
	if err != nil {
		return result, r.fail(turn, sink, err)
	}
	result.Context = retrieved

	prompt := AssemblePrompt(history, retrieved, req.Query)
	if err := turn.Transition(TurnPromptAssembled); err != nil {
		return result, err
	}

	if err := turn.Transition(TurnStreaming); err != nil {
		return result, err
	}
	var answer strings.Builder
	for fragment, err := range r.streamer.Stream(ctx, prompt) {
		if err != nil {
			return result, r.fail(turn, sink, err)
		}
		if err := turn.Transition(TurnStreaming); err != nil {
			return result, err
		}
		answer.WriteString(fragment)
		if err := sink.Fragment(fragment); err != nil {
			// the reader is gone, stop generating
			return result, r.fail(turn, sink, fmt.Errorf("%w: %w", models.ErrUpstream, err))
		}
	}
	if err := ctx.Err(); err != nil {
		return result, r.fail(turn, sink, fmt.Errorf("%w: %w", models.ErrUpstream, err))
	}

	return result, r.complete(ctx, turn, result, sink, answer.String())
}

// degrade answers with the canned store-unavailable message and completes the turn.
func (r *RAG) degrade(ctx context.Context, turn *Turn, result *TurnResult, sink models.Sink) (*TurnResult, error) {
	turn.Degraded = true
	if err := sink.Fragment(models.StoreUnavailableAnswer); err != nil {
		turn.logger.Warn().Err(err).Msg("Failed to send degraded answer")
	}
	return result, r.complete(ctx, turn, result, sink, models.StoreUnavailableAnswer)
}

// complete persists the full answer, finishes the stream and completes the turn. The
// answer has already reached the user, so a transcript failure is returned but the
// turn still completes.
func (r *RAG) complete(ctx context.Context, turn *Turn, result *TurnResult, sink models.Sink, content string) error {
	msg, err := r.newMessage(turn.ConversationID, models.RoleAssistant, content)
	if err != nil {
		return err
	}
	appendErr := r.transcript.Append(ctx, msg)
	if appendErr != nil {
		turn.logger.Error().Err(appendErr).Msg("Failed to persist answer")
	} else {
		result.Message = msg
	}

	if err := sink.Done(models.FinishReasonStop); err != nil {
		turn.logger.Warn().Err(err).Msg("Failed to finish stream")
	}
	if err := turn.Transition(TurnCompleted); err != nil {
		return err
	}
	turn.logger.Info().
		Bool("degraded", turn.Degraded).
		Int("fragments", turn.Fragments()).
		Int("answer_len", len(content)).
		Msg("Turn completed")
	return appendErr
}

// fail discards the partial answer and reports a generic failure to the user.
func (r *RAG) fail(turn *Turn, sink models.Sink, cause error) error {
	if err := turn.Transition(TurnFailed); err != nil {
		return errors.Join(cause, err)
	}
	turn.logger.Error().Err(cause).Int("fragments", turn.Fragments()).Msg("Turn failed")

	if err := sink.Fragment(models.TurnFailedAnswer); err != nil {
		log.Debug().Err(err).Msg("Failed to send failure message")
	}
	if err := sink.Done(models.FinishReasonError); err != nil {
		log.Debug().Err(err).Msg("Failed to finish stream")
	}
	return cause
}

func (r *RAG) newMessage(conversationID string, role models.Role, content string) (models.Message, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return models.Message{}, err
	}
	return models.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      r.now(),
	}, nil
}

// Tee forwards every fragment and the finish to each sink in order. The first error
// is returned after all sinks were called.
func Tee(sinks ...models.Sink) models.Sink {
	return teeSink(sinks)
}

type teeSink []models.Sink

func (t teeSink) Fragment(text string) error {
	var first error
	for _, s := range t {
		if err := s.Fragment(text); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t teeSink) Done(finishReason string) error {
	var first error
	for _, s := range t {
		if err := s.Done(finishReason); err != nil && first == nil {
			first = err
		}
	}
	return first
}
