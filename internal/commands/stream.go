package commands

import (
	"errors"
	"strings"
	"time"

	"document-chat/internal/models"
)

var ErrStreamClosed = errors.New("stream already finished")

// StreamState follows one streamed assistant answer. Every fragment is appended to the
// buffer, the buffer is re-parsed from the end of the last dispatched command, and
// commands that further input can no longer change are dispatched. It implements
// models.Sink and is not safe for concurrent use; fragments arrive in order from a
// single reader.
type StreamState struct {
	dispatcher *Dispatcher
	buf        strings.Builder
	offset     int
	dispatched []models.Command
	message    models.Message
	done       bool
	finish     string
}

func NewStreamState(dispatcher *Dispatcher, conversationID string) *StreamState {
	return &StreamState{
		dispatcher: dispatcher,
		message: models.Message{
			ConversationID: conversationID,
			Role:           models.RoleAssistant,
		},
	}
}

func (s *StreamState) Fragment(text string) error {
	if s.done {
		return ErrStreamClosed
	}
	s.buf.WriteString(text)
	s.flush(false)
	return nil
}

// Done dispatches whatever is left in the buffer and seals the assistant message.
// Answers that finished with an error keep their text but dispatch nothing further.
func (s *StreamState) Done(finishReason string) error {
	if s.done {
		return ErrStreamClosed
	}
	if finishReason != models.FinishReasonError {
		s.flush(true)
	}
	s.done = true
	s.finish = finishReason
	s.message.Content = s.buf.String()
	s.message.CreatedAt = time.Now()
	return nil
}

func (s *StreamState) flush(final bool) {
	text := s.buf.String()
	var ready []models.Command
	for _, l := range Scan(text, s.offset) {
		if !final && !Confirmed(text, l) {
			break
		}
		ready = append(ready, l.Command)
		s.offset = l.End
	}
	if len(ready) == 0 {
		return
	}
	s.dispatched = append(s.dispatched, ready...)
	s.dispatcher.Dispatch(ready)
}

// Text returns everything received so far.
func (s *StreamState) Text() string {
	return s.buf.String()
}

// Commands returns the commands dispatched so far, in order.
func (s *StreamState) Commands() []models.Command {
	return append([]models.Command(nil), s.dispatched...)
}

// Message returns the finished assistant message. ok is false until Done was called.
func (s *StreamState) Message() (msg models.Message, ok bool) {
	return s.message, s.done
}

// FinishReason is empty while the answer is still streaming.
func (s *StreamState) FinishReason() string {
	return s.finish
}
