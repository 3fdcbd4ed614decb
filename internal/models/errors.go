package models

import "errors"

var (
	// ErrEmbedding means the query embedding could not be produced. Fatal for the turn.
	ErrEmbedding = errors.New("embedding failed")
	// ErrStoreUnavailable means the chunk store could not be queried.
	ErrStoreUnavailable = errors.New("chunk store unavailable")
	// ErrUpstream covers completion transport and model failures.
	ErrUpstream = errors.New("upstream completion failed")
	// ErrTranscript means a transcript write failed.
	ErrTranscript = errors.New("transcript write failed")
	// ErrInvalidTransition is returned when a turn is moved along an edge its state machine does not have.
	ErrInvalidTransition = errors.New("invalid turn transition")
)
