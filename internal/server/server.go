package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"document-chat/internal/models"
	"document-chat/internal/rag"
	"document-chat/internal/render"
	"document-chat/internal/transcript"
	"document-chat/internal/wire"
)

// StreamHeader tells data-stream clients which framing the body uses.
const StreamHeader = "X-Vercel-AI-Data-Stream"

// Chatter runs a chat turn into a sink.
type Chatter interface {
	Chat(ctx context.Context, req rag.TurnRequest, sink models.Sink) (*rag.TurnResult, error)
}

type Server struct {
	router     *gin.Engine
	server     *http.Server
	chat       Chatter
	transcript transcript.Store
}

func New(chat Chatter, store transcript.Store, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:     gin.New(),
		chat:       chat,
		transcript: store,
	}
	s.router.Use(gin.Recovery(), requestIDMiddleware(), loggingMiddleware())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthCheck)

	api := s.router.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/conversations/:id/messages", s.handleMessages)
	api.GET("/conversations/:id/transcript", s.handleTranscript)
}

// Router returns the underlying gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves on addr until Stop is called. Chat responses stream for as long as
// the model writes, so no write timeout is set.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("Server starting")
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Shutting down server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

type chatRequest struct {
	ConversationID string        `json:"conversationId" binding:"required"`
	DocumentID     string        `json:"documentId" binding:"required"`
	Messages       []chatMessage `json:"messages" binding:"required,min=1"`
}

// turnRequest takes the last message as the question and the earlier ones as history.
// A single message leaves the history to the transcript store.
func (r chatRequest) turnRequest() (rag.TurnRequest, error) {
	last := r.Messages[len(r.Messages)-1]
	if models.Role(last.Role) != models.RoleUser {
		return rag.TurnRequest{}, errors.New("last message must be a user message")
	}
	req := rag.TurnRequest{
		ConversationID: r.ConversationID,
		DocumentID:     r.DocumentID,
		Query:          last.Content,
	}
	if len(r.Messages) > 1 {
		req.History = make([]models.Message, 0, len(r.Messages)-1)
		for _, m := range r.Messages[:len(r.Messages)-1] {
			role := models.Role(m.Role)
			if !role.Valid() {
				return rag.TurnRequest{}, fmt.Errorf("unsupported role %q", m.Role)
			}
			req.History = append(req.History, models.Message{ConversationID: r.ConversationID, Role: role, Content: m.Content})
		}
	}
	return req, nil
}

func (s *Server) handleChat(c *gin.Context) {
	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		errorResponse(c, http.StatusBadRequest, err)
		return
	}
	req, err := body.turnRequest()
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err)
		return
	}

	sink := &streamSink{c: c}
	result, err := s.chat.Chat(c.Request.Context(), req, sink)
	if result == nil && err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, rag.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		errorResponse(c, status, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).
			Str("conversation_id", req.ConversationID).
			Stringer("state", result.Turn.State()).
			Msg("Chat turn ended with error")
	}
}

func (s *Server) handleMessages(c *gin.Context) {
	msgs, err := s.transcript.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) handleTranscript(c *gin.Context) {
	id := c.Param("id")
	msgs, err := s.transcript.List(c.Request.Context(), id)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}
	page, err := render.Transcript(id, msgs)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func errorResponse(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// streamSink writes the stream headers on first use so a turn that never starts can
// still answer with a JSON error.
type streamSink struct {
	c      *gin.Context
	writer *wire.Writer
}

func (s *streamSink) start() *wire.Writer {
	if s.writer == nil {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set(StreamHeader, "v1")
		s.c.Status(http.StatusOK)
		s.writer = wire.NewWriter(s.c.Writer)
	}
	return s.writer
}

func (s *streamSink) Fragment(text string) error {
	return s.start().Fragment(text)
}

func (s *streamSink) Done(finishReason string) error {
	return s.start().Done(finishReason)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestID", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("request_id", c.GetString("requestID")).
			Str("method", c.Request.Method).
			Str("path", strings.TrimSuffix(c.FullPath(), "/")).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request")
	}
}
