package server

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/models"
	"document-chat/internal/rag"
	"document-chat/internal/transcript"
)

type stubStore struct {
	err error
}

func (s stubStore) SearchChunks(_ context.Context, documentID string, _ []float32, _ int) ([]models.ScoredChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.ScoredChunk{{Chunk: models.Chunk{ID: "c4", DocumentID: documentID, PageNumber: 4, Text: "A virus is..."}}}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubStreamer struct {
	fragments []string
	err       error
}

func (s stubStreamer) Stream(context.Context, models.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

func newTestServer(store rag.ChunkStore, streamer rag.Streamer) (*Server, *transcript.Memory) {
	memory := transcript.NewMemory()
	pipeline := rag.NewRAG(rag.NewRetriever(store, stubEmbedder{}), streamer, memory, 5)
	return New(pipeline, memory, false), memory
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestChat_StreamsWireFrames(t *testing.T) {
	s, memory := newTestServer(stubStore{}, stubStreamer{fragments: []string{"It's \"described\" on page 4.\n", "HIGHLIGHT: 4,100,200,500,250\n"}})

	w := post(t, s, `{"conversationId":"conv-1","documentId":"doc-1","messages":[{"role":"user","content":"What is a virus?"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Header().Get(StreamHeader))
	assert.Equal(t, "0:\"It's \\\"described\\\" on page 4.\\n\"\n"+
		"0:\"HIGHLIGHT: 4,100,200,500,250\\n\"\n"+
		"d:{\"finishReason\":\"stop\"}\n", w.Body.String())

	msgs, _ := memory.List(context.Background(), "conv-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "It's \"described\" on page 4.\nHIGHLIGHT: 4,100,200,500,250\n", msgs[1].Content)
}

func TestChat_UpstreamFailure(t *testing.T) {
	s, _ := newTestServer(stubStore{}, stubStreamer{fragments: []string{"part"}, err: models.ErrUpstream})

	w := post(t, s, `{"conversationId":"conv-1","documentId":"doc-1","messages":[{"role":"user","content":"q"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `0:"part"`, lines[0])
	assert.Equal(t, `d:{"finishReason":"error"}`, lines[2])
}

func TestChat_StoreUnavailable(t *testing.T) {
	s, _ := newTestServer(stubStore{err: errors.New("down")}, stubStreamer{})

	w := post(t, s, `{"conversationId":"conv-1","documentId":"doc-1","messages":[{"role":"user","content":"q"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `d:{"finishReason":"stop"}`)
}

func TestChat_HistoryFromBody(t *testing.T) {
	s, memory := newTestServer(stubStore{}, stubStreamer{fragments: []string{"ok"}})

	w := post(t, s, `{"conversationId":"conv-1","documentId":"doc-1","messages":[
		{"role":"user","content":"first"},{"role":"assistant","content":"answer"},{"role":"user","content":"second"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	msgs, _ := memory.List(context.Background(), "conv-1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Content)
}

func TestChat_BadRequests(t *testing.T) {
	s, _ := newTestServer(stubStore{}, stubStreamer{})

	for name, body := range map[string]string{
		"not json":          `{`,
		"missing document":  `{"conversationId":"c","messages":[{"role":"user","content":"q"}]}`,
		"no messages":       `{"conversationId":"c","documentId":"d","messages":[]}`,
		"last is assistant": `{"conversationId":"c","documentId":"d","messages":[{"role":"assistant","content":"a"}]}`,
		"unknown role":      `{"conversationId":"c","documentId":"d","messages":[{"role":"tool","content":"x"},{"role":"user","content":"q"}]}`,
		"empty question":    `{"conversationId":"c","documentId":"d","messages":[{"role":"user","content":"  "}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := post(t, s, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, w.Header().Get(StreamHeader))
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestMessagesAndTranscript(t *testing.T) {
	s, _ := newTestServer(stubStore{}, stubStreamer{fragments: []string{"See page 4.\nNAVIGATE: 4\n"}})
	require.Equal(t, http.StatusOK, post(t, s, `{"conversationId":"conv-1","documentId":"doc-1","messages":[{"role":"user","content":"q"}]}`).Code)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/messages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, models.RoleAssistant, body.Messages[1].Role)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/transcript", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<p>See page 4.</p>")
	assert.NotContains(t, w.Body.String(), "NAVIGATE")

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/conversations/unknown/messages", nil))
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(stubStore{}, stubStreamer{})
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
