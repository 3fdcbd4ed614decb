package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-chat/internal/commands"
	"document-chat/internal/models"
	"document-chat/internal/viewer"
	"document-chat/internal/wire"
)

// fakeServer answers /api/chat with a fixed list of fragments.
func fakeServer(t *testing.T, fragments []string, finish string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/chat", func(c *gin.Context) {
		var body chatRequest
		if err := c.ShouldBindJSON(&body); err != nil || len(body.Messages) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad body"})
			return
		}
		w := wire.NewWriter(c.Writer)
		for _, f := range fragments {
			_ = w.Fragment(f)
		}
		if finish != "" {
			_ = w.Done(finish)
		}
	})
	r.GET("/api/conversations/:id/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"messages": []models.Message{{ID: "m1", ConversationID: c.Param("id"), Role: models.RoleUser, Content: "q"}}})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestChat_DrivesViewer(t *testing.T) {
	srv := fakeServer(t, []string{"It's described on page 4.\nHIGH", "LIGHT: 4,100,200,500,250\n"}, models.FinishReasonStop)

	state := viewer.NewState()
	stream := commands.NewStreamState(commands.NewDispatcher(state), "conv-1")

	err := New(srv.URL, nil).Chat(context.Background(), "conv-1", "doc-1", "What is a virus?", stream)
	require.NoError(t, err)

	snap := state.Snapshot()
	assert.Equal(t, 4, snap.Page)
	assert.Equal(t, []models.Highlight{{Page: 4, BBox: models.BoundingBox{X0: 100, Y0: 200, X1: 500, Y1: 250}}}, snap.Highlights)

	msg, ok := stream.Message()
	require.True(t, ok)
	assert.Equal(t, "It's described on page 4.\nHIGHLIGHT: 4,100,200,500,250\n", msg.Content)
}

func TestChat_ErrorFinish(t *testing.T) {
	srv := fakeServer(t, []string{models.TurnFailedAnswer}, models.FinishReasonError)

	stream := commands.NewStreamState(commands.NewDispatcher(viewer.NewState()), "conv-1")
	err := New(srv.URL, nil).Chat(context.Background(), "conv-1", "doc-1", "q", stream)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Equal(t, models.FinishReasonError, stream.FinishReason())
}

func TestChat_MissingFinishFrame(t *testing.T) {
	srv := fakeServer(t, []string{"NAVIGATE: 1"}, "")

	state := viewer.NewState()
	stream := commands.NewStreamState(commands.NewDispatcher(state), "conv-1")
	err := New(srv.URL, nil).Chat(context.Background(), "conv-1", "doc-1", "q", stream)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.Equal(t, models.FinishReasonError, stream.FinishReason())
	assert.Empty(t, stream.Commands(), "an unfinished command is never dispatched")
}

func TestChat_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"last message must be a user message"}`)
	}))
	defer srv.Close()

	err := New(srv.URL+"/", nil).Chat(context.Background(), "conv-1", "doc-1", "q", commands.NewStreamState(commands.NewDispatcher(viewer.NewState()), "conv-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "last message must be a user message")
}

func TestConsume_MalformedFrame(t *testing.T) {
	stream := commands.NewStreamState(commands.NewDispatcher(viewer.NewState()), "conv-1")
	err := Consume(strings.NewReader("0:\"ok\"\nx:oops\n"), stream)
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.ErrorIs(t, err, wire.ErrMalformedFrame)
	assert.Equal(t, "ok", stream.Text())
}

func TestConsume_EmptyBody(t *testing.T) {
	stream := commands.NewStreamState(commands.NewDispatcher(viewer.NewState()), "conv-1")
	err := Consume(io.LimitReader(strings.NewReader(""), 0), stream)
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestMessages(t *testing.T) {
	srv := fakeServer(t, nil, models.FinishReasonStop)

	msgs, err := New(srv.URL, nil).Messages(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "conv-1", msgs[0].ConversationID)
}
