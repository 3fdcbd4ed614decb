package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"document-chat/internal/models"
	"document-chat/internal/wire"
)

// Client talks to the chat server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient uses a client without timeout,
// since answers stream for as long as the model writes.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

type chatMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

type chatRequest struct {
	ConversationID string        `json:"conversationId"`
	DocumentID     string        `json:"documentId"`
	Messages       []chatMessage `json:"messages"`
}

// Chat sends query and feeds the streamed answer into sink. The server loads the
// history from its transcript. An answer that finishes with an error, or a stream cut
// before its finish frame, returns models.ErrUpstream after sink received
// Done("error").
func (c *Client) Chat(ctx context.Context, conversationID, documentID, query string, sink models.Sink) error {
	body, err := json.Marshal(chatRequest{
		ConversationID: conversationID,
		DocumentID:     documentID,
		Messages:       []chatMessage{{Role: models.RoleUser, Content: query}},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	return Consume(resp.Body, sink)
}

// Consume decodes wire frames from r into sink until the finish frame.
func Consume(r io.Reader, sink models.Sink) error {
	reader := wire.NewReader(r)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			_ = sink.Done(models.FinishReasonError)
			return fmt.Errorf("%w: stream ended without finish frame", models.ErrUpstream)
		}
		if err != nil {
			_ = sink.Done(models.FinishReasonError)
			return fmt.Errorf("%w: %w", models.ErrUpstream, err)
		}

		switch frame.Kind {
		case wire.KindText:
			if err := sink.Fragment(frame.Text); err != nil {
				return err
			}
		case wire.KindFinish:
			if err := sink.Done(frame.FinishReason); err != nil {
				return err
			}
			if frame.FinishReason == models.FinishReasonError {
				return fmt.Errorf("%w: answer failed", models.ErrUpstream)
			}
			log.Debug().Str("finish_reason", frame.FinishReason).Msg("Stream finished")
			return nil
		}
	}
}

// Messages fetches the transcript of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/conversations/"+url.PathEscape(conversationID)+"/messages", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return body.Messages, nil
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return fmt.Errorf("request failed: %d, %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("request failed: %d, %s", resp.StatusCode, string(raw))
}
