package llmservice

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-chat/internal/config"
	"document-chat/internal/models"
)

// Client streams chat completions from a langchaingo model.
type Client struct {
	llm         llms.Model
	temperature float64
}

// NewClient creates the chat model for the configured provider
func NewClient(llmConfig *config.LLMConfig) (*Client, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": llmConfig.Provider,
		"base_url": llmConfig.BaseURL,
		"model":    llmConfig.Model,
	}).Msg("Creating chat client")

	var (
		llm llms.Model
		err error
	)
	switch llmConfig.Provider {
	case config.ProviderOpenAI:
		llm, err = openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	case config.ProviderOllama:
		llm, err = ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s", llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}
	return NewClientWithModel(llm, llmConfig.Temperature), nil
}

func NewClientWithModel(llm llms.Model, temperature float64) *Client {
	return &Client{llm: llm, temperature: temperature}
}

// Messages converts a prompt into langchaingo messages: the system prompt first, then the turns.
func Messages(prompt models.Prompt) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(prompt.Turns)+1)
	if prompt.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, prompt.System))
	}
	for _, turn := range prompt.Turns {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, turn.Content))
	}
	return msgs
}

// Stream yields the model output fragments in generation order. The sequence ends
// after the last fragment; a transport or model failure is yielded once as an error
// wrapping models.ErrUpstream. Stopping the iteration or cancelling ctx aborts the
// upstream request.
func (c *Client) Stream(ctx context.Context, prompt models.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		fragments := make(chan string)
		result := make(chan error, 1)

		go func() {
			defer close(fragments)
			opts := []llms.CallOption{
				llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
					if err := ctx.Err(); err != nil {
						return err
					}
					if len(chunk) == 0 {
						return nil
					}
					select {
					case fragments <- string(chunk):
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}),
			}
			if c.temperature > 0 {
				opts = append(opts, llms.WithTemperature(c.temperature))
			}
			_, err := c.llm.GenerateContent(ctx, Messages(prompt), opts...)
			result <- err
		}()

		for fragment := range fragments {
			if !yield(fragment, nil) {
				cancel()
				for range fragments {
				}
				return
			}
		}

		if err := <-result; err != nil {
			yield("", fmt.Errorf("%w: %w", models.ErrUpstream, err))
		}
	}
}
