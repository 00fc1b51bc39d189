// Package ai is the model collaborator boundary: one call per user turn
// against a tool-calling chat model, streaming text as it arrives and
// returning the tool calls the model emitted.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"legaldocgo/internal/config"
	"legaldocgo/internal/models"
	"legaldocgo/internal/prompts"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// UpstreamError wraps a transport or API failure of the model collaborator.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("model upstream: %v", e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// ToolCall is one structured invocation emitted by the model, in emission
// order. Arguments is the raw JSON argument object.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// TurnResult is the fully-consumed model response for one turn.
type TurnResult struct {
	Text      string
	ToolCalls []ToolCall
}

// Collaborator performs exactly one model round trip per user turn. onText is
// invoked with each text delta as it arrives, before the response is
// complete.
type Collaborator interface {
	StreamTurn(ctx context.Context, history []models.Message, onText func(string) error) (*TurnResult, error)
}

type einoCollaborator struct {
	chatModel model.ToolCallingChatModel
}

// NewCollaborator builds a provider-backed collaborator with the document
// tools bound. Supported providers: openai, gemini, claude.
func NewCollaborator(ctx context.Context, provider, modelType string, cfg *config.Config) (Collaborator, error) {
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}
	if modelType == "" {
		modelType = provCfg.Model
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelType,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelType,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelType,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s model: %w", provider, err)
	}

	bound, err := chatModel.WithTools(ToolInfos())
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}
	return &einoCollaborator{chatModel: bound}, nil
}

func (c *einoCollaborator) StreamTurn(ctx context.Context, history []models.Message, onText func(string) error) (*TurnResult, error) {
	streamReader, err := c.chatModel.Stream(ctx, convertHistory(history))
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer streamReader.Close()

	var chunks []*schema.Message
	for {
		chunk, err := streamReader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &UpstreamError{Err: err}
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && onText != nil {
			if err := onText(chunk.Content); err != nil {
				return nil, err
			}
		}
	}
	if len(chunks) == 0 {
		return &TurnResult{}, nil
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	result := &TurnResult{Text: full.Content}
	for _, tc := range full.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return result, nil
}

func convertHistory(history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(prompts.System))
	for _, msg := range history {
		switch msg.Role {
		case models.RoleModel:
			messages = append(messages, schema.AssistantMessage(msg.Text(), nil))
		default:
			messages = append(messages, schema.UserMessage(msg.Text()))
		}
	}
	return messages
}
