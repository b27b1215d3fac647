package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/gg/gptr"
	einoOllama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoOpenAI "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/rbright/voxhook/internal/nlu"
)

// ChatOptions configures an eino chat-model backend.
type ChatOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

// Chat implements the language service on any eino chat model in JSON mode.
type Chat struct {
	model model.BaseChatModel
	name  string
}

var _ nlu.Service = (*Chat)(nil)

// NewChat wraps an existing chat model.
func NewChat(name string, m model.BaseChatModel) *Chat {
	return &Chat{model: m, name: name}
}

// NewOpenAI builds an OpenAI (or OpenAI-compatible) chat backend.
func NewOpenAI(ctx context.Context, opts ChatOptions) (*Chat, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	cfg := &einoOpenAI.ChatModelConfig{
		APIKey:      opts.APIKey,
		Model:       opts.Model,
		Temperature: gptr.Of(float32(opts.Temperature)),
		ResponseFormat: &einoOpenAI.ChatCompletionResponseFormat{
			Type: einoOpenAI.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	m, err := einoOpenAI.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create openai chat model: %w", err)
	}
	return NewChat("openai", m), nil
}

// NewOllama builds a chat backend on a local Ollama server.
func NewOllama(ctx context.Context, opts ChatOptions) (*Chat, error) {
	cfg := &einoOllama.ChatModelConfig{
		BaseURL: "http://127.0.0.1:11434",
		Model:   opts.Model,
		Options: &einoOllama.Options{Temperature: float32(opts.Temperature)},
	}
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	m, err := einoOllama.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model: %w", err)
	}
	return NewChat("ollama", m), nil
}

func (c *Chat) Classify(ctx context.Context, req nlu.ClassifyRequest) (nlu.Classification, error) {
	text, err := c.generate(ctx, classifyInstruction, classifyPrompt(req))
	if err != nil {
		return nlu.Classification{}, wrapServiceError(c.name+" classify", err)
	}
	return decodeClassification(text)
}

func (c *Chat) Extract(ctx context.Context, req nlu.ExtractRequest) (map[string]any, error) {
	text, err := c.generate(ctx, extractInstruction, extractPrompt(req))
	if err != nil {
		return nil, wrapServiceError(c.name+" extract", err)
	}
	return decodeFields(text)
}

func (c *Chat) generate(ctx context.Context, instruction, prompt string) (string, error) {
	msg, err := c.model.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: instruction},
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty message", nlu.ErrMalformedResponse)
	}
	return msg.Content, nil
}
