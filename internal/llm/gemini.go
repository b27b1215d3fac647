package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/gg/gptr"
	"google.golang.org/genai"

	"github.com/rbright/voxhook/internal/nlu"
)

// GeminiOptions configures the Gemini backend.
type GeminiOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	LanguageCode string
}

// Gemini implements classification, extraction, and audio transcription on the Gemini API.
type Gemini struct {
	client       *genai.Client
	model        string
	temperature  float32
	languageCode string
}

var _ nlu.Service = (*Gemini)(nil)

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if opts.Model == "" {
		return nil, errors.New("gemini model is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{
		client:       client,
		model:        opts.Model,
		temperature:  float32(opts.Temperature),
		languageCode: opts.LanguageCode,
	}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Classify(ctx context.Context, req nlu.ClassifyRequest) (nlu.Classification, error) {
	text, err := g.generateJSON(ctx, classifyInstruction, classifyPrompt(req), classifySchema())
	if err != nil {
		return nlu.Classification{}, wrapServiceError("gemini classify", err)
	}
	return decodeClassification(text)
}

func (g *Gemini) Extract(ctx context.Context, req nlu.ExtractRequest) (map[string]any, error) {
	text, err := g.generateJSON(ctx, extractInstruction, extractPrompt(req), extractSchema(req.Fields))
	if err != nil {
		return nil, wrapServiceError("gemini extract", err)
	}
	return decodeFields(text)
}

// Transcribe returns the spoken text in a WAV (or other mimeType) recording.
func (g *Gemini) Transcribe(ctx context.Context, audio []byte, mimeType string, hints []string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(transcribePrompt(g.languageCode, hints)),
		genai.NewPartFromBytes(audio, mimeType),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{Temperature: gptr.Of[float32](0)},
	)
	if err != nil {
		return "", wrapServiceError("gemini transcribe", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (g *Gemini) generateJSON(ctx context.Context, instruction, prompt string, schema *genai.Schema) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
			Temperature:       gptr.Of(g.temperature),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    schema,
		},
	)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
