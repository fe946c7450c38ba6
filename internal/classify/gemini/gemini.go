// Package gemini implements the classify.Provider port on top of the Gemini
// generative API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

// Provider calls Gemini for structured SMS classification.
type Provider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// New builds a provider from an API key. An empty key is a configuration
// error; callers that want fallback-only classification simply construct the
// classifier without a provider.
func New(ctx context.Context, apiKey, modelName string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	return &Provider{client: client, model: model}, nil
}

// Infer sends the prompt and returns the concatenated text parts of the
// first candidate. The classifier validates the payload; this layer only
// reports transport-level absence of content.
func (p *Provider) Infer(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini: no text parts in response")
	}
	return b.String(), nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}
