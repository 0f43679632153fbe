package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// ChatClient abstracts the completion capability the suggestion
// generator needs: prompt in, text out.
type ChatClient interface {
	GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)
	Model() string
}

// GeminiChatClient adapts the genai SDK to the ChatClient interface.
type GeminiChatClient struct {
	client *genai.Client
	model  string
}

// NewGeminiChatClient creates a ChatClient backed by Gemini.
func NewGeminiChatClient(ctx context.Context, apiKey, model string) (ChatClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiChatClient{client: client, model: model}, nil
}

func (g *GeminiChatClient) GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return text, nil
}

func (g *GeminiChatClient) Model() string {
	return g.model
}
