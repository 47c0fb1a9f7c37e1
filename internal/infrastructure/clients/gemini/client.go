package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/pkg/config"
	"google.golang.org/genai"
)

// Client is a Gemini LLM provider.
type Client struct {
	client *genai.Client
	model  string
}

var _ providers.LLMProvider = (*Client)(nil)

// NewClient creates a Gemini client authenticated with an AI Studio API key.
func NewClient(ctx context.Context, cfg *config.GeminiConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Name implements providers.LLMProvider.
func (c *Client) Name() string { return "gemini" }

// Complete implements providers.LLMProvider.
func (c *Client) Complete(ctx context.Context, req providers.LLMRequest) (string, error) {
	contents := buildContents(req.Messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini request has no messages")
	}

	temperature := float32(req.Temperature)
	genCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from Gemini")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(result.String())
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return text, nil
}

// buildContents maps chat roles onto Gemini roles. Gemini has no system role
// inside contents; assistant turns become model turns.
func buildContents(messages []providers.LLMMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}
	return contents
}
