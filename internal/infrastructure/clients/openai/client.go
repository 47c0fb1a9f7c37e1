package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/pkg/config"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrUnauthorized is returned when the endpoint rejects the API key.
var ErrUnauthorized = errors.New("openai: unauthorized")

// Client talks to an OpenAI-compatible HTTP API. The same client serves
// OpenAI itself and compatible hosts such as Groq.
type Client struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ providers.LLMProvider = (*Client)(nil)

// NewClient creates a new OpenAI-compatible client. name labels logs and metrics.
func NewClient(name string, cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("%s api key is required", name)
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		name:    name,
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: newLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// newLimiter returns nil (unlimited) for a negative rpm.
func newLimiter(rpm int, burst int) *rate.Limiter {
	if rpm < 0 {
		return nil
	}
	if rpm == 0 {
		rpm = 60
	}
	if burst <= 0 {
		burst = 5
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

// Name implements providers.LLMProvider.
func (c *Client) Name() string { return c.name }

// Model returns the configured model.
func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete implements providers.LLMProvider using chat completions.
func (c *Client) Complete(ctx context.Context, req providers.LLMRequest) (string, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	var out chatResponse
	if err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, &out); err != nil {
		return "", err
	}

	for _, choice := range out.Choices {
		if text := cleanText(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("%s response missing output text", c.name)
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed calls the embeddings endpoint with model and returns vectors in input order.
func (c *Client) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	var out embeddingResponse
	if err := c.post(ctx, "/embeddings", embeddingRequest{Model: model, Input: texts}, &out); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%s embedding index %d out of range", c.name, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%s returned no embedding for input %d", c.name, i)
		}
	}
	return vectors, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordMetric(ctx, c.name, c.model, 0, 0, err)
			return err
		}
		recordRateLimitWait(ctx, c.name, c.model, time.Since(waitStart))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordMetric(ctx, c.name, c.model, 0, time.Since(start), err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		recordMetric(ctx, c.name, c.model, resp.StatusCode, time.Since(start), fmt.Errorf("status %d", resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %s request failed with status %d", ErrUnauthorized, c.name, resp.StatusCode)
		}
		return fmt.Errorf("%s request failed with status %d", c.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		recordMetric(ctx, c.name, c.model, resp.StatusCode, time.Since(start), err)
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}

	recordMetric(ctx, c.name, c.model, resp.StatusCode, time.Since(start), nil)
	return nil
}

// cleanText strips Markdown code fences some models wrap answers in.
func cleanText(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 && !strings.Contains(cleaned[:nl], " ") {
			cleaned = cleaned[nl+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}
