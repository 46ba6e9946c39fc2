package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"
	DefaultAnthropicModel    = "claude-3-5-haiku-latest"

	anthropicVersion = "2023-06-01"
)

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	APIKey   string
	Endpoint string
	Model    string
	Client   *http.Client
}

// NewAnthropicClient constructs a client; an empty endpoint or model uses the defaults.
func NewAnthropicClient(apiKey, endpoint, model string) *AnthropicClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultAnthropicEndpoint
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicClient{
		APIKey:   apiKey,
		Endpoint: endpoint,
		Model:    model,
		Client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze asks for a summary and tags for the link.
func (c *AnthropicClient) Analyze(ctx context.Context, title, url string) (Analysis, error) {
	reply, err := c.complete(ctx, analyzeSystemPrompt, analyzePrompt(title, url), 200)
	if err != nil {
		return Analysis{}, err
	}
	return ParseAnalysis(reply)
}

// Chat answers a free-form question with optional background text.
func (c *AnthropicClient) Chat(ctx context.Context, query, background string) (string, error) {
	return c.complete(ctx, chatSystemPrompt, chatPrompt(query, background), 500)
}

func (c *AnthropicClient) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return "", ErrMissingAPIKey
	}

	payload, err := json.Marshal(anthropicRequest{
		Model:     c.Model,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	body, status, err := do(c.Client, req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if status != http.StatusOK {
		if resp.Error != nil && resp.Error.Message != "" {
			return "", fmt.Errorf("anthropic status %d: %s", status, resp.Error.Message)
		}
		return "", fmt.Errorf("anthropic status %d", status)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	return strings.TrimSpace(text.String()), nil
}
