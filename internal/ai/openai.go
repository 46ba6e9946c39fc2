package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAIModel    = "gpt-4o-mini"

	defaultHTTPTimeout = 30 * time.Second
	maxResponseBytes   = 1 << 20
)

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	APIKey   string
	Endpoint string
	Model    string
	Client   *http.Client
}

// NewOpenAIClient constructs a client; an empty endpoint or model uses the defaults.
func NewOpenAIClient(apiKey, endpoint, model string) *OpenAIClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		APIKey:   apiKey,
		Endpoint: endpoint,
		Model:    model,
		Client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze asks for a summary and tags for the link.
func (c *OpenAIClient) Analyze(ctx context.Context, title, url string) (Analysis, error) {
	reply, err := c.complete(ctx, analyzeSystemPrompt, analyzePrompt(title, url), 200)
	if err != nil {
		return Analysis{}, err
	}
	return ParseAnalysis(reply)
}

// Chat answers a free-form question with optional background text.
func (c *OpenAIClient) Chat(ctx context.Context, query, background string) (string, error) {
	return c.complete(ctx, chatSystemPrompt, chatPrompt(query, background), 500)
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return "", ErrMissingAPIKey
	}

	payload, err := json.Marshal(openAIRequest{
		Model: c.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	body, status, err := do(c.Client, req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if status != http.StatusOK {
		if resp.Error != nil && resp.Error.Message != "" {
			return "", fmt.Errorf("openai status %d: %s", status, resp.Error.Message)
		}
		return "", fmt.Errorf("openai status %d", status)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func do(client *http.Client, req *http.Request) ([]byte, int, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
