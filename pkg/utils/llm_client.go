package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LLMProvider represents the type of LLM provider
type LLMProvider string

const (
	// OpenRouter provider (OpenAI-compatible aggregator, the default)
	OpenRouter LLMProvider = "openrouter"
	// OpenAI provider
	OpenAI LLMProvider = "openai"
	// Anthropic provider
	Anthropic LLMProvider = "anthropic"
	// Generic provider for custom OpenAI-compatible APIs
	Generic LLMProvider = "generic"
)

// LLMClient provides a unified interface for interacting with different LLM providers
type LLMClient struct {
	httpClient *HTTPClient
	provider   LLMProvider
	apiKey     string
	baseURL    string
	timeout    time.Duration
}

// LLMClientOptions configures an LLMClient beyond provider and key.
type LLMClientOptions struct {
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
	// Timeout bounds each completion request. Zero means 60 seconds.
	Timeout time.Duration
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest represents a request to an LLM
type LLMRequest struct {
	Model       string                 `json:"model"`
	Messages    []Message              `json:"messages"`
	Temperature float64                `json:"temperature,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Stop        []string               `json:"stop,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// LLMResponse represents a response from an LLM
type LLMResponse struct {
	ID          string                 `json:"id,omitempty"`
	Model       string                 `json:"model,omitempty"`
	Choices     []Choice               `json:"choices,omitempty"`
	Usage       Usage                  `json:"usage,omitempty"`
	Error       *ErrorInfo             `json:"error,omitempty"`
	RawResponse map[string]interface{} `json:"raw_response,omitempty"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorInfo represents error information
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Text returns the content of the first choice, or an empty string.
func (r *LLMResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// NewLLMClient creates a new LLM client
func NewLLMClient(provider LLMProvider, apiKey string, opts LLMClientOptions) *LLMClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	client := &LLMClient{
		httpClient: NewHTTPClient(timeout),
		provider:   provider,
		apiKey:     apiKey,
		timeout:    timeout,
	}

	switch provider {
	case OpenRouter:
		client.baseURL = "https://openrouter.ai/api/v1"
	case OpenAI:
		client.baseURL = "https://api.openai.com/v1"
	case Anthropic:
		client.baseURL = "https://api.anthropic.com/v1"
	}
	if opts.BaseURL != "" {
		client.baseURL = opts.BaseURL
	}

	return client
}

// Complete sends a completion request to the LLM
func (c *LLMClient) Complete(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	switch c.provider {
	case OpenRouter, OpenAI, Generic:
		return c.completeChat(ctx, request)
	case Anthropic:
		return c.completeAnthropic(ctx, request)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.provider)
	}
}

// completeChat sends a completion request to an OpenAI-compatible
// chat completions endpoint (OpenAI, OpenRouter, generic).
func (c *LLMClient) completeChat(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	requestBody := map[string]interface{}{
		"model":       request.Model,
		"messages":    request.Messages,
		"temperature": request.Temperature,
	}

	if request.MaxTokens > 0 {
		requestBody["max_tokens"] = request.MaxTokens
	}
	if len(request.Stop) > 0 {
		requestBody["stop"] = request.Stop
	}
	for key, value := range request.Options {
		requestBody[key] = value
	}

	httpRequest := &HTTPRequest{
		URL:    fmt.Sprintf("%s/chat/completions", c.baseURL),
		Method: "POST",
		Body:   requestBody,
		Headers: map[string]string{
			"Authorization": fmt.Sprintf("Bearer %s", c.apiKey),
			"Content-Type":  "application/json",
		},
		Timeout: c.timeout,
	}

	resp, err := c.httpClient.Do(ctx, httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %w", c.provider, err)
	}

	if resp.StatusCode >= 400 {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(resp.RawBody, &errorResp); err != nil || errorResp.Error.Message == "" {
			return nil, fmt.Errorf("%s API error (status %d): %s", c.provider, resp.StatusCode, string(resp.RawBody))
		}
		return &LLMResponse{
			Error: &ErrorInfo{
				Message: errorResp.Error.Message,
				Type:    errorResp.Error.Type,
				Code:    errorResp.Error.Code,
			},
		}, nil
	}

	var chatResp LLMResponse
	if err := json.Unmarshal(resp.RawBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", c.provider, err)
	}

	if rawMap, ok := resp.Body.(map[string]interface{}); ok {
		chatResp.RawResponse = rawMap
	}

	return &chatResp, nil
}

// completeAnthropic sends a completion request to the Anthropic messages API.
func (c *LLMClient) completeAnthropic(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	// The messages API takes the system prompt as a top-level field.
	var systemPrompt string
	var conversation []Message
	for _, msg := range request.Messages {
		if msg.Role == "system" {
			systemPrompt = msg.Content
		} else {
			conversation = append(conversation, msg)
		}
	}

	requestBody := map[string]interface{}{
		"model":       request.Model,
		"messages":    conversation,
		"temperature": request.Temperature,
	}

	if systemPrompt != "" {
		requestBody["system"] = systemPrompt
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	requestBody["max_tokens"] = maxTokens

	if len(request.Stop) > 0 {
		requestBody["stop_sequences"] = request.Stop
	}
	for key, value := range request.Options {
		requestBody[key] = value
	}

	httpRequest := &HTTPRequest{
		URL:    fmt.Sprintf("%s/messages", c.baseURL),
		Method: "POST",
		Body:   requestBody,
		Headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": "2023-06-01",
			"Content-Type":      "application/json",
		},
		Timeout: c.timeout,
	}

	resp, err := c.httpClient.Do(ctx, httpRequest)
	if err != nil {
		return nil, fmt.Errorf("anthropic API request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(resp.RawBody))
	}

	var anthropicResp struct {
		ID         string                   `json:"id"`
		Content    []map[string]interface{} `json:"content"`
		Model      string                   `json:"model"`
		StopReason string                   `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(resp.RawBody, &anthropicResp); err != nil {
		return nil, fmt.Errorf("failed to parse anthropic response: %w", err)
	}

	var content string
	for _, block := range anthropicResp.Content {
		if blockType, ok := block["type"].(string); ok && blockType == "text" {
			if textContent, ok := block["text"].(string); ok {
				content = textContent
				break
			}
		}
	}

	llmResp := &LLMResponse{
		ID:    anthropicResp.ID,
		Model: anthropicResp.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: Message{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: anthropicResp.StopReason,
			},
		},
		Usage: Usage{
			PromptTokens:     anthropicResp.Usage.InputTokens,
			CompletionTokens: anthropicResp.Usage.OutputTokens,
			TotalTokens:      anthropicResp.Usage.InputTokens + anthropicResp.Usage.OutputTokens,
		},
	}

	if rawMap, ok := resp.Body.(map[string]interface{}); ok {
		llmResp.RawResponse = rawMap
	}

	return llmResp, nil
}
