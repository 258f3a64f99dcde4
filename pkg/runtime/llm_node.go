package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pyrex41/reelflow/pkg/config"
	"github.com/pyrex41/reelflow/pkg/models"
	"github.com/pyrex41/reelflow/pkg/queue"
	"github.com/pyrex41/reelflow/pkg/registry"
	"github.com/pyrex41/reelflow/pkg/utils"
)

// defaultSystemPrompt is used when a node configures no system_prompt.
const defaultSystemPrompt = "You are a helpful assistant."

// llmNodeType calls a chat-completion provider.
//
// Config:
//
//	model (string, required) - model identifier for the provider
//	user_prompt (string, required) - user prompt, supports {{variable}} placeholders
//	provider (string, optional) - provider name, defaults to the configured default
//	system_prompt (string, optional) - system prompt, also templated
//	api_key (string, optional) - overrides the process-wide provider key
//	temperature (number, optional)
//	max_tokens (number, optional)
type llmNodeType struct {
	cfg     config.LLMConfig
	timeout time.Duration

	mu      sync.Mutex
	clients map[string]*utils.LLMClient
}

// NewLLMNodeType creates the llm node type.
func NewLLMNodeType(cfg config.LLMConfig, timeout time.Duration) registry.NodeType {
	return &llmNodeType{
		cfg:     cfg,
		timeout: timeout,
		clients: make(map[string]*utils.LLMClient),
	}
}

func (l *llmNodeType) Type() string {
	return string(models.NodeTypeLLM)
}

func (l *llmNodeType) ValidateConfig(node *models.Node) error {
	if model, ok := configString(node, "model"); !ok || model == "" {
		return fmt.Errorf("llm node requires a 'model' string")
	}
	if prompt, ok := configString(node, "user_prompt"); !ok || prompt == "" {
		return fmt.Errorf("llm node requires a 'user_prompt' string")
	}
	return nil
}

func (l *llmNodeType) Execute(ctx context.Context, node *models.Node, inputs map[string]interface{}, execCtx registry.ExecutionContext) (map[string]interface{}, map[string]interface{}, error) {
	providerName, _ := configString(node, "provider")
	if providerName == "" {
		providerName = l.cfg.DefaultProvider
	}

	client, err := l.clientFor(node, providerName)
	if err != nil {
		return nil, nil, queue.Permanent(err)
	}

	model, _ := configString(node, "model")
	rawPrompt, _ := configString(node, "user_prompt")

	prompt, err := utils.ProcessTemplate(rawPrompt, inputs)
	if err != nil {
		return nil, nil, queue.Permanent(fmt.Errorf("user prompt template failed: %w", err))
	}

	rawSystem, ok := configString(node, "system_prompt")
	if !ok || rawSystem == "" {
		rawSystem = defaultSystemPrompt
	}
	system, err := utils.ProcessTemplate(rawSystem, inputs)
	if err != nil {
		return nil, nil, queue.Permanent(fmt.Errorf("system prompt template failed: %w", err))
	}

	messages := []utils.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}

	request := utils.LLMRequest{
		Model:    model,
		Messages: messages,
	}
	metadata := map[string]interface{}{
		"provider": providerName,
		"model":    model,
	}
	if temperature, ok := configFloat(node, "temperature"); ok {
		request.Temperature = temperature
		metadata["temperature"] = temperature
	}
	if maxTokens, ok := configFloat(node, "max_tokens"); ok {
		request.MaxTokens = int(maxTokens)
		metadata["max_tokens"] = int(maxTokens)
	}

	resp, err := client.Complete(ctx, request)
	if err != nil {
		return nil, nil, fmt.Errorf("llm request failed: %w", err)
	}
	if resp.Error != nil {
		return nil, nil, fmt.Errorf("llm provider %s returned an error: %s", providerName, resp.Error.Message)
	}

	text := resp.Text()
	if text == "" {
		return nil, nil, fmt.Errorf("llm provider %s returned no completion text", providerName)
	}

	output := map[string]interface{}{
		"text":     text,
		"model":    resp.Model,
		"provider": providerName,
	}
	metadata["prompt_tokens"] = resp.Usage.PromptTokens
	metadata["completion_tokens"] = resp.Usage.CompletionTokens
	metadata["tokens_used"] = resp.Usage.TotalTokens

	return output, metadata, nil
}

// clientFor returns a client for a provider. A node-level api_key builds a
// dedicated client; otherwise clients are cached per provider using the
// process-wide key.
func (l *llmNodeType) clientFor(node *models.Node, providerName string) (*utils.LLMClient, error) {
	providerCfg := l.cfg.Providers[providerName]

	if apiKey, ok := configString(node, "api_key"); ok && apiKey != "" {
		return utils.NewLLMClient(utils.LLMProvider(providerName), apiKey, utils.LLMClientOptions{
			BaseURL: providerCfg.BaseURL,
			Timeout: l.timeout,
		}), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if client, ok := l.clients[providerName]; ok {
		return client, nil
	}

	if providerCfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for llm provider %q", providerName)
	}

	client := utils.NewLLMClient(utils.LLMProvider(providerName), providerCfg.APIKey, utils.LLMClientOptions{
		BaseURL: providerCfg.BaseURL,
		Timeout: l.timeout,
	})
	l.clients[providerName] = client

	return client, nil
}
