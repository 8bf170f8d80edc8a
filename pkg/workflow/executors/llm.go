package executors

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/llm-devops/workflow-core/pkg/cache"
	"github.com/llm-devops/workflow-core/pkg/workflow"
)

// LLMConfig configures an LLMExecutor against an OpenAI-compatible
// provider, mirroring the teacher's llm.Config field set.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// LLMExecutor adapts a chat-completion call to the StepExecutor signature,
// consulting an exact-match result cache and an optional semantic cache
// before spending a model call on a prompt it has effectively already
// answered.
type LLMExecutor struct {
	client   *openai.Client
	model    string
	maxTok   int
	temp     float32
	results  *cache.Cache[string]
	semantic *cache.SemanticCache
}

// NewLLMExecutor builds an executor from cfg. results and semantic may be
// nil to disable that layer.
func NewLLMExecutor(cfg LLMConfig, results *cache.Cache[string], semantic *cache.SemanticCache) *LLMExecutor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &LLMExecutor{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		maxTok:   cfg.MaxTokens,
		temp:     cfg.Temperature,
		results:  results,
		semantic: semantic,
	}
}

// Execute satisfies workflow.StepExecutor. config["prompt"] is the user
// message; config["system"] is an optional system message.
func (e *LLMExecutor) Execute(ctx context.Context, in workflow.StepInput) (any, error) {
	prompt, _ := in.Config["prompt"].(string)
	if prompt == "" {
		return nil, errors.New("llm_call: config.prompt is required")
	}
	system, _ := in.Config["system"].(string)

	cacheKey := e.model + "|" + system + "|" + prompt

	if e.results != nil {
		if cached, ok := e.results.Get(cacheKey); ok {
			return cached, nil
		}
	}

	if e.semantic != nil {
		if cached, found, _ := e.semantic.Get(ctx, prompt); found {
			if e.results != nil {
				e.results.Set(cacheKey, cached)
			}
			return cached, nil
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTok,
		Temperature: e.temp,
		Messages:    messages,
	})
	if err != nil {
		return nil, errors.Wrap(err, "llm_call: chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm_call: empty response")
	}

	content := resp.Choices[0].Message.Content
	in.Span.SetAttribute("llm.prompt_tokens", fmt.Sprintf("%d", resp.Usage.PromptTokens))
	in.Span.SetAttribute("llm.completion_tokens", fmt.Sprintf("%d", resp.Usage.CompletionTokens))

	if e.results != nil {
		e.results.Set(cacheKey, content)
	}
	if e.semantic != nil {
		_ = e.semantic.Set(ctx, prompt, content)
	}

	return content, nil
}
