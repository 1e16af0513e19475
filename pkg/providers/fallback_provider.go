package providers

import (
	"context"
	"fmt"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/logger"
)

// FallbackProvider wraps a primary and fallback capability.LLM. If the
// primary fails, it transparently retries with the fallback. Realizes
// spec.md §4.6's "providers selected per-agent via ai_providers resolution"
// for agents whose ai_providers.llm provider is "fallback".
type FallbackProvider struct {
	primary       capability.LLM
	fallback      capability.LLM
	primaryModel  string
	fallbackModel string
}

// NewFallbackProvider composes two LLM providers into one.
func NewFallbackProvider(primary, fallback capability.LLM, primaryModel, fallbackModel string) *FallbackProvider {
	return &FallbackProvider{
		primary:       primary,
		fallback:      fallback,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
	}
}

// Chat implements capability.LLM.
func (p *FallbackProvider) Chat(ctx context.Context, messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}) (*capability.LLMResponse, error) {
	resp, err := p.primary.Chat(ctx, messages, tools, model, options)
	if err == nil {
		return resp, nil
	}

	logger.WarnCF("fallback", fmt.Sprintf("primary provider failed (%s), falling back to %s: %v", model, p.fallbackModel, err), nil)

	fbResp, fbErr := p.fallback.Chat(ctx, messages, tools, p.fallbackModel, options)
	if fbErr != nil {
		return nil, fmt.Errorf("primary failed: %w; fallback also failed: %v", err, fbErr)
	}
	return fbResp, nil
}

// ChatStream implements capability.StreamingLLM, falling back to a
// non-streaming Chat call when a provider doesn't implement streaming.
func (p *FallbackProvider) ChatStream(ctx context.Context, messages []capability.Message, tools []capability.ToolDefinition, model string, options map[string]interface{}, onContent capability.StreamCallback) (*capability.LLMResponse, error) {
	var resp *capability.LLMResponse
	var err error
	if sp, ok := p.primary.(capability.StreamingLLM); ok {
		resp, err = sp.ChatStream(ctx, messages, tools, model, options, onContent)
	} else {
		resp, err = p.primary.Chat(ctx, messages, tools, model, options)
	}
	if err == nil {
		return resp, nil
	}

	logger.WarnCF("fallback", fmt.Sprintf("primary provider failed (%s), falling back to %s: %v", model, p.fallbackModel, err), nil)

	if sp, ok := p.fallback.(capability.StreamingLLM); ok {
		return sp.ChatStream(ctx, messages, tools, p.fallbackModel, options, onContent)
	}
	return p.fallback.Chat(ctx, messages, tools, p.fallbackModel, options)
}

// GetDefaultModel implements capability.LLM.
func (p *FallbackProvider) GetDefaultModel() string {
	return p.primaryModel
}

// Primary returns the underlying primary provider.
func (p *FallbackProvider) Primary() capability.LLM { return p.primary }

// Fallback returns the underlying fallback provider.
func (p *FallbackProvider) Fallback() capability.LLM { return p.fallback }

// FallbackModel returns the fallback model name.
func (p *FallbackProvider) FallbackModel() string { return p.fallbackModel }
