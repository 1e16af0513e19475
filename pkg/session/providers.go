package session

import (
	"fmt"

	"github.com/solace-ai/agentserver/pkg/capability"
	"github.com/solace-ai/agentserver/pkg/config"
	"github.com/solace-ai/agentserver/pkg/providers"
)

// resolveCapabilities implements spec.md §4.6's "providers selected
// per-agent via ai_providers resolution": reads the agent's
// `ai_providers.llm` config section and builds the capability.Bundle the
// engine receives, never a provider-specific type. TTS/STT/VAD stay nil —
// concrete adapters for those are a non-goal of this spec (capability.Bundle
// doc comment); nodes that need them fail per-session with a contained,
// logged error rather than the manager refusing to attach.
func resolveCapabilities(procCfg *config.Config, profile *Profile) (*capability.Bundle, error) {
	llm, err := resolveLLM(procCfg, profile)
	if err != nil {
		return nil, err
	}
	return &capability.Bundle{LLM: llm}, nil
}

func resolveLLM(procCfg *config.Config, profile *Profile) (capability.LLM, error) {
	provider, _ := profile.GetConfig("ai_providers.llm.provider", "claude").(string)

	switch provider {
	case "openai":
		model, _ := profile.GetConfig("ai_providers.llm.model", "").(string)
		return providers.NewOpenAIProvider(procCfg.OpenAIAPIKey, model), nil

	case "fallback":
		primaryModel, _ := profile.GetConfig("ai_providers.llm.primary_model", "").(string)
		fallbackModel, _ := profile.GetConfig("ai_providers.llm.fallback_model", "").(string)
		primary := newClaude(procCfg)
		fallback := providers.NewOpenAIProvider(procCfg.OpenAIAPIKey, fallbackModel)
		if primaryModel == "" {
			primaryModel = primary.GetDefaultModel()
		}
		return providers.NewFallbackProvider(primary, fallback, primaryModel, fallbackModel), nil

	case "claude", "":
		return newClaude(procCfg), nil

	default:
		return nil, fmt.Errorf("session: unknown ai_providers.llm.provider %q", provider)
	}
}

// newClaude prefers a static OAuth bearer token (Claude Max/Pro
// subscriptions) over a plain API key when the process config carries one,
// mirroring ClaudeProvider's own OAuth-vs-API-key preference.
func newClaude(procCfg *config.Config) *providers.ClaudeProvider {
	if procCfg.AnthropicOAuthToken != "" {
		token := procCfg.AnthropicOAuthToken
		return providers.NewClaudeProviderOAuth(func() (string, error) { return token, nil })
	}
	return providers.NewClaudeProviderFromStoredCredential(procCfg.AnthropicAPIKey)
}
