package generator

import "github.com/sentineldev/sentinel-gateway/config"

// defaultModels pins one sensible default model per connector so a request
// omitting "model" still resolves to something callable.
var defaultModels = map[string]string{
	"groq":      "llama-3.1-8b-instant",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-20241022",
	"mistral":   "mistral-small-latest",
	"together":  "meta-llama/Llama-3-70b-chat-hf",
	"ollama":    "llama3",
}

// pool is process-wide: connectors share it so idle connections are reused
// across requests regardless of which provider a caller picks.
var pool = newTransportPool()

// BuildRegistry wires one connector per supported provider using the
// configured credentials and base URLs, registered under the provider name
// requests select via the "provider" field.
func BuildRegistry(cfg *config.Config) *Registry {
	reg := NewRegistry(cfg.DefaultProvider)

	reg.Register("groq", NewOpenAICompatible("groq", cfg.GroqBaseURL, cfg.GroqAPIKey, defaultModels["groq"], pool.clientFor("groq")))
	reg.Register("openai", NewOpenAICompatible("openai", cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, defaultModels["openai"], pool.clientFor("openai")))
	reg.Register("anthropic", NewAnthropic(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey, defaultModels["anthropic"], pool.clientFor("anthropic")))
	reg.Register("mistral", NewOpenAICompatible("mistral", cfg.MistralBaseURL, cfg.MistralAPIKey, defaultModels["mistral"], pool.clientFor("mistral")))
	reg.Register("together", NewOpenAICompatible("together", cfg.TogetherBaseURL, cfg.TogetherAPIKey, defaultModels["together"], pool.clientFor("together")))
	reg.Register("ollama", NewOpenAICompatible("ollama", cfg.OllamaBaseURL, "", defaultModels["ollama"], pool.clientFor("ollama")))

	return reg
}

// Close releases pooled connections on shutdown.
func Close() {
	pool.closeAll()
}
