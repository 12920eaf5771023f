package gateway

import (
	"strings"

	"github.com/modelscout/modelscout/internal/config"
)

// Protocol is the closed set of upstream API families the gateway speaks.
// Adding a provider family means a new constant plus one arm in each dispatcher.
type Protocol string

const (
	// ProtocolOpenAI: bearer-token JSON REST (OpenAI, OpenRouter, Groq,
	// Mistral, Together and compatible endpoints).
	ProtocolOpenAI Protocol = "openai"
	// ProtocolAnthropic: header-keyed JSON REST (x-api-key plus version header).
	ProtocolAnthropic Protocol = "anthropic"
	// ProtocolLocal: local-model REST in the Ollama style, no credential.
	ProtocolLocal Protocol = "local"
)

// RequiresCredential reports whether calls on this protocol must carry an API key.
func (p Protocol) RequiresCredential() bool {
	return p != ProtocolLocal
}

// DefaultProtocol maps a vendor identifier to its API family.
func DefaultProtocol(vendor string) Protocol {
	switch strings.ToLower(strings.TrimSpace(vendor)) {
	case "anthropic":
		return ProtocolAnthropic
	case "ollama", "llamacpp", "llama-cpp", "lmstudio", "localai", "jan":
		return ProtocolLocal
	default:
		// openai, openrouter, groq, mistral, together, deepinfra, custom, ...
		return ProtocolOpenAI
	}
}

// ResolveProtocol applies the config override when present, otherwise the
// vendor default.
func ResolveProtocol(cfg config.Provider) Protocol {
	switch Protocol(cfg.Protocol) {
	case ProtocolOpenAI, ProtocolAnthropic, ProtocolLocal:
		return Protocol(cfg.Protocol)
	}
	return DefaultProtocol(cfg.Vendor)
}
