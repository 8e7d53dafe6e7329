package llm

import (
	"fmt"
	"sort"
)

// ProviderConfig holds everything needed to create an upstream provider.
type ProviderConfig struct {
	Provider string // "openai", "groq", "ollama", "openrouter", "custom", "echo", "none"
	APIKey   string
	Model    string
	BaseURL  string // Override for self-hosted / custom endpoints
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// NewFactory creates a factory with only the echo provider registered.
func NewFactory() *ProviderFactory {
	f := &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
	f.Register(EchoProviderName, func(ProviderConfig) (Provider, error) {
		return NewEchoProvider(), nil
	})
	return f
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. An empty or "none" provider yields
// the echo provider so the relay can run without an upstream.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	name := cfg.Provider
	if name == "" || name == "none" {
		name = EchoProviderName
	}

	ctor, ok := f.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider %q, registered: %v", cfg.Provider, f.Names())
	}

	provider, err := ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s provider: %w", name, err)
	}
	return provider, nil
}

// Names lists registered providers in sorted order.
func (f *ProviderFactory) Names() []string {
	out := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders maps OpenAI-compatible presets to their default base URLs.
// Use "custom" with an explicit base_url for anything else.
var KnownProviders = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"ollama":     "http://localhost:11434/v1",
	"together":   "https://api.together.xyz/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}
