package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/chatproxy/internal/observability"
)

// EnvPrefix namespaces environment overrides (CHATPROXY_BACKEND_URL, ...).
const EnvPrefix = "CHATPROXY"

// Config holds all application configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// BackendConfig points the client at the backend proxy.
type BackendConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// RelayConfig configures the serve command and its upstream provider.
type RelayConfig struct {
	Addr     string `mapstructure:"addr"`
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.model", "openai/gpt-3.5-turbo")
	v.SetDefault("relay.addr", ":8080")
	v.SetDefault("relay.provider", "echo")
	// Keys without a default are invisible to Unmarshal under AutomaticEnv.
	v.SetDefault("relay.model", "")
	v.SetDefault("relay.api_key", "")
	v.SetDefault("relay.base_url", "")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.service_name", "chatproxy")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Backend.URL == "" {
		warnings = append(warnings, "backend url is empty")
	} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		warnings = append(warnings, fmt.Sprintf("backend url %q is not an absolute http(s) URL", c.Backend.URL))
	}

	switch c.Relay.Provider {
	case "", "none", "echo", "ollama":
	default:
		if c.Relay.APIKey == "" {
			warnings = append(warnings, fmt.Sprintf("relay provider '%s' is configured but api_key is empty", c.Relay.Provider))
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	if _, err := observability.ParseLevel(c.Log.Level); err != nil {
		warnings = append(warnings, err.Error())
	}

	return warnings
}

// Load reads configuration from an optional file and the environment.
// An empty path skips the file. BACKEND_API_URL is honored as an alias for
// backend.url.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("backend.url", EnvPrefix+"_BACKEND_URL", "BACKEND_API_URL"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
