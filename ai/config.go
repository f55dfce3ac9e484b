package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/issueindex/core"
)

// Provider names the embedding backend.
type Provider string

const (
	// ProviderAuto uses the remote backend when both URL and API key are set,
	// and the local hashed generator otherwise.
	ProviderAuto Provider = "auto"

	// ProviderRemote calls POST {ServiceURL}/embeddings.
	ProviderRemote Provider = "remote"

	// ProviderOpenAI calls an OpenAI-compatible embeddings API.
	ProviderOpenAI Provider = "openai"

	// ProviderHashed never leaves the process.
	ProviderHashed Provider = "hashed"
)

// Config holds configuration for embedding generation.
type Config struct {
	// Provider selects the backend. Default: ProviderAuto.
	Provider Provider

	// ServiceURL is the base URL of the embedding backend.
	// Example: "http://localhost:8000" for the remote backend,
	// "http://localhost:11434/v1" for an OpenAI-compatible server.
	ServiceURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Model is the embedding model for ProviderOpenAI.
	// Example: "text-embedding-3-small"
	Model string

	// Dimension is the fixed vector length. Default: 1536.
	Dimension int

	// Timeout bounds each call to the backend. Default: 10s.
	Timeout time.Duration

	// CacheTTL is how long remote embeddings are cached. Zero disables the cache.
	CacheTTL time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the backend.
func WithProvider(p Provider) ConfigOption {
	return func(c *Config) {
		c.Provider = p
	}
}

// WithServiceURL sets the embedding backend base URL.
func WithServiceURL(url string) ConfigOption {
	return func(c *Config) {
		c.ServiceURL = url
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithDimension sets the vector length.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithCacheTTL sets the embedding cache TTL.
func WithCacheTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

// DefaultConfig returns a Config that runs without any external backend.
func DefaultConfig() *Config {
	return &Config{
		Provider:  ProviderAuto,
		Model:     "text-embedding-3-small",
		Dimension: core.DefaultDimension,
		Timeout:   10 * time.Second,
		CacheTTL:  time.Hour,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithServiceURL("http://embedder:8000"),
//	    WithAPIKey(os.Getenv("EMBEDDING_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	c.ServiceURL = strings.TrimSuffix(strings.TrimSpace(c.ServiceURL), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Provider = Provider(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	if c.Provider == "" {
		c.Provider = ProviderAuto
	}
}

// Resolve returns the concrete provider after applying the auto rule.
func (c *Config) Resolve() Provider {
	if c.Provider != ProviderAuto {
		return c.Provider
	}
	if c.ServiceURL != "" && c.APIKey != "" {
		return ProviderRemote
	}
	return ProviderHashed
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be greater than 0")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be greater than 0")
	}
	if c.CacheTTL < 0 {
		return errors.New("ai config: CacheTTL cannot be negative")
	}

	switch c.Provider {
	case ProviderAuto, ProviderHashed:
	case ProviderRemote:
		if c.ServiceURL == "" {
			return errors.New("ai config: ServiceURL is required for the remote provider")
		}
		if c.APIKey == "" {
			return errors.New("ai config: APIKey is required for the remote provider")
		}
	case ProviderOpenAI:
		if c.ServiceURL == "" {
			return errors.New("ai config: ServiceURL is required for the openai provider")
		}
		if c.Model == "" {
			return errors.New("ai config: Model is required for the openai provider")
		}
	default:
		return fmt.Errorf("ai config: unknown provider %q", c.Provider)
	}
	return nil
}
