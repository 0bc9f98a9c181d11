// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package config describes the AI provider chain and the news sources, and
// loads overrides for them from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	KindOpenAI = "openai" // OpenAI-compatible chat completions API
	KindGemini = "gemini"
)

// Source kinds.
const (
	SourceRSS            = "rss" // RSS or Atom
	SourceHackerNews     = "hackernews"
	SourceGitHubTrending = "github-trending"
)

// DefaultLimit is the number of items taken from a source when no limit is
// configured.
const DefaultLimit = 5

// Config is the complete configuration.
type Config struct {
	// Order lists provider names in priority order. Empty means the order of
	// Providers.
	Order     []string   `yaml:"order"`
	Providers []Provider `yaml:"providers"`
	Sources   []Source   `yaml:"sources"`
}

// Provider describes one LLM backend of the failover chain.
type Provider struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	// System is the instruction used when a prompt has none.
	System string `yaml:"system"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`
	// ModelEnv and BaseURLEnv name variables overriding Model and BaseURL.
	ModelEnv   string `yaml:"model_env"`
	BaseURLEnv string `yaml:"base_url_env"`
	// Required marks the baseline provider. A missing key of a required
	// provider is a configuration error.
	Required bool `yaml:"required"`
}

// Source describes one news feed.
type Source struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
	// Limit caps the number of items taken from the source.
	Limit int `yaml:"limit"`
	// Scan is the number of Hacker News top stories examined.
	Scan int `yaml:"scan"`
	// Keywords filter Hacker News stories by title.
	Keywords []string `yaml:"keywords"`
}

func temp(f float64) *float64 { return &f }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Order: []string{"kimi", "nvidia", "gemini", "zhipu"},
		Providers: []Provider{
			{
				Name:        "kimi",
				Kind:        KindOpenAI,
				BaseURL:     "https://api.moonshot.cn/v1",
				Model:       "moonshot-v1-8k",
				Temperature: temp(0.7),
				System:      "You are Kimi, an AI assistant provided by Moonshot AI.",
				KeyEnv:      "MOONSHOT_API_KEY",
				ModelEnv:    "MOONSHOT_MODEL",
				BaseURLEnv:  "MOONSHOT_BASE_URL",
			},
			{
				Name:        "nvidia",
				Kind:        KindOpenAI,
				BaseURL:     "https://integrate.api.nvidia.com/v1",
				Model:       "meta/llama-3.1-70b-instruct",
				Temperature: temp(0.5),
				KeyEnv:      "NVIDIA_API_KEY",
				ModelEnv:    "NVIDIA_MODEL",
				BaseURLEnv:  "NVIDIA_BASE_URL",
			},
			{
				Name:        "gemini",
				Kind:        KindGemini,
				Model:       "gemini-2.0-flash",
				Temperature: temp(0.5),
				KeyEnv:      "GEMINI_API_KEY",
				ModelEnv:    "GEMINI_MODEL",
			},
			{
				Name:        "zhipu",
				Kind:        KindOpenAI,
				BaseURL:     "https://open.bigmodel.cn/api/paas/v4",
				Model:       "glm-4-flash",
				Temperature: temp(0.7),
				System:      "You are a helpful assistant powered by ZAI.",
				KeyEnv:      "ZAI_API_KEY",
				ModelEnv:    "ZAI_MODEL",
				BaseURLEnv:  "ZAI_API_BASE_URL",
				Required:    true,
			},
		},
		Sources: []Source{
			{Name: "Anthropic Blog", Kind: SourceRSS, URL: "https://www.anthropic.com/feed", Limit: DefaultLimit},
			{Name: "Google AI Blog", Kind: SourceRSS, URL: "http://googleaiblog.blogspot.com/atom.xml", Limit: DefaultLimit},
			{
				Name:  "Hacker News (AI)",
				Kind:  SourceHackerNews,
				Limit: DefaultLimit,
				Scan:  30,
				Keywords: []string{
					"AI", "LLM", "Claude", "Gemini", "GPT", "Model", "Machine Learning", "Neural",
				},
			},
			{Name: "GitHub Trending", Kind: SourceGitHubTrending, URL: "https://github.com/trending", Limit: DefaultLimit},
		},
	}
}

// Load reads the YAML file at path and applies it on top of [Default].
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse applies the YAML document b on top of [Default].
//
// Providers are merged by name: set fields replace the built-in ones and
// unknown names add providers. A non-empty sources list replaces the
// built-in list.
func Parse(b []byte) (*Config, error) {
	var file Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg := Default()
	for _, p := range file.Providers {
		i := slices.IndexFunc(cfg.Providers, func(d Provider) bool { return d.Name == p.Name })
		if i < 0 {
			cfg.Providers = append(cfg.Providers, p)
			if len(file.Order) == 0 {
				cfg.Order = append(cfg.Order, p.Name)
			}
			continue
		}
		cfg.Providers[i] = merge(cfg.Providers[i], p)
	}
	if len(file.Order) > 0 {
		cfg.Order = file.Order
	}
	if len(file.Sources) > 0 {
		cfg.Sources = file.Sources
	}
	for i := range cfg.Sources {
		if cfg.Sources[i].Limit == 0 {
			cfg.Sources[i].Limit = DefaultLimit
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func merge(base, over Provider) Provider {
	if over.Kind != "" {
		base.Kind = over.Kind
	}
	if over.BaseURL != "" {
		base.BaseURL = over.BaseURL
	}
	if over.Model != "" {
		base.Model = over.Model
	}
	if over.Temperature != nil {
		base.Temperature = over.Temperature
	}
	if over.System != "" {
		base.System = over.System
	}
	if over.KeyEnv != "" {
		base.KeyEnv = over.KeyEnv
	}
	if over.ModelEnv != "" {
		base.ModelEnv = over.ModelEnv
	}
	if over.BaseURLEnv != "" {
		base.BaseURLEnv = over.BaseURLEnv
	}
	base.Required = base.Required || over.Required
	return base
}

// Provider returns the provider with the given name.
func (c *Config) Provider(name string) (Provider, bool) {
	i := slices.IndexFunc(c.Providers, func(p Provider) bool { return p.Name == name })
	if i < 0 {
		return Provider{}, false
	}
	return c.Providers[i], true
}

// Chain returns the providers in priority order.
func (c *Config) Chain() []Provider {
	chain := make([]Provider, 0, len(c.Order))
	for _, name := range c.Order {
		if p, ok := c.Provider(name); ok {
			chain = append(chain, p)
		}
	}
	return chain
}

// SetOrder replaces the provider order with a comma-separated list of
// names, as accepted by the AI_PROVIDERS environment variable.
func (c *Config) SetOrder(list string) error {
	var order []string
	for name := range strings.SplitSeq(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		return errors.New("empty provider order")
	}
	for _, name := range order {
		if _, ok := c.Provider(name); !ok {
			return fmt.Errorf("unknown provider %q", name)
		}
	}
	c.Order = order
	return nil
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		switch {
		case p.Name == "":
			return errors.New("provider without a name")
		case seen[p.Name]:
			return fmt.Errorf("duplicate provider %q", p.Name)
		case p.Kind != KindOpenAI && p.Kind != KindGemini:
			return fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
		case p.Kind == KindOpenAI && p.BaseURL == "":
			return fmt.Errorf("provider %q: base_url is required", p.Name)
		case p.KeyEnv == "":
			return fmt.Errorf("provider %q: key_env is required", p.Name)
		}
		seen[p.Name] = true
	}
	for _, name := range c.Order {
		if !seen[name] {
			return fmt.Errorf("order: unknown provider %q", name)
		}
	}
	for _, s := range c.Sources {
		switch {
		case s.Name == "":
			return errors.New("source without a name")
		case s.Limit < 0:
			return fmt.Errorf("source %q: negative limit", s.Name)
		}
		switch s.Kind {
		case SourceRSS, SourceGitHubTrending:
			if s.URL == "" {
				return fmt.Errorf("source %q: url is required", s.Name)
			}
		case SourceHackerNews:
		default:
			return fmt.Errorf("source %q: unknown kind %q", s.Name, s.Kind)
		}
	}
	return nil
}
