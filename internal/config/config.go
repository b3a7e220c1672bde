/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package config loads conclave settings from a YAML file, CONCLAVE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hortator-ai/conclave/internal/db"
)

// Backends selectable with the backend key.
const (
	BackendSemantic = "semantic"
	BackendLedger   = "ledger"
)

// Config is the full conclave configuration.
type Config struct {
	Backend     string            `yaml:"backend" mapstructure:"backend"`
	Mirror      bool              `yaml:"mirror" mapstructure:"mirror"`
	Embedding   EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	VectorStore VectorStoreConfig `yaml:"vectorstore" mapstructure:"vectorstore"`
	Ledger      db.Config         `yaml:"ledger" mapstructure:"ledger"`
	Activity    ActivityConfig    `yaml:"activity" mapstructure:"activity"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

type EmbeddingConfig struct {
	// Provider is "openai" or "hashing".
	Provider  string        `yaml:"provider" mapstructure:"provider"`
	BaseURL   string        `yaml:"baseURL" mapstructure:"baseURL"`
	APIKey    string        `yaml:"apiKey,omitempty" mapstructure:"apiKey"`
	Model     string        `yaml:"model" mapstructure:"model"`
	Dimension int           `yaml:"dimension" mapstructure:"dimension"`
	CacheSize int           `yaml:"cacheSize" mapstructure:"cacheSize"` // 0 disables the cache
	CacheTTL  time.Duration `yaml:"cacheTTL" mapstructure:"cacheTTL"`
}

type LLMConfig struct {
	BaseURL      string        `yaml:"baseURL" mapstructure:"baseURL"`
	APIKey       string        `yaml:"apiKey,omitempty" mapstructure:"apiKey"`
	DefaultModel string        `yaml:"defaultModel" mapstructure:"defaultModel"`
	MaxRetries   int           `yaml:"maxRetries" mapstructure:"maxRetries"`
	Temperature  float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int           `yaml:"maxTokens" mapstructure:"maxTokens"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Referer      string        `yaml:"referer" mapstructure:"referer"`
	Title        string        `yaml:"title" mapstructure:"title"`
	// PriceMap is a LiteLLM price list URL or file; empty disables cost estimates.
	PriceMap string `yaml:"priceMap" mapstructure:"priceMap"`
}

type VectorStoreConfig struct {
	// Provider is "memory", "qdrant" or "pinecone".
	Provider   string `yaml:"provider" mapstructure:"provider"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	APIKey     string `yaml:"apiKey,omitempty" mapstructure:"apiKey"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	ListLimit  int    `yaml:"listLimit" mapstructure:"listLimit"`
	InboxLimit int    `yaml:"inboxLimit" mapstructure:"inboxLimit"`
}

type ActivityConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Database defaults to the ledger database when empty.
	Database db.Config `yaml:"database" mapstructure:"database"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit  int      `yaml:"rateLimit" mapstructure:"rateLimit"`
	AuthTokens []string `yaml:"authTokens,omitempty" mapstructure:"authTokens"`
}

type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// Default returns the built-in configuration: semantic backend over an
// in-memory index with the local hashing embedder, so nothing needs network
// access until a provider is configured.
func Default() Config {
	return Config{
		Backend: BackendSemantic,
		Embedding: EmbeddingConfig{
			Provider:  "hashing",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-ada-002",
			Dimension: 1536,
			CacheTTL:  10 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			DefaultModel: "openai/gpt-4o-mini",
			MaxRetries:   3,
			Temperature:  0.7,
			MaxTokens:    4000,
			Timeout:      5 * time.Minute,
			Title:        "conclave",
		},
		VectorStore: VectorStoreConfig{
			Provider:   "memory",
			Collection: "conclave",
			ListLimit:  50,
			InboxLimit: 20,
		},
		Ledger: db.Config{Driver: db.SQLite, DSN: ".conclave/conclave.db"},
		Server: ServerConfig{Addr: ":8080", RateLimit: 120},
		Log:    LogConfig{Level: "info"},
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendSemantic, BackendLedger:
	default:
		errs = append(errs, fmt.Errorf("backend must be %q or %q, got %q", BackendSemantic, BackendLedger, c.Backend))
	}
	switch c.Embedding.Provider {
	case "hashing":
	case "openai", "openrouter":
		if c.Embedding.BaseURL == "" {
			errs = append(errs, errors.New("embedding.baseURL is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, errors.New("embedding.dimension must be positive"))
	}
	switch c.VectorStore.Provider {
	case "memory":
	case "qdrant", "pinecone":
		if c.VectorStore.Endpoint == "" {
			errs = append(errs, fmt.Errorf("vectorstore.endpoint is required for %s", c.VectorStore.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vectorstore.provider %q", c.VectorStore.Provider))
	}
	switch db.Dialect(c.Ledger.Driver) {
	case db.SQLite, db.MySQL:
	default:
		errs = append(errs, fmt.Errorf("unknown ledger.driver %q", c.Ledger.Driver))
	}
	if c.LLM.MaxRetries < 1 {
		errs = append(errs, errors.New("llm.maxRetries must be at least 1"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rateLimit must not be negative"))
	}
	return errors.Join(errs...)
}

// NeedsDatabase reports whether the configuration opens a SQL database.
func (c Config) NeedsDatabase() bool {
	return c.Backend == BackendLedger || c.Activity.Enabled
}

// ActivityDatabase resolves the activity sink database.
func (c Config) ActivityDatabase() db.Config {
	if c.Activity.Database.DSN == "" && c.Activity.Database.Driver == "" {
		return c.Ledger
	}
	return c.Activity.Database
}

// YAML renders c as a config file. Secrets are omitted.
func (c Config) YAML() ([]byte, error) {
	c.Embedding.APIKey = ""
	c.LLM.APIKey = ""
	c.VectorStore.APIKey = ""
	c.Server.AuthTokens = nil
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromYAML parses a config file on top of Default.
func FromYAML(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, c.Validate()
}

// envAliases are provider-native variables accepted next to CONCLAVE_*.
var envAliases = map[string][]string{
	"llm.apiKey":         {"CONCLAVE_LLM_APIKEY", "OPENROUTER_API_KEY"},
	"embedding.apiKey":   {"CONCLAVE_EMBEDDING_APIKEY", "OPENAI_API_KEY"},
	"vectorstore.apiKey": {"CONCLAVE_VECTORSTORE_APIKEY", "PINECONE_API_KEY", "QDRANT_API_KEY"},
}

// NewViper returns a viper instance seeded with Default, reading CONCLAVE_*
// environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CONCLAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	defaults := map[string]any{
		"backend":                  d.Backend,
		"mirror":                   d.Mirror,
		"embedding.provider":       d.Embedding.Provider,
		"embedding.baseURL":        d.Embedding.BaseURL,
		"embedding.apiKey":         "",
		"embedding.model":          d.Embedding.Model,
		"embedding.dimension":      d.Embedding.Dimension,
		"embedding.cacheSize":      d.Embedding.CacheSize,
		"embedding.cacheTTL":       d.Embedding.CacheTTL,
		"llm.baseURL":              d.LLM.BaseURL,
		"llm.apiKey":               "",
		"llm.defaultModel":         d.LLM.DefaultModel,
		"llm.maxRetries":           d.LLM.MaxRetries,
		"llm.temperature":          d.LLM.Temperature,
		"llm.maxTokens":            d.LLM.MaxTokens,
		"llm.timeout":              d.LLM.Timeout,
		"llm.referer":              d.LLM.Referer,
		"llm.title":                d.LLM.Title,
		"llm.priceMap":             d.LLM.PriceMap,
		"vectorstore.provider":     d.VectorStore.Provider,
		"vectorstore.endpoint":     d.VectorStore.Endpoint,
		"vectorstore.apiKey":       "",
		"vectorstore.collection":   d.VectorStore.Collection,
		"vectorstore.listLimit":    d.VectorStore.ListLimit,
		"vectorstore.inboxLimit":   d.VectorStore.InboxLimit,
		"ledger.driver":            d.Ledger.Driver,
		"ledger.dsn":               d.Ledger.DSN,
		"activity.enabled":         d.Activity.Enabled,
		"activity.database.driver": "",
		"activity.database.dsn":    "",
		"server.addr":              d.Server.Addr,
		"server.rateLimit":         d.Server.RateLimit,
		"server.authTokens":        []string{},
		"log.level":                d.Log.Level,
		"log.development":          d.Log.Development,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for key, envs := range envAliases {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// BindFlags maps command-line flags onto config keys. Flags absent from fs
// are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads path (optional) into v and decodes the merged configuration.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}
