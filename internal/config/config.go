package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all synapse configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" toml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" toml:"database"`
	LLM       LLMConfig       `mapstructure:"llm" toml:"llm"`
	Analysis  AnalysisConfig  `mapstructure:"analysis" toml:"analysis"`
	Synthesis SynthesisConfig `mapstructure:"synthesis" toml:"synthesis"`
}

type ServerConfig struct {
	Bind string `mapstructure:"bind" toml:"bind"`
	Port int    `mapstructure:"port" toml:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type LLMConfig struct {
	Provider     string `mapstructure:"provider" toml:"provider"` // "anthropic", "ollama"
	Model        string `mapstructure:"model" toml:"model"`
	OllamaURL    string `mapstructure:"ollama_url" toml:"ollama_url"`
	OllamaModel  string `mapstructure:"ollama_model" toml:"ollama_model"`
	AnthropicKey string `mapstructure:"anthropic_key" toml:"anthropic_key"`
}

// AnalysisConfig carries the relationship-analysis tunables. The expansion
// bounds are load-bearing: they keep the extended-network traversal
// polynomial. Treat them as contract, not as incidental limits.
type AnalysisConfig struct {
	SimilarityThreshold float64            `mapstructure:"similarity_threshold" toml:"similarity_threshold"`
	TemporalWindowHours int                `mapstructure:"temporal_window_hours" toml:"temporal_window_hours"`
	MaxConnections      int                `mapstructure:"max_connections" toml:"max_connections"`
	MaxDepth            int                `mapstructure:"max_depth" toml:"max_depth"`
	BranchLimit         int                `mapstructure:"branch_limit" toml:"branch_limit"`
	SecondaryLimit      int                `mapstructure:"secondary_limit" toml:"secondary_limit"`
	Weights             map[string]float64 `mapstructure:"weights" toml:"weights"` // per-signal; empty = equal weights
}

// SynthesisConfig carries the synthesis and clustering tunables.
type SynthesisConfig struct {
	MaxChainLength     int     `mapstructure:"max_chain_length" toml:"max_chain_length"`
	ChainThreshold     float64 `mapstructure:"chain_threshold" toml:"chain_threshold"`
	CausalityThreshold float64 `mapstructure:"causality_threshold" toml:"causality_threshold"`
	ClusterSeed        int64   `mapstructure:"cluster_seed" toml:"cluster_seed"`
	MaxTokens          int     `mapstructure:"max_tokens" toml:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature" toml:"temperature"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38080,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider: "anthropic",
		},
		Analysis: AnalysisConfig{
			SimilarityThreshold: 0.3,
			TemporalWindowHours: 24,
			MaxConnections:      50,
			MaxDepth:            2,
			BranchLimit:         10,
			SecondaryLimit:      5,
		},
		Synthesis: SynthesisConfig{
			MaxChainLength:     5,
			ChainThreshold:     0.3,
			CausalityThreshold: 0.5,
			ClusterSeed:        1,
			MaxTokens:          2048,
			Temperature:        0.3,
		},
	}
}

// Load reads configuration from the given file (optional), environment
// variables prefixed SYNAPSE_, and defaults, in increasing precedence of
// file < env.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("synapse")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	// ANTHROPIC_API_KEY is the conventional env var; honor it directly.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.LLM.AnthropicKey == "" {
		cfg.LLM.AnthropicKey = key
	}

	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
