// Package config loads the gateway configuration from an optional YAML
// file with environment-variable overrides for secrets. The result is an
// explicit struct constructed once in main and passed by reference; there
// is no package-level singleton.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds every tunable of the gateway.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `koanf:"addr"`

	// DataDir holds the JSON stores (sessions, ledger, contexts).
	DataDir string `koanf:"data-dir"`

	// DefaultModel is the provider used when the caller names no model or
	// an unrecognized one. Omitting `model` never skips processing.
	DefaultModel string `koanf:"default-model"`

	// SystemPrompt, when set, is passed to providers as the top-level
	// system field on every request.
	SystemPrompt string `koanf:"system-prompt"`

	MistralAPIKey   string `koanf:"mistral-api-key"`
	AnthropicAPIKey string `koanf:"anthropic-api-key"`

	// DefaultRecipient receives usage attribution and minted tokens when
	// the caller supplies no wallet address.
	DefaultRecipient string `koanf:"default-recipient"`

	// GatedContext names the premium context subject to the free-use
	// quota; empty disables gating.
	GatedContext string `koanf:"gated-context"`
	FreeUses     int    `koanf:"free-uses"`

	// RateLimit requests per RatePeriod per client on POST /ask.
	RateLimit  int           `koanf:"rate-limit"`
	RatePeriod time.Duration `koanf:"rate-period"`

	// UploadMaxBytes caps the optional markdown attachment on /ask.
	UploadMaxBytes int64 `koanf:"upload-max-bytes"`

	// JWTSecret signs subscription tokens issued after a SIWE verify.
	JWTSecret string `koanf:"jwt-secret"`

	// Chain settings for the mint side effect.
	Network       string `koanf:"network"`
	ExplorerBase  string `koanf:"explorer-base"`
	RPCURL        string `koanf:"rpc-url"`
	ChainID       int64  `koanf:"chain-id"`
	MintContract  string `koanf:"mint-contract"`
	MintAmountWei string `koanf:"mint-amount-wei"`
	MinterKey     string `koanf:"minter-key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		DataDir:        "data",
		DefaultModel:   "anthropic",
		FreeUses:       3,
		RateLimit:      20,
		RatePeriod:     time.Minute,
		UploadMaxBytes: 512 << 10, // 512 KiB
		Network:        "sepolia",
		ExplorerBase:   "https://sepolia.etherscan.io",
		ChainID:        11155111,
		MintAmountWei:  "1000000000000000000",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if it exists), then environment variables for the secret material.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			k := koanf.New(".")
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", path, err)
			}
			if err := k.Unmarshal("", cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv lets the environment override the secrets that should never sit
// in a config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MISTRAL_API_KEY"); v != "" {
		cfg.MistralAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("MINTER_KEY"); v != "" {
		cfg.MinterKey = v
	}
}
