package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if AISURU_CONFIG is set
//  3. env (prefix AISURU_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("AISURU_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: AISURU_ADDR, AISURU_REDIS_ADDR, ...
	// Map env keys like AISURU_REDIS_ADDR -> redis_addr (flat keys).
	// Underscores are preserved to match koanf tags on the struct.
	envProvider := env.Provider("AISURU_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "aisuru_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy.
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.ExternalTimeoutMS <= 0 {
		return nil, fmt.Errorf("%w: external_timeout_ms must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
