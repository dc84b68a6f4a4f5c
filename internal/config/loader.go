package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix     = "STANDINGS_"
	EnvConfigFile = "STANDINGS_CONFIG"
	// EnvSlug names a single competition to follow when none is configured.
	EnvSlug = "KAGGLE_SLUG"
)

var validate = validator.New()

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if STANDINGS_CONFIG is set
//  3. env (prefix STANDINGS_)
//
// Kaggle credentials are resolved afterwards and are only required when an
// API-backed competition is configured.
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// STANDINGS_REFRESH_INTERVAL -> refresh_interval. Map and list keys
	// take comma separated values.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", envValue)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if len(cfg.Competitions) == 0 {
		if slug := strings.TrimSpace(os.Getenv(EnvSlug)); slug != "" {
			cfg.Competitions = map[string]float64{slug: 1}
		}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.NeedsCredentials() {
		creds, err := ResolveCredentials(&cfg)
		if err != nil {
			return nil, err
		}
		cfg.KaggleUsername, cfg.KaggleKey = creds.Username, creds.Key
	}
	return &cfg, nil
}

func envValue(key, value string) (string, any) {
	key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
	switch key {
	case "config":
		return "", nil
	case "competitions":
		pairs := ParsePairs(value, "1")
		out := make(map[string]any, len(pairs))
		for id, w := range pairs {
			out[id] = w
		}
		return key, out
	case "team_aliases":
		pairs := ParsePairs(value, "")
		out := make(map[string]any, len(pairs))
		for name, canonical := range pairs {
			if canonical != "" {
				out[name] = canonical
			}
		}
		return key, out
	case "cors_allowed_origins", "kafka_brokers":
		return key, splitList(value)
	}
	return key, value
}

// ParsePairs reads "k=v,k=v". A bare key gets def. The last '=' separates
// key and value so keys may contain any other character.
func ParsePairs(s, def string) map[string]string {
	out := make(map[string]string)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v := item, def
		if i := strings.LastIndex(item, "="); i >= 0 {
			k, v = strings.TrimSpace(item[:i]), strings.TrimSpace(item[i+1:])
		}
		if k != "" {
			out[k] = v
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
