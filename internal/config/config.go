// Package config defines service configuration and its loading.
//
// Conventions:
//   - Keys are flat snake_case so YAML and STANDINGS_* env vars share names.
//   - New(ctx) returns defaults; Load(ctx) layers file and env on top and
//     validates the result.
package config

import (
	"context"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// RefreshInterval is the pause between two poll cycles.
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`

	// Competitions maps competition identifiers to their weight.
	Competitions map[string]float64 `koanf:"competitions" validate:"dive,keys,required,endkeys,gte=0"`

	// FilePrefix marks identifiers served from CSV files in DataDir.
	FilePrefix string `koanf:"file_prefix" validate:"required"`
	DataDir    string `koanf:"data_dir"`

	// Leaderboard API client.
	APIBaseURL     string        `koanf:"api_base_url" validate:"required,url"`
	APITimeout     time.Duration `koanf:"api_timeout" validate:"gt=0"`
	APIRateLimit   float64       `koanf:"api_rate_limit" validate:"gt=0"`
	APIBurst       int           `koanf:"api_burst" validate:"min=1"`
	KaggleUsername string        `koanf:"kaggle_username"`
	KaggleKey      string        `koanf:"kaggle_key"`

	// ScoringMode is exponential or linear. Zero base or decay rate keeps
	// the policy default.
	ScoringMode      string  `koanf:"scoring_mode" validate:"oneof=exponential linear"`
	ScoringBase      float64 `koanf:"scoring_base" validate:"gte=0"`
	ScoringDecayRate float64 `koanf:"scoring_decay_rate" validate:"gte=0"`

	// ReportRemovals emits a change event for teams that left a leaderboard.
	ReportRemovals bool `koanf:"report_removals"`

	// FetchConcurrency bounds parallel fetches within one poll cycle.
	FetchConcurrency int `koanf:"fetch_concurrency" validate:"min=1,max=64"`

	// TeamAliases maps a team name to the canonical name it is ranked under.
	TeamAliases map[string]string `koanf:"team_aliases"`

	// FoldTeamNames merges team names that differ only in case.
	FoldTeamNames bool `koanf:"fold_team_names"`

	// SimilarNameDistance reports team names within this edit distance on
	// /stats. Zero disables the report.
	SimilarNameDistance int `koanf:"similar_name_distance" validate:"gte=0,max=10"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"min=1"`

	// CORSAllowedOrigins lists origins allowed to call the API.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Redis snapshot mirror, disabled when RedisAddr is empty.
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"gte=0"`
	RedisPrefix   string        `koanf:"redis_prefix"`
	RedisTTL      time.Duration `koanf:"redis_ttl" validate:"gte=0"`

	// Kafka change publisher, disabled when KafkaBrokers is empty.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic" validate:"required_with=KafkaBrokers"`
}

// New returns a Config holding the defaults. Context is accepted first to
// match the rest of the package and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":5000",
		RefreshInterval:     30 * time.Second,
		Competitions:        map[string]float64{},
		FilePrefix:          "file:",
		DataDir:             "data",
		APIBaseURL:          "https://www.kaggle.com/api/v1",
		APITimeout:          30 * time.Second,
		APIRateLimit:        1,
		APIBurst:            2,
		ScoringMode:         "exponential",
		ScoringDecayRate:    0.2,
		FetchConcurrency:    1,
		TeamAliases:         map[string]string{},
		MaxLeaderboardLimit: 1000,
		CORSAllowedOrigins:  []string{"*"},
		RedisPrefix:         "standings:",
		KafkaTopic:          "standings.changes",
	}
}

// IsFileBacked reports whether id is served from a CSV file.
func (c *Config) IsFileBacked(id string) bool {
	return strings.HasPrefix(id, c.FilePrefix)
}

// NeedsCredentials reports whether any configured competition is served by
// the leaderboard API.
func (c *Config) NeedsCredentials() bool {
	for id := range c.Competitions {
		if !c.IsFileBacked(id) {
			return true
		}
	}
	return false
}
