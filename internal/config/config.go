// Package config loads the platform's runtime configuration from a YAML
// file and environment variable overrides, following the same viper-based
// layering the rest of the stack uses.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rishabhvenu/LeetBattle-sub000/pkg/botsim"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/coordination"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/matchmaking"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/models"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/resilience"
	"github.com/rishabhvenu/LeetBattle-sub000/pkg/session"
)

// Config holds the complete application configuration.
type Config struct {
	Redis       coordination.Config `mapstructure:"redis"`
	Matchmaking MatchmakingConfig   `mapstructure:"matchmaking"`
	Session     SessionConfig       `mapstructure:"session"`
	Rating      RatingConfig        `mapstructure:"rating"`
	Sandbox     SandboxConfig       `mapstructure:"sandbox"`
	Complexity  ComplexityConfig    `mapstructure:"complexity"`
	Bots        BotsConfig          `mapstructure:"bots"`
}

// MatchmakingConfig mirrors matchmaking.Config's mapstructure-friendly shape.
type MatchmakingConfig struct {
	MinQueueWaitMs      int           `mapstructure:"min_queue_wait_ms"`
	EloThresholdInitial int           `mapstructure:"queue_elo_threshold_initial"`
	EloThresholdStep    int           `mapstructure:"queue_elo_threshold_step"`
	EloThresholdMax     int           `mapstructure:"queue_elo_threshold_max"`
	BotMatchDelayMs     int64         `mapstructure:"queue_bot_match_delay_ms"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	NeedsBotDelay       time.Duration `mapstructure:"needs_bot_delay"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	PlaceholderTTL      time.Duration `mapstructure:"placeholder_ttl"`
}

// ToMatchmaking converts the loaded values into matchmaking.Config.
func (m MatchmakingConfig) ToMatchmaking() matchmaking.Config {
	return matchmaking.Config{
		MinQueueWaitMs:      int64(m.MinQueueWaitMs),
		EloThresholdInitial: m.EloThresholdInitial,
		EloThresholdStep:    m.EloThresholdStep,
		EloThresholdMax:     m.EloThresholdMax,
		BotMatchDelayMs:     m.BotMatchDelayMs,
		SweepInterval:       m.SweepInterval,
		NeedsBotDelay:       m.NeedsBotDelay,
		LockTTL:             m.LockTTL,
		PlaceholderTTL:      m.PlaceholderTTL,
	}
}

// SessionConfig mirrors session.Config.
type SessionConfig struct {
	MaxMatchDurationMs    int64         `mapstructure:"max_match_duration_ms"`
	DisposalSweepInterval time.Duration `mapstructure:"disposal_sweep_interval"`
	SubmissionCacheTTLS   int           `mapstructure:"submission_cache_ttl_s"`
}

// ToSession converts the loaded values into session.Config, grafting in the
// bot-timing distribution config loaded separately under BotsConfig.
func (s SessionConfig) ToSession(bots BotsConfig) session.Config {
	cfg := session.DefaultConfig()
	cfg.MaxMatchDuration = time.Duration(s.MaxMatchDurationMs) * time.Millisecond
	if s.DisposalSweepInterval > 0 {
		cfg.DisposalSweepInterval = s.DisposalSweepInterval
	}
	cfg.SubmissionCacheTTL = time.Duration(s.SubmissionCacheTTLS) * time.Second
	cfg.BotTimeDist = bots.TimeDist
	cfg.BotTimeParams = bots.TimeParams
	return cfg
}

// RatingConfig exposes the ELO tuning knobs the rating package otherwise
// hardcodes as package-level constants.
type RatingConfig struct {
	KFactor       int     `mapstructure:"k_factor"`
	GaussianSigma float64 `mapstructure:"gaussian_sigma"`
	TargetEasy    float64 `mapstructure:"difficulty_target_easy"`
	TargetMedium  float64 `mapstructure:"difficulty_target_medium"`
	TargetHard    float64 `mapstructure:"difficulty_target_hard"`
}

// Targets builds the models.Difficulty -> target ELO map from the loaded values.
func (r RatingConfig) Targets() map[models.Difficulty]float64 {
	return map[models.Difficulty]float64{
		models.DifficultyEasy:   r.TargetEasy,
		models.DifficultyMedium: r.TargetMedium,
		models.DifficultyHard:   r.TargetHard,
	}
}

// SandboxConfig configures the Judge0-style code execution client.
type SandboxConfig struct {
	BaseURL        string                          `mapstructure:"base_url"`
	APIKey         string                          `mapstructure:"api_key"`
	CircuitBreaker resilience.CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// ComplexityConfig configures the LLM-backed complexity verifier.
type ComplexityConfig struct {
	BaseURL        string                          `mapstructure:"base_url"`
	APIKey         string                          `mapstructure:"api_key"`
	Model          string                          `mapstructure:"model"`
	CircuitBreaker resilience.CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// BotsConfig controls whether simulated bot opponents are deployed at all,
// and how their completion times are sampled per difficulty.
type BotsConfig struct {
	Enabled    bool                                 `mapstructure:"enabled"`
	TimeDist   botsim.Distribution                  `mapstructure:"time_dist"`
	TimeParams map[models.Difficulty]botsim.Params  `mapstructure:"-"`
	Easy       BotTimeParamsConfig                  `mapstructure:"time_params_easy"`
	Medium     BotTimeParamsConfig                  `mapstructure:"time_params_medium"`
	Hard       BotTimeParamsConfig                  `mapstructure:"time_params_hard"`
}

// BotTimeParamsConfig is one difficulty bucket's distribution parameters.
type BotTimeParamsConfig struct {
	A float64 `mapstructure:"a"`
	B float64 `mapstructure:"b"`
}

func (b BotTimeParamsConfig) toParams() botsim.Params {
	return botsim.Params{A: b.A, B: b.B}
}

// Load reads configuration from file and environment variables. The config
// file path defaults to configs/config.yaml but can be overridden with
// MATCHCORE_CONFIG_FILE; every key can also be set directly as an
// MATCHCORE_-prefixed environment variable.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := os.Getenv("MATCHCORE_CONFIG_FILE")
	if configFile == "" {
		configFile = "configs/config.yaml"
	}
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.Bots.TimeParams = map[models.Difficulty]botsim.Params{
		models.DifficultyEasy:   cfg.Bots.Easy.toParams(),
		models.DifficultyMedium: cfg.Bots.Medium.toParams(),
		models.DifficultyHard:   cfg.Bots.Hard.toParams(),
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", 10*time.Second)
	v.SetDefault("redis.read_timeout", 5*time.Second)
	v.SetDefault("redis.write_timeout", 5*time.Second)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("matchmaking.min_queue_wait_ms", 3000)
	v.SetDefault("matchmaking.queue_elo_threshold_initial", 50)
	v.SetDefault("matchmaking.queue_elo_threshold_step", 50)
	v.SetDefault("matchmaking.queue_elo_threshold_max", 250)
	v.SetDefault("matchmaking.queue_bot_match_delay_ms", 45000)
	v.SetDefault("matchmaking.sweep_interval", 5*time.Second)
	v.SetDefault("matchmaking.needs_bot_delay", 7*time.Second)
	v.SetDefault("matchmaking.lock_ttl", 10*time.Second)
	v.SetDefault("matchmaking.placeholder_ttl", 60*time.Second)

	v.SetDefault("session.max_match_duration_ms", 45*60*1000)
	v.SetDefault("session.disposal_sweep_interval", time.Minute)
	v.SetDefault("session.submission_cache_ttl_s", 3600)

	v.SetDefault("rating.k_factor", 32)
	v.SetDefault("rating.gaussian_sigma", 250.0)
	v.SetDefault("rating.difficulty_target_easy", 1200.0)
	v.SetDefault("rating.difficulty_target_medium", 1500.0)
	v.SetDefault("rating.difficulty_target_hard", 2000.0)

	v.SetDefault("sandbox.base_url", "http://localhost:2358")
	v.SetDefault("sandbox.circuit_breaker.failure_threshold", 5)
	v.SetDefault("sandbox.circuit_breaker.reset_timeout", 30*time.Second)

	v.SetDefault("complexity.model", "gpt-4o-mini")
	v.SetDefault("complexity.circuit_breaker.failure_threshold", 5)
	v.SetDefault("complexity.circuit_breaker.reset_timeout", 30*time.Second)

	v.SetDefault("bots.enabled", true)
	v.SetDefault("bots.time_dist", "lognormal")
	v.SetDefault("bots.time_params_easy.a", 4.5)
	v.SetDefault("bots.time_params_easy.b", 0.4)
	v.SetDefault("bots.time_params_medium.a", 5.5)
	v.SetDefault("bots.time_params_medium.b", 0.45)
	v.SetDefault("bots.time_params_hard.a", 6.3)
	v.SetDefault("bots.time_params_hard.b", 0.5)
}
