package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port" env:"PORT"`
		AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
		TTL      string `yaml:"ttl" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"DATABASE_URL"`
	} `yaml:"postgres"`
	Questions struct {
		TTL string `yaml:"ttl" env:"QUESTIONS_TTL"`
	} `yaml:"questions"`
	Match struct {
		Topic            string `yaml:"topic" env:"MATCH_TOPIC"`
		Difficulty       string `yaml:"difficulty" env:"MATCH_DIFFICULTY"`
		QuestionCount    int    `yaml:"question_count" env:"MATCH_QUESTION_COUNT"`
		CountdownSeconds int    `yaml:"countdown_seconds" env:"MATCH_COUNTDOWN_SECONDS"`
		RoundSeconds     int    `yaml:"round_seconds" env:"MATCH_ROUND_SECONDS"`
		RevealDelay      string `yaml:"reveal_delay" env:"MATCH_REVEAL_DELAY"`
		AbandonPenalty   int    `yaml:"abandon_penalty" env:"MATCH_ABANDON_PENALTY"`
		WriteTimeout     string `yaml:"write_timeout" env:"MATCH_WRITE_TIMEOUT"`
	} `yaml:"match"`
}

// Load reads YAML config from path and applies environment overrides. A
// missing file yields an empty config.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
