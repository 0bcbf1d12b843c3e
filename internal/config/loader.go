package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if strings.ContainsAny(cfg.Bot.Prefix, " \t") {
		errs = append(errs, fmt.Errorf("bot.prefix %q must not contain whitespace", cfg.Bot.Prefix))
	}

	if cfg.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgres_dsn is required"))
	}

	if cfg.Discord.Token == "" && cfg.Twitch.Nick == "" {
		errs = append(errs, errors.New("at least one platform must be configured (discord.token or twitch.nick)"))
	}

	if cfg.Twitch.Nick != "" {
		if cfg.Twitch.Token == "" {
			errs = append(errs, errors.New("twitch.token is required when twitch.nick is set"))
		}
		if len(cfg.Twitch.Channels) == 0 {
			errs = append(errs, errors.New("twitch.channels must list at least one channel when twitch.nick is set"))
		}
	}

	if cfg.Model.Order < 0 {
		errs = append(errs, fmt.Errorf("model.order %d must not be negative", cfg.Model.Order))
	}
	if cfg.Model.MinLength < 0 {
		errs = append(errs, fmt.Errorf("model.min_length %d must not be negative", cfg.Model.MinLength))
	}
	if cfg.Model.RebuildEvery < 0 {
		errs = append(errs, fmt.Errorf("model.rebuild_every %d must not be negative", cfg.Model.RebuildEvery))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
	}
	return nil
}
