// Package config loads knoldeck settings from defaults, a YAML file, the
// environment and command-line flags, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knoldeck/internal/policy"
)

const (
	// EnvPrefix starts every environment override. A double underscore
	// separates nested keys: KNOLDECK_POLICY__NEW_CARDS_PER_DAY.
	EnvPrefix = "KNOLDECK_"

	DefaultFile = "knoldeck.yaml"
)

// Config is the full application configuration.
type Config struct {
	DB       string        `koanf:"db" validate:"required"`
	Addr     string        `koanf:"addr" validate:"required"`
	Timezone string        `koanf:"timezone" validate:"required,timezone|eq=Local"`
	ReposDir string        `koanf:"repos_dir" validate:"required"`
	LogLevel string        `koanf:"log_level" validate:"oneof=debug info warn error"`
	Digest   Digest        `koanf:"digest"`
	Policy   policy.Policy `koanf:"policy"`
}

// Digest configures the daily maintenance job.
type Digest struct {
	Enabled  bool   `koanf:"enabled"`
	At       string `koanf:"at" validate:"required,datetime=15:04"`
	KeepDays int    `koanf:"keep_days" validate:"gte=1"`
}

// Options says where to look for settings.
type Options struct {
	// File is the YAML config path. A missing file is an error only when
	// FileRequired is set.
	File         string
	FileRequired bool
	// EnvFiles are dotenv files loaded into the process environment first.
	// Missing ones are skipped; variables already set are not overwritten.
	EnvFiles []string
	Flags    *pflag.FlagSet
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func defaults() map[string]any {
	p := policy.Default()
	return map[string]any{
		"db":               "knoldeck.db",
		"addr":             ":8080",
		"timezone":         "Local",
		"repos_dir":        "repos",
		"log_level":        "info",
		"digest.enabled":   true,
		"digest.at":        "04:00",
		"digest.keep_days": 90,

		"policy.new_cards_per_day":   p.NewCardsPerDay,
		"policy.reviews_per_day":     p.ReviewsPerDay,
		"policy.graduating_interval": p.GraduatingInterval,
		"policy.easy_interval":       p.EasyInterval,
		"policy.starting_ease":       p.StartingEase,
		"policy.interval_modifier":   p.IntervalModifier,
		"policy.hard_multiplier":     p.HardMultiplier,
		"policy.easy_bonus":          p.EasyBonus,
		"policy.maximum_interval":    p.MaximumInterval,
		"policy.leech_threshold":     p.LeechThreshold,
		"policy.leech_action":        string(p.LeechAction),
		"policy.learning_steps":      p.LearningSteps,
		"policy.new_order":           string(p.NewOrder),
	}
}

// envKey maps KNOLDECK_POLICY__LEARNING_STEPS to policy.learning_steps.
// List values are comma separated.
func envKey(key, value string) (string, any) {
	k := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	k = strings.ReplaceAll(k, "__", ".")
	if strings.HasSuffix(k, "learning_steps") {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return k, parts
	}
	return k, value
}

// flagKey maps --repos-dir to repos_dir. Flags that are not settings are skipped.
func flagKey(flags *pflag.FlagSet) func(f *pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		switch f.Name {
		case "config", "env-file", "help":
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	}
}

// Load builds the configuration described by opts and validates it.
func Load(opts Options) (Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
		slog.Debug("loaded env file", "path", f)
	}

	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if opts.File != "" {
		err := k.Load(file.Provider(opts.File), yaml.Parser())
		switch {
		case err == nil:
			slog.Debug("loaded config file", "path", opts.File)
		case errors.Is(err, fs.ErrNotExist) && !opts.FileRequired:
		default:
			return Config{}, fmt.Errorf("failed to load config file %s: %w", opts.File, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey(opts.Flags)), nil); err != nil {
			return Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Location returns the time zone that splits study days.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// BindFlags registers the command-line settings on flags.
func BindFlags(flags *pflag.FlagSet) {
	d := defaults()
	flags.String("config", DefaultFile, "Path to the YAML config file")
	flags.StringSlice("env-file", []string{".env"}, "Dotenv files to load before reading the environment")
	flags.String("db", d["db"].(string), "Path to the SQLite database file")
	flags.String("addr", d["addr"].(string), "HTTP listen address for serve")
	flags.String("timezone", d["timezone"].(string), "IANA time zone that decides when a study day starts")
	flags.String("repos-dir", d["repos_dir"].(string), "Directory for git source checkouts")
	flags.String("log-level", d["log_level"].(string), "Log level: debug, info, warn or error")
}

// OptionsFromFlags reads the --config and --env-file flags registered by BindFlags.
func OptionsFromFlags(flags *pflag.FlagSet) Options {
	opts := Options{File: DefaultFile, EnvFiles: []string{".env"}, Flags: flags}
	if f := flags.Lookup("config"); f != nil {
		opts.File = f.Value.String()
		opts.FileRequired = f.Changed
	}
	if files, err := flags.GetStringSlice("env-file"); err == nil {
		opts.EnvFiles = files
	}
	return opts
}
