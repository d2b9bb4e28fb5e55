// Package config loads and validates the poe configuration file.
//
// The file is YAML. Unknown keys are rejected, and the decoded values are
// checked against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Defaults.
const (
	DefaultDatabase         = "poe.db"
	DefaultMaxBytesInHash   = 64
	DefaultBlockWeightLimit = 1_000_000
	DefaultLogLevel         = "info"

	// MinBlockWeightLimit fits one revoke, the heaviest call.
	MinBlockWeightLimit = 10_000
)

// Config is the runtime configuration.
type Config struct {
	Database         string `yaml:"database" json:"database"`
	MaxBytesInHash   uint32 `yaml:"max_bytes_in_hash" json:"max_bytes_in_hash"`
	BlockWeightLimit uint64 `yaml:"block_weight_limit" json:"block_weight_limit"`
	LogLevel         string `yaml:"log_level" json:"log_level"`

	// MetricsTextfile, when set, receives the metrics in Prometheus text
	// format after every command.
	MetricsTextfile string `yaml:"metrics_textfile,omitempty" json:"metrics_textfile,omitempty"`

	AMQP AMQP `yaml:"amqp,omitempty" json:"amqp"`
}

// AMQP configures the event publisher. Publishing is disabled when URL is empty.
type AMQP struct {
	URL   string `yaml:"url,omitempty" json:"url,omitempty"`
	Queue string `yaml:"queue,omitempty" json:"queue,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:         DefaultDatabase,
		MaxBytesInHash:   DefaultMaxBytesInHash,
		BlockWeightLimit: DefaultBlockWeightLimit,
		LogLevel:         DefaultLogLevel,
	}
}

// Load reads the file at path over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := decode(f, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from r over the defaults and validates the result.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration against the schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
