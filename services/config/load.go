//go:build !rp2040 && !rp2350

package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"

	"hubdrive-go/errcode"
)

// Load builds a configuration from the board defaults, an optional YAML file
// and HUBDRIVE_* environment overrides, in that order, and validates it.
func Load(path string) (Config, error) {
	board := os.Getenv(EnvPrefix + "BOARD")
	cfg, err := ForBoard(board)
	if err != nil {
		return cfg, err
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, &errcode.E{C: errcode.InvalidParams, Op: "config.load", Msg: "read " + path, Err: err}
		}
		if cfg, err = Parse(b, cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse overlays YAML onto base. Unknown keys are rejected. A board key
// different from base's switches to that board's defaults first.
func Parse(b []byte, base Config) (Config, error) {
	var probe struct {
		Board string `yaml:"board"`
	}
	if err := yaml.Unmarshal(b, &probe); err != nil {
		return base, &errcode.E{C: errcode.InvalidParams, Op: "config.parse", Msg: "yaml", Err: err}
	}
	if probe.Board != "" && probe.Board != base.Board {
		nb, err := ForBoard(probe.Board)
		if err != nil {
			return base, err
		}
		base = nb
	}
	cfg := base
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return base, &errcode.E{C: errcode.InvalidParams, Op: "config.parse", Msg: "yaml", Err: err}
	}
	return cfg, nil
}

// ApplyEnv overlays HUBDRIVE_* variables. A nil environ reads the process
// environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return &errcode.E{C: errcode.InvalidParams, Op: "config.env", Msg: "environment", Err: err}
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) { return yaml.Marshal(cfg) }
