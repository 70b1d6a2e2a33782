package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
	"github.com/wattplan/wattplan/core/planner"
	"github.com/wattplan/wattplan/core/simulator"
	"github.com/wattplan/wattplan/infra/mqtt"
)

type Config struct {
	Simulator simulator.Config     `json:"simulator"`
	Planner   planner.HybridConfig `json:"planner"`
	Guard     GuardConfig          `json:"guard"`
	Forecast  ForecastConfig       `json:"forecast"`
	Metrics   coremetrics.Config   `json:"metrics"`
	MQTT      mqtt.Config          `json:"mqtt"`
}

// GuardConfig defines the mode-guard lock window.
type GuardConfig struct {
	// LockMinutes locks the first minutes of each plan to the modes
	// committed by the previous cycle. 0 disables the guard.
	LockMinutes int `json:"lock_minutes"`
}

// SetDefaults applies sane defaults.
func (c *GuardConfig) SetDefaults() {
	if c.LockMinutes == 0 {
		c.LockMinutes = 30
	}
}

// ForecastConfig locates the forecast input and the replanning cadence.
type ForecastConfig struct {
	// Path is the JSON forecast file read on every planning cycle.
	Path string `json:"path"`
	// ReplanMinutes is the wall-clock interval between planning runs.
	ReplanMinutes int `json:"replan_minutes"`
}

// SetDefaults applies sane defaults.
func (c *ForecastConfig) SetDefaults() {
	if c.ReplanMinutes == 0 {
		c.ReplanMinutes = 15
	}
}

// Validate checks mandatory fields.
func (c ForecastConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("forecast path is required")
	}
	return nil
}

// Load reads the configuration file, applies WP_ environment overrides and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("WP_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "wp_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Simulator.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Guard.SetDefaults()
	cfg.Forecast.SetDefaults()
	cfg.MQTT.SetDefaults()
	if err := cfg.Simulator.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Planner.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Forecast.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
