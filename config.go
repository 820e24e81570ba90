package main

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sky-sentry/server/internal/drone"
)

// serverConfig tunes the host. Every field has a usable default; a YAML file
// only needs the fields it wants to change.
type serverConfig struct {
	Addr              string          `yaml:"addr"`
	TickRate          int             `yaml:"tickRate"`
	WorldSeed         int64           `yaml:"worldSeed"`
	ArenaHalfExtent   float64         `yaml:"arenaHalfExtent"`
	ObstacleCount     int             `yaml:"obstacleCount"`
	DummyCount        int             `yaml:"dummyCount"`
	OwnerReadySeconds float64         `yaml:"ownerReadySeconds"`
	Drone             *droneOverrides `yaml:"drone"`
}

// droneOverrides selectively replaces the documented drone defaults. Nil
// fields keep the default.
type droneOverrides struct {
	HoverOffset      *float64 `yaml:"hoverOffset"`
	MaxRange         *float64 `yaml:"maxRange"`
	EffectDurationMs *int     `yaml:"effectDurationMs"`
	EffectSegments   *int     `yaml:"effectSegments"`
	JitterMagnitude  *float64 `yaml:"jitterMagnitude"`
	FireIntervalMs   *int     `yaml:"fireIntervalMs"`
	MaxTiltDegrees   *float64 `yaml:"maxTiltDegrees"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:              ":8080",
		TickRate:          30,
		WorldSeed:         1,
		ArenaHalfExtent:   100,
		ObstacleCount:     12,
		DummyCount:        8,
		OwnerReadySeconds: 5,
	}
}

// loadServerConfig reads a YAML config. An empty path or a missing file
// falls back to the defaults; a malformed file is an error.
func loadServerConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.TickRate <= 0 {
		return cfg, fmt.Errorf("tickRate must be positive, got %d", cfg.TickRate)
	}
	droneCfg := cfg.droneConfig()
	if err := droneCfg.Validate(); err != nil {
		return cfg, fmt.Errorf("drone overrides: %w", err)
	}
	return cfg, nil
}

func (c serverConfig) ownerReadyTimeout() time.Duration {
	return time.Duration(c.OwnerReadySeconds * float64(time.Second))
}

// droneConfig merges the overrides onto the documented defaults.
func (c serverConfig) droneConfig() drone.Config {
	cfg := drone.DefaultConfig()
	o := c.Drone
	if o == nil {
		return cfg
	}
	if o.HoverOffset != nil {
		cfg.HoverOffset = *o.HoverOffset
	}
	if o.MaxRange != nil {
		cfg.MaxRange = *o.MaxRange
	}
	if o.EffectDurationMs != nil {
		cfg.EffectDuration = time.Duration(*o.EffectDurationMs) * time.Millisecond
	}
	if o.EffectSegments != nil {
		cfg.EffectSegments = *o.EffectSegments
	}
	if o.JitterMagnitude != nil {
		cfg.JitterMagnitude = *o.JitterMagnitude
	}
	if o.FireIntervalMs != nil {
		cfg.FireInterval = time.Duration(*o.FireIntervalMs) * time.Millisecond
	}
	if o.MaxTiltDegrees != nil {
		cfg.MaxTiltRadians = *o.MaxTiltDegrees * math.Pi / 180
	}
	return cfg
}
