// Package config reads runtime settings from LOOPLINE_* environment
// variables. Command-line flags override what is read here.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Dicklesworthstone/loopline/pkg/engine"
)

// Config is the resolved runtime configuration.
type Config struct {
	Engine        engine.Config
	LogFile       string
	Journal       string
	WatchDebounce time.Duration
}

// loopEnv holds raw env values.
type loopEnv struct {
	Speed         float64 `env:"LOOPLINE_SPEED"             envDefault:"1.0"`
	BaseRate      float64 `env:"LOOPLINE_BASE_RATE"         envDefault:"1.5"`
	TickMS        int     `env:"LOOPLINE_TICK_MS"           envDefault:"16"`
	ClockMS       int     `env:"LOOPLINE_CLOCK_MS"          envDefault:"100"`
	StartDelayMS  int     `env:"LOOPLINE_START_DELAY_MS"    envDefault:"600"`
	ThrottleMS    int     `env:"LOOPLINE_THROTTLE_MS"       envDefault:"100"`
	WatchDebounce int     `env:"LOOPLINE_WATCH_DEBOUNCE_MS" envDefault:"200"`
	LogFile       string  `env:"LOOPLINE_LOG_FILE"`
	Journal       string  `env:"LOOPLINE_JOURNAL"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// FromMap reads settings from vars instead of the process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

// Default returns the configuration of an empty environment.
func Default() Config {
	cfg, _ := FromMap(map[string]string{})
	return cfg
}

func parse(opts env.Options) (Config, error) {
	var raw loopEnv
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	for name, ms := range map[string]int{
		"LOOPLINE_TICK_MS":           raw.TickMS,
		"LOOPLINE_CLOCK_MS":          raw.ClockMS,
		"LOOPLINE_THROTTLE_MS":       raw.ThrottleMS,
		"LOOPLINE_WATCH_DEBOUNCE_MS": raw.WatchDebounce,
	} {
		if ms <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %d", name, ms)
		}
	}
	if raw.StartDelayMS < 0 {
		return Config{}, fmt.Errorf("LOOPLINE_START_DELAY_MS must not be negative, got %d", raw.StartDelayMS)
	}
	if raw.BaseRate <= 0 {
		return Config{}, fmt.Errorf("LOOPLINE_BASE_RATE must be positive, got %v", raw.BaseRate)
	}

	ec := engine.DefaultConfig()
	ec.Speed = engine.ClampSpeed(raw.Speed)
	ec.BaseRate = raw.BaseRate
	ec.TickInterval = ms(raw.TickMS)
	ec.ClockInterval = ms(raw.ClockMS)
	ec.StartDelay = ms(raw.StartDelayMS)
	ec.ThrottleWindow = ms(raw.ThrottleMS)

	return Config{
		Engine:        ec,
		LogFile:       raw.LogFile,
		Journal:       raw.Journal,
		WatchDebounce: ms(raw.WatchDebounce),
	}, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
