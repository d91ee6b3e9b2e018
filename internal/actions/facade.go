// Package actions builds one-shot composite operations (navigate and wait,
// collect, fight, craft) on top of the session primitives. Nothing here holds
// state between calls; every wait is bounded.
package actions

import (
	"log/slog"
	"time"

	"minepilot.ai/internal/session"
)

type Config struct {
	// Reach is how close the avatar must be to dig or place.
	Reach float64 `yaml:"reach"`
	// MeleeRange is the strike distance for attacks.
	MeleeRange     float64       `yaml:"melee_range"`
	AttackInterval time.Duration `yaml:"attack_interval"`
	AttackTimeout  time.Duration `yaml:"attack_timeout"`
	NavTimeout     time.Duration `yaml:"nav_timeout"`
	CollectRadius  float64       `yaml:"collect_radius"`
	StationRadius  float64       `yaml:"station_radius"`
}

func DefaultConfig() Config {
	return Config{
		Reach:          4.5,
		MeleeRange:     3,
		AttackInterval: 400 * time.Millisecond,
		AttackTimeout:  60 * time.Second,
		NavTimeout:     30 * time.Second,
		CollectRadius:  64,
		StationRadius:  32,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Reach <= 0 {
		c.Reach = d.Reach
	}
	if c.MeleeRange <= 0 {
		c.MeleeRange = d.MeleeRange
	}
	if c.AttackInterval <= 0 {
		c.AttackInterval = d.AttackInterval
	}
	if c.AttackTimeout <= 0 {
		c.AttackTimeout = d.AttackTimeout
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = d.NavTimeout
	}
	if c.CollectRadius <= 0 {
		c.CollectRadius = d.CollectRadius
	}
	if c.StationRadius <= 0 {
		c.StationRadius = d.StationRadius
	}
	return c
}

type Facade struct {
	h   *session.Handle
	cfg Config
	log *slog.Logger
}

func New(h *session.Handle, cfg Config, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{h: h, cfg: cfg.withDefaults(), log: logger.With("component", "actions")}
}

func (f *Facade) Session() *session.Handle { return f.h }

func (f *Facade) Config() Config { return f.cfg }
