// Package behavior holds the catalog of autonomous background behaviors and
// the scheduler that runs them against the shared session.
package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"minepilot.ai/internal/actions"
	"minepilot.ai/internal/session"
)

// Env is what a tick gets to work with. Logger is already tagged with the
// behavior name.
type Env struct {
	Session *session.Handle
	Actions *actions.Facade
	Logger  *slog.Logger
}

type TickFunc[C any] func(ctx context.Context, env Env, cfg *Config[C]) error

// Definition is an immutable catalog entry.
type Definition struct {
	Name        string
	Description string
	Interval    time.Duration

	newConfig func() (configValue, error)
	tick      func(ctx context.Context, env Env, cfg configValue) error
}

// Define builds a Definition whose configuration is the struct type C.
// Fields of C are addressed by their json names in overrides.
func Define[C any](name, description string, interval time.Duration, defaults C, tick TickFunc[C]) Definition {
	return Definition{
		Name:        name,
		Description: description,
		Interval:    interval,
		newConfig: func() (configValue, error) {
			return newConfig(defaults)
		},
		tick: func(ctx context.Context, env Env, cfg configValue) error {
			typed, ok := cfg.(*Config[C])
			if !ok {
				return fmt.Errorf("behavior %s: config has type %T", name, cfg)
			}
			return tick(ctx, env, typed)
		},
	}
}

// Defaults returns the default configuration as plain values.
func (d Definition) Defaults() map[string]any {
	cfg, err := d.newConfig()
	if err != nil {
		return map[string]any{}
	}
	return cfg.snapshot()
}

type Registry struct {
	defs   []Definition
	byName map[string]int
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(defs))}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("behavior with empty name")
		}
		if d.Interval <= 0 {
			return nil, fmt.Errorf("behavior %s: interval must be positive", d.Name)
		}
		if d.tick == nil || d.newConfig == nil {
			return nil, fmt.Errorf("behavior %s: not built with Define", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("behavior %s registered twice", d.Name)
		}
		if _, err := d.newConfig(); err != nil {
			return nil, fmt.Errorf("behavior %s: %w", d.Name, err)
		}
		r.byName[d.Name] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// DefaultRegistry holds the built-in behaviors.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtins()...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Get(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Names lists behaviors in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.Name
	}
	return out
}

func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.defs...)
}

// RunRecord is the persisted form of a run state.
type RunRecord struct {
	Name      string          `json:"name"`
	Enabled   bool            `json:"enabled"`
	Config    json.RawMessage `json:"config"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunStore persists run states so enabled behaviors survive a restart.
type RunStore interface {
	SaveRun(ctx context.Context, rec RunRecord) error
	LoadRuns(ctx context.Context) ([]RunRecord, error)
}

// Observer is told about every finished tick.
type Observer interface {
	ObserveTick(behavior string, took time.Duration, err error)
}
