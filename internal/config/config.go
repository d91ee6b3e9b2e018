// Package config loads minepilot.yaml and applies MINEPILOT_* environment
// overrides on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"minepilot.ai/internal/actions"
	"minepilot.ai/internal/session"
	"minepilot.ai/internal/world"
)

type Config struct {
	World     World          `yaml:"world"`
	MCP       MCP            `yaml:"mcp"`
	Chat      Chat           `yaml:"chat"`
	Behaviors Behaviors      `yaml:"behaviors"`
	Storage   Storage        `yaml:"storage"`
	Log       Log            `yaml:"log"`
	Actions   actions.Config `yaml:"actions"`
}

type World struct {
	GatewayURL     string                `yaml:"gateway_url"`
	Host           string                `yaml:"host"`
	Port           int                   `yaml:"port"`
	Username       string                `yaml:"username"`
	Version        string                `yaml:"version"`
	AutoConnect    bool                  `yaml:"auto_connect"`
	SpawnTimeout   time.Duration         `yaml:"spawn_timeout"`
	CommandTimeout time.Duration         `yaml:"command_timeout"`
	Movement       world.MovementOptions `yaml:"movement"`
}

type MCP struct {
	Listen      string `yaml:"listen"`
	HMACSecret  string `yaml:"hmac_secret"`
	RequireHMAC bool   `yaml:"require_hmac"`
}

type Chat struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
	// PerMinute and Burst bound how often one player may issue commands.
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

type Autostart struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
}

type Behaviors struct {
	Autostart       []Autostart `yaml:"autostart"`
	ResumeOnConnect bool        `yaml:"resume_on_connect"`
}

// Storage paths; an empty path disables that store.
type Storage struct {
	StateDB    string `yaml:"state_db"`
	JournalDir string `yaml:"journal_dir"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		World: World{
			GatewayURL:     "ws://127.0.0.1:8765/v1/session",
			Host:           "localhost",
			Port:           25565,
			Username:       "pilot",
			SpawnTimeout:   30 * time.Second,
			CommandTimeout: 10 * time.Second,
			Movement: world.MovementOptions{
				AllowSprinting: true,
				CanDig:         true,
			},
		},
		MCP: MCP{Listen: "127.0.0.1:8090"},
		Chat: Chat{
			Enabled:   true,
			Prefix:    "!",
			PerMinute: 20,
			Burst:     5,
		},
		Storage: Storage{
			StateDB:    "./data/minepilot.db",
			JournalDir: "./data/journal",
		},
		Log:     Log{Level: "info", Format: "text"},
		Actions: actions.DefaultConfig(),
	}
}

// Load reads path over the defaults; an empty path skips the file. Env
// overrides are applied last.
func Load(path string) (Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (Config, error) {
	c := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := c.applyEnv(getenv); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("MINEPILOT_GATEWAY_URL", &c.World.GatewayURL)
	str("MINEPILOT_HOST", &c.World.Host)
	str("MINEPILOT_USERNAME", &c.World.Username)
	str("MINEPILOT_VERSION", &c.World.Version)
	if v := strings.TrimSpace(getenv("MINEPILOT_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MINEPILOT_PORT: %w", err)
		}
		c.World.Port = p
	}
	str("MINEPILOT_MCP_LISTEN", &c.MCP.Listen)
	str("MINEPILOT_HMAC_SECRET", &c.MCP.HMACSecret)
	str("MINEPILOT_STATE_DB", &c.Storage.StateDB)
	str("MINEPILOT_JOURNAL_DIR", &c.Storage.JournalDir)
	str("MINEPILOT_LOG_LEVEL", &c.Log.Level)
	str("MINEPILOT_LOG_FORMAT", &c.Log.Format)
	return errors.Join(
		boolean("MINEPILOT_AUTO_CONNECT", &c.World.AutoConnect),
		boolean("MINEPILOT_REQUIRE_HMAC", &c.MCP.RequireHMAC),
		boolean("MINEPILOT_RESUME_ON_CONNECT", &c.Behaviors.ResumeOnConnect),
		boolean("MINEPILOT_CHAT_ENABLED", &c.Chat.Enabled),
	)
}

func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.World.GatewayURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("world.gateway_url must be a ws:// or wss:// url, got %q", c.World.GatewayURL))
	}
	if c.World.Port <= 0 || c.World.Port > 65535 {
		errs = append(errs, fmt.Errorf("world.port out of range: %d", c.World.Port))
	}
	if strings.TrimSpace(c.World.Username) == "" {
		errs = append(errs, errors.New("world.username is required"))
	}
	if c.MCP.RequireHMAC && c.MCP.HMACSecret == "" {
		errs = append(errs, errors.New("mcp.require_hmac is set but mcp.hmac_secret is empty"))
	}
	if c.Chat.Enabled && strings.TrimSpace(c.Chat.Prefix) == "" {
		errs = append(errs, errors.New("chat.prefix is required when chat is enabled"))
	}
	for i, a := range c.Behaviors.Autostart {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("behaviors.autostart[%d]: name is required", i))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (c Config) SessionOptions(resumeToken string) session.Options {
	return session.Options{
		DialOptions: world.DialOptions{
			Host:        c.World.Host,
			Port:        c.World.Port,
			Username:    c.World.Username,
			Version:     c.World.Version,
			ResumeToken: resumeToken,
		},
		SpawnTimeout: c.World.SpawnTimeout,
		Movement:     c.World.Movement,
	}
}

// NewLogger builds the process logger described by the log section.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
