// Package chatcmd lets other players drive the avatar with prefixed chat
// lines such as "!follow 2" or "!behavior start guard radius=8".
package chatcmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"minepilot.ai/internal/actions"
	"minepilot.ai/internal/behavior"
	"minepilot.ai/internal/fault"
	"minepilot.ai/internal/session"
	"minepilot.ai/internal/world"
)

// maxReply is the longest chat line servers accept.
const maxReply = 256

type Config struct {
	Prefix    string
	PerMinute float64
	Burst     int
}

type command struct {
	usage string
	run   func(ctx context.Context, c *Handler, player string, args []string) (string, error)
}

type Handler struct {
	session   *session.Handle
	actions   *actions.Facade
	scheduler *behavior.Scheduler
	prefix    string
	limit     *playerLimiter
	log       *slog.Logger
	now       func() time.Time
	commands  map[string]command
}

func New(h *session.Handle, f *actions.Facade, s *behavior.Scheduler, cfg Config, logger *slog.Logger) *Handler {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		session:   h,
		actions:   f,
		scheduler: s,
		prefix:    cfg.Prefix,
		limit:     newPlayerLimiter(cfg.PerMinute, cfg.Burst),
		log:       logger.With("component", "chatcmd"),
		now:       time.Now,
		commands:  builtinCommands(),
	}
}

// Run answers chat commands until ctx is done. Commands run concurrently;
// Run waits for the ones in flight before returning.
func (c *Handler) Run(ctx context.Context) error {
	events, cancel := c.session.Subscribe(world.EventChat)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind != world.EventChat || !strings.HasPrefix(ev.Message, c.prefix) {
				continue
			}
			if ev.Username == "" || ev.Username == c.session.Snapshot().Username {
				continue
			}
			if !c.limit.allow(ev.Username, c.now()) {
				c.log.Debug("rate limited", "player", ev.Username)
				continue
			}
			wg.Add(1)
			go func(ev world.Event) {
				defer wg.Done()
				c.respond(ctx, ev.Username, ev.Message)
			}(ev)
		}
	}
}

func (c *Handler) respond(ctx context.Context, player, line string) {
	out := c.Execute(ctx, player, line)
	if out == "" {
		return
	}
	if err := c.session.Chat(ctx, truncate(out, maxReply)); err != nil && !errors.Is(err, fault.ErrNotConnected) {
		c.log.Warn("reply failed", "player", player, "err", err)
	}
}

// Execute runs one chat line and returns the reply. Lines without the
// prefix return "".
func (c *Handler) Execute(ctx context.Context, player, line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, c.prefix) {
		return ""
	}
	fields := strings.Fields(strings.TrimPrefix(line, c.prefix))
	if len(fields) == 0 {
		return ""
	}
	name := strings.ToLower(fields[0])
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("Unknown command %s%s, try %shelp", c.prefix, name, c.prefix)
	}
	out, err := cmd.run(ctx, c, player, fields[1:])
	if err != nil {
		if errors.Is(err, fault.ErrBadRequest) {
			return fmt.Sprintf("%s (usage: %s%s)", err.Error(), c.prefix, cmd.usage)
		}
		c.log.Info("command failed", "player", player, "command", name, "err", err)
		return "Failed: " + err.Error()
	}
	return out
}

func builtinCommands() map[string]command {
	return map[string]command{
		"help":      {usage: "help", run: cmdHelp},
		"come":      {usage: "come", run: cmdCome},
		"follow":    {usage: "follow [distance]", run: cmdFollow},
		"stop":      {usage: "stop", run: cmdStop},
		"status":    {usage: "status", run: cmdStatus},
		"goto":      {usage: "goto <x> <y> <z>", run: cmdGoto},
		"collect":   {usage: "collect <block> [count]", run: cmdCollect},
		"craft":     {usage: "craft <item> [count]", run: cmdCraft},
		"behavior":  {usage: "behavior start|stop <name> [key=value ...]", run: cmdBehavior},
		"behaviors": {usage: "behaviors", run: cmdBehaviors},
	}
}

func cmdHelp(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, c.prefix+name)
	}
	sort.Strings(names)
	return "Commands: " + strings.Join(names, " "), nil
}

func cmdCome(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	p, err := c.session.Player(ctx, player)
	if err != nil {
		return "", err
	}
	return c.actions.GoTo(ctx, p.Position, 2)
}

func cmdFollow(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	distance := 0.0
	if len(args) > 0 {
		d, err := strconv.ParseFloat(args[0], 64)
		if err != nil || d <= 0 {
			return "", fault.BadRequest("distance must be a positive number")
		}
		distance = d
	}
	return c.actions.Follow(ctx, player, distance)
}

func cmdStop(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	return c.actions.StopMoving(ctx)
}

func cmdStatus(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	st := c.session.Snapshot()
	if st.Status != session.StatusConnected {
		return "", fault.ErrNotConnected
	}
	running := []string{}
	for _, b := range c.scheduler.List() {
		if b.Running {
			running = append(running, b.Name)
		}
	}
	where := "unknown"
	if st.Position != nil {
		where = st.Position.Floored().String()
	}
	out := fmt.Sprintf("HP %g/20, food %g/20 at %s", st.Health, st.Food, where)
	if len(running) > 0 {
		out += ", running: " + strings.Join(running, ", ")
	}
	return out, nil
}

func cmdGoto(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	if len(args) != 3 {
		return "", fault.BadRequest("need three coordinates")
	}
	var xyz [3]float64
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return "", fault.BadRequest("%q is not a number", a)
		}
		xyz[i] = v
	}
	return c.actions.GoTo(ctx, world.V(xyz[0], xyz[1], xyz[2]), 1)
}

func cmdCollect(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	name, n, err := nameAndCount(args)
	if err != nil {
		return "", err
	}
	return c.actions.CollectBlocks(ctx, name, n)
}

func cmdCraft(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	name, n, err := nameAndCount(args)
	if err != nil {
		return "", err
	}
	return c.actions.CraftItem(ctx, name, n)
}

func cmdBehavior(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	if len(args) < 2 {
		return "", fault.BadRequest("need an action and a behavior name")
	}
	switch strings.ToLower(args[0]) {
	case "start":
		overrides, err := parseOverrides(args[2:])
		if err != nil {
			return "", err
		}
		res, err := c.scheduler.Start(args[1], overrides)
		if err != nil {
			return "", err
		}
		if len(res.Ignored) > 0 {
			return fmt.Sprintf("%s (ignored: %s)", res.Message, strings.Join(res.Ignored, ", ")), nil
		}
		return res.Message, nil
	case "stop":
		return c.scheduler.Stop(args[1])
	default:
		return "", fault.BadRequest("unknown action %q", args[0])
	}
}

func cmdBehaviors(ctx context.Context, c *Handler, player string, args []string) (string, error) {
	parts := []string{}
	for _, b := range c.scheduler.List() {
		if b.Running {
			parts = append(parts, b.Name+" (on)")
		} else {
			parts = append(parts, b.Name)
		}
	}
	return "Behaviors: " + strings.Join(parts, ", "), nil
}

func nameAndCount(args []string) (string, int, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", 0, fault.BadRequest("need a name and an optional count")
	}
	n := 1
	if len(args) == 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v <= 0 {
			return "", 0, fault.BadRequest("count must be a positive integer")
		}
		n = v
	}
	return args[0], n, nil
}

// parseOverrides reads key=value pairs. Values are YAML scalars or flow
// sequences, so radius=8 is a number and waypoints=[[0,64,0],[10,64,0]] a list.
func parseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fault.BadRequest("%q is not key=value", p)
		}
		var val any
		if err := yaml.Unmarshal([]byte(v), &val); err != nil {
			return nil, fault.BadRequest("%s: %v", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
