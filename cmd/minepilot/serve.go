package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"minepilot.ai/internal/actions"
	"minepilot.ai/internal/behavior"
	"minepilot.ai/internal/chatcmd"
	"minepilot.ai/internal/config"
	"minepilot.ai/internal/mcp"
	"minepilot.ai/internal/metrics"
	"minepilot.ai/internal/persistence/journal"
	"minepilot.ai/internal/persistence/statedb"
	"minepilot.ai/internal/session"
	"minepilot.ai/internal/world/wsclient"
)

var serveFlags struct {
	listen      string
	gateway     string
	autoConnect bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session, the MCP endpoint and the chat command loop",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.listen, "listen", "", "MCP listen address (overrides mcp.listen)")
	f.StringVar(&serveFlags.gateway, "gateway", "", "game gateway websocket url (overrides world.gateway_url)")
	f.BoolVar(&serveFlags.autoConnect, "connect", false, "join the game server on startup (overrides world.auto_connect)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.MCP.Listen = serveFlags.listen
	}
	if flags.Changed("gateway") {
		cfg.World.GatewayURL = serveFlags.gateway
	}
	if flags.Changed("connect") {
		cfg.World.AutoConnect = serveFlags.autoConnect
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.MCP.HMACSecret == "" && !mcp.IsLoopbackListenAddress(cfg.MCP.Listen) {
		return fmt.Errorf("refusing MCP bind on non-loopback address %q without an hmac secret", cfg.MCP.Listen)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := signalContext()
	defer cancel()

	dialer, err := wsclient.NewDialer(wsclient.Config{
		URL:            cfg.World.GatewayURL,
		CommandTimeout: cfg.World.CommandTimeout,
		Validate:       true,
	}, logger)
	if err != nil {
		return err
	}
	h := session.New(dialer, logger)
	facade := actions.New(h, cfg.Actions, logger)

	var (
		store   *statedb.Store
		journ   *journal.Journal
		sched   *behavior.Scheduler
		options []behavior.Option
	)
	if cfg.Storage.StateDB != "" {
		store, err = statedb.OpenSQLite(cfg.Storage.StateDB)
		if err != nil {
			return fmt.Errorf("state db: %w", err)
		}
		defer store.Close()
		options = append(options, behavior.WithStore(store))
	}
	if cfg.Storage.JournalDir != "" {
		journ = journal.Open(cfg.Storage.JournalDir, logger)
		defer journ.Close()
		options = append(options, behavior.WithObserver(journ))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, metrics.Sources{
		RunningBehaviors: func() int { return sched.Running() },
		Connected:        h.Connected,
	})
	options = append(options,
		behavior.WithObserver(m),
		behavior.WithResumeOnConnect(cfg.Behaviors.ResumeOnConnect),
	)

	sched = behavior.NewScheduler(behavior.DefaultRegistry(), behavior.Env{Session: h, Actions: facade, Logger: logger}, options...)
	if err := sched.Restore(ctx); err != nil {
		logger.Warn("restore behaviors failed", "err", err)
	}
	for _, a := range cfg.Behaviors.Autostart {
		res, err := sched.Start(a.Name, a.Config)
		if err != nil {
			logger.Warn("autostart failed", "behavior", a.Name, "err", err)
			continue
		}
		logger.Info("autostart", "behavior", a.Name, "outcome", res.Outcome, "ignored", res.Ignored)
	}

	connectOptions := func(ctx context.Context) session.Options {
		token := ""
		if store != nil {
			t, err := store.LoadResumeToken(ctx, cfg.World.Username)
			if err != nil {
				logger.Warn("load resume token failed", "err", err)
			}
			token = t
		}
		return cfg.SessionOptions(token)
	}
	if store != nil {
		h.OnConnect(func(ctx context.Context) {
			tok := h.ResumeToken()
			if tok == "" {
				return
			}
			if err := store.SaveSession(ctx, h.Snapshot().Username, tok, time.Now()); err != nil {
				logger.Warn("save resume token failed", "err", err)
			}
		})
	}

	observers := []mcp.CallObserver{m}
	if journ != nil {
		observers = append(observers, journ)
	}
	srv, err := mcp.NewServer(mcp.Config{
		Session:        h,
		Actions:        facade,
		Scheduler:      sched,
		ConnectOptions: connectOptions,
		HMACSecret:     cfg.MCP.HMACSecret,
		Gatherer:       reg,
		Observers:      observers,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	httpSrv := &http.Server{
		Addr:              cfg.MCP.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", "http://"+cfg.MCP.Listen, "gateway", cfg.World.GatewayURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if cfg.Chat.Enabled {
		chat := chatcmd.New(h, facade, sched, chatcmd.Config{
			Prefix:    cfg.Chat.Prefix,
			PerMinute: cfg.Chat.PerMinute,
			Burst:     cfg.Chat.Burst,
		}, logger)
		g.Go(func() error { return chat.Run(gctx) })
	}
	if cfg.World.AutoConnect {
		g.Go(func() error {
			st, err := h.Connect(gctx, connectOptions(gctx))
			if err != nil {
				logger.Error("auto-connect failed", "err", err)
				return nil
			}
			logger.Info("connected", "username", st.Username, "position", st.Position)
			return nil
		})
	}

	runErr := g.Wait()

	stopped := sched.Shutdown()
	logger.Info("shutting down", "behaviors_stopped", stopped, "session", h.Disconnect(context.Background()))
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := sched.Close(closeCtx); err != nil {
		logger.Warn("scheduler close", "err", err)
	}
	return runErr
}
