// ABOUTME: Entry point for the blockgate block-list gate daemon
// ABOUTME: Wires the store, gate, command pack, and OneBot transport together

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/blockgate/internal/audit"
	"github.com/2389/blockgate/internal/autosleep"
	"github.com/2389/blockgate/internal/blocklist"
	"github.com/2389/blockgate/internal/commands"
	"github.com/2389/blockgate/internal/config"
	"github.com/2389/blockgate/internal/confirm"
	"github.com/2389/blockgate/internal/event"
	"github.com/2389/blockgate/internal/onebot"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _     _            _                _
| |__ | | ___   ___| | ____ _  __ _ | |_ ___
| '_ \| |/ _ \ / __| |/ / _' |/ _' || __/ _ \
| |_) | | (_) | (__|   < (_| | (_| || ||  __/
|_.__/|_|\___/ \___|_|\_\ \__, |\__,_|\__\___|
                          |___/
`

// getConfigPath returns the path to the blockgate config file.
// Priority: BLOCKGATE_CONFIG env var > ./blockgate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("BLOCKGATE_CONFIG"); envPath != "" {
		return envPath
	}
	return "blockgate.yaml"
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: blockgate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Connect to the bot transport and start gating events")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := serve(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func serve() error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Transport:  %s\n", cfg.Transport.URL)
	green.Print("    ▶ ")
	fmt.Printf("Store:      %s\n", cfg.Store.Path)
	green.Print("    ▶ ")
	fmt.Printf("Superusers: %d\n", len(cfg.Superusers))
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A document that cannot be parsed means the gate would run with
	// undefined state; refuse to start.
	store, err := blocklist.Load(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("loading block-list store: %w", err)
	}

	var ledger *audit.Ledger
	ledger, err = audit.Open(cfg.Audit.Path, logger)
	if err != nil {
		logger.Warn("audit ledger unavailable, mutations will not be recorded", "error", err)
		ledger = nil
	} else {
		defer ledger.Close()
	}

	confirms := confirm.New(cfg.Confirm.Timeout)
	defer confirms.Close()

	client := onebot.New(cfg.Transport.URL, cfg.Transport.AccessToken, cfg.Transport.ReconnectInterval, logger)
	gate := blocklist.NewGate(store, cfg.Superusers, logger)

	// A typed nil *Ledger stored in the interface would not be nil.
	var auditor commands.Auditor
	var reactorAuditor autosleep.Auditor
	if ledger != nil {
		auditor = ledger
		reactorAuditor = ledger
	}

	pack := commands.New(store, confirms, client, auditor, cfg.Superusers, logger)
	reactor := autosleep.New(store, client, reactorAuditor, cfg.Superusers, logger)

	logger.Info("blockgate starting", "version", version, "tenants", store.Count())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx)
	})
	g.Go(func() error {
		return runPipeline(ctx, client, gate, pack, reactor, logger)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("blockgate stopped")
		return nil
	}
	return err
}

// runPipeline consumes classified events: mute notices feed the
// auto-sleep reactor, everything else passes through the gate and, if
// allowed, the command pack. Denied events are dropped in silence.
func runPipeline(ctx context.Context, client *onebot.Client, gate *blocklist.Gate, pack *commands.Pack, reactor *autosleep.Reactor, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-client.Events():
			if !ok {
				return nil
			}
			handleEvent(ctx, ev, client, gate, pack, reactor, logger)
		}
	}
}

func handleEvent(ctx context.Context, ev *event.Event, client *onebot.Client, gate *blocklist.Gate, pack *commands.Pack, reactor *autosleep.Reactor, logger *slog.Logger) {
	if ev.Kind == event.KindMuteNotice {
		// The reactor paces its superuser notifications; run it off the
		// pipeline goroutine so gating of other events never waits on it.
		go func() {
			if err := reactor.HandleMuteNotice(ctx, ev); err != nil {
				logger.Error("mute notice handling failed", "self_id", ev.SelfID, "error", err)
			}
		}()
		return
	}

	verdict := gate.Decide(ev.Project())
	if !verdict.Allowed {
		// No reply: acknowledging a denial would leak gate state.
		logger.Debug("event suppressed",
			"kind", ev.Kind.String(), "self_id", ev.SelfID, "user_id", ev.UserID, "reason", verdict.Reason)
		return
	}

	if ev.Kind != event.KindGroupMessage && ev.Kind != event.KindPrivateMessage {
		return
	}

	reply, handled := pack.HandleMessage(ctx, ev)
	if !handled || reply == "" {
		return
	}
	if err := client.Reply(ctx, ev, reply); err != nil {
		logger.Error("reply failed", "self_id", ev.SelfID, "error", err)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
