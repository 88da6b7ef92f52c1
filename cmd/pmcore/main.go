package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/nhle/pmcore/internal/app"
	"github.com/nhle/pmcore/internal/logging"
	"github.com/nhle/pmcore/internal/model"
	"github.com/nhle/pmcore/internal/toast"
)

const usage = `Usage: pmcore [flags] [command] [args]

Without a command pmcore starts the terminal UI.

Commands:
  add <kind> <title> <message>   add a notification (kind: info|success|warning|error)
  list                           list notifications, newest first
  read <id>                      mark a notification as read
  read-all                       mark every notification as read
  rm <id>                        remove a notification
  clear                          remove every notification
  unread                         print the unread count
  enqueue <json-object|text>     save a payload for sync
  queue                          list queued payloads
  flush                          sync queued payloads now
  imap-password <password>       store the IMAP forwarder password in the keyring

Flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "pmcore:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("pmcore", pflag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	logLevel := flags.String("log-level", "", "override the configured log level")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.NArg() == 0 {
		return runTUI(ctx, cfg)
	}
	return runCommand(ctx, cfg, flags.Args())
}

func runTUI(ctx context.Context, cfg *model.AppConfig) error {
	logPath := filepath.Join(filepath.Dir(cfg.Storage.SQLitePath), "pmcore.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	log, err := logging.NewFile(cfg.Log, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	toasts := toast.NewChannel(32)
	rt, err := app.Open(ctx, cfg, log, app.Options{
		Toasts: toast.Multi{toasts, toast.NewLogger(log.Named("toast"))},
		Probe:  true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error("closing runtime", zap.Error(err))
		}
	}()

	rt.Start(ctx)
	rt.ServeMetrics(ctx)

	p := tea.NewProgram(app.New(rt, toasts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running terminal UI: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, cfg *model.AppConfig, args []string) error {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	rt, err := app.Open(ctx, cfg, log, app.Options{
		Toasts: toast.NewLogger(log.Named("toast")),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error("closing runtime", zap.Error(err))
		}
	}()

	return app.RunCommand(ctx, rt, os.Stdout, args)
}
