package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/api"
	"github.com/nhle/workpresence/internal/app"
	"github.com/nhle/workpresence/internal/credential"
	"github.com/nhle/workpresence/internal/logging"
	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/notify"
	"github.com/nhle/workpresence/internal/presence"
	"github.com/nhle/workpresence/internal/push"
	"github.com/nhle/workpresence/internal/realtime"
	"github.com/nhle/workpresence/internal/session"
	"github.com/nhle/workpresence/internal/store"
	appsync "github.com/nhle/workpresence/internal/sync"
	"github.com/nhle/workpresence/internal/worker"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("WORKPRESENCE_CONFIG"); p != "" {
		return p
	}
	return model.DefaultConfigPath()
}

func run(args []string) error {
	path := configPath()

	if len(args) > 0 {
		switch args[0] {
		case "--version", "version", "-v":
			fmt.Println("workpresence " + version)
			return nil
		case "help", "--help", "-h":
			printHelp(path)
			return nil
		case "init":
			return runInit(path)
		case "login":
			return runLogin()
		case "logout":
			return runLogout()
		default:
			return fmt.Errorf("unknown command %q (see workpresence help)", args[0])
		}
	}

	cfg, err := model.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w (edit %s)", err, path)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	tokens := credential.TokenSource{}
	if _, err := tokens.Token(); err != nil {
		return fmt.Errorf("%w (run workpresence login)", err)
	}

	db, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer db.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := api.NewClient(cfg.API.BaseURL, tokens,
		api.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second),
		api.WithMaxRetries(cfg.API.MaxRetries),
	)
	machine := presence.New(client, presence.WithLogger(logger))
	feed := notify.New(db, notify.WithLogger(logger))

	wsURL, err := realtimeURL(cfg)
	if err != nil {
		return err
	}
	bus := realtime.NewBus(
		&realtime.WebSocketDialer{URL: wsURL, Tokens: tokens},
		realtime.WithBackoff(
			time.Duration(cfg.Realtime.ReconnectMinMs)*time.Millisecond,
			time.Duration(cfg.Realtime.ReconnectMaxMs)*time.Millisecond,
		),
		realtime.WithLogger(logger),
	)
	defer bus.Close() //nolint:errcheck
	go func() {
		if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, realtime.ErrClosed) {
			logger.Warn("realtime bus stopped", zap.Error(err))
		}
	}()

	poller := appsync.New(machine, time.Duration(cfg.Timer.ResyncSec)*time.Second, logger)

	origin, err := originOf(cfg.API.BaseURL)
	if err != nil {
		return err
	}
	notifier := worker.NewChannelNotifier(16)
	w := worker.New(notifier, worker.NewDesktopClients(nil), worker.WithOrigin(origin), worker.WithLogger(logger))
	inbox := make(chan worker.Message, 32)
	go w.Run(ctx, inbox) //nolint:errcheck
	if err := lifecycle(inbox); err != nil {
		return err
	}

	platform := push.NewDevicePlatform(db, cfg.Push.WorkerScope, cfg.API.BaseURL+"/push", push.ConfirmPrompt)
	pusher := push.NewManager(platform, client, push.Config{
		Enabled:      cfg.Push.Enabled,
		UserID:       cfg.Session.UserID,
		Role:         cfg.Session.Role,
		EligibleRole: cfg.Push.EligibleRole,
		WorkerScript: cfg.Push.WorkerScript,
		WorkerScope:  cfg.Push.WorkerScope,
	}, push.WithLogger(logger))

	sess := session.New(
		session.Identity{UserID: cfg.Session.UserID, EmployeeID: cfg.Session.EmployeeID},
		bus, machine, feed, poller,
		session.WithPush(pusher),
		session.WithLogger(logger),
	)
	sess.OnNotification(newRelay(inbox, pusher.IsSubscribed, logger))

	// Runs before the TUI so the permission prompt owns the terminal.
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := sess.Stop(stopCtx); err != nil {
			logger.Warn("stopping session", zap.Error(err))
		}
	}()

	root := app.New(app.Deps{
		Machine:   machine,
		Feed:      feed,
		Poller:    poller,
		Session:   sess,
		Push:      pusher,
		Connected: bus.Connected,
		Toasts:    notifier.C(),
		Inbox:     inbox,
		UserID:    cfg.Session.UserID,
		Role:      cfg.Session.Role,
		Tick:      time.Duration(cfg.Timer.TickMs) * time.Millisecond,
		Logger:    logger,
	})

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

func printHelp(path string) {
	fmt.Printf(`workpresence %s

Usage:
  workpresence           open the presence dashboard
  workpresence init      set up %s and the API token
  workpresence login     store the API token in the system keyring
  workpresence logout    remove the stored API token
  workpresence version   print the version

The token can also be supplied with %s.
`, version, path, credential.TokenEnv)
}
