package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	apiPkg "github.com/fixbot-io/fixbot/internal/api"
	"github.com/fixbot-io/fixbot/internal/catalog"
	"github.com/fixbot-io/fixbot/internal/config"
	"github.com/fixbot-io/fixbot/internal/connector/slack"
	"github.com/fixbot-io/fixbot/internal/connector/telegram"
	"github.com/fixbot-io/fixbot/internal/coordinator"
	"github.com/fixbot-io/fixbot/internal/logring"
	"github.com/fixbot-io/fixbot/internal/reminder"
	"github.com/fixbot-io/fixbot/internal/scheduler"
	"github.com/fixbot-io/fixbot/internal/ticket"
	"github.com/fixbot-io/fixbot/internal/tracking"
	"github.com/fixbot-io/fixbot/pkg/protocol"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logRing := logring.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logring.Tee(jsonHandler, logRing))

	// Load config (file or env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("fixbotd starting", "data_dir", cfg.Desk.DataDir)

	// 1. Ticket store
	os.MkdirAll(cfg.Desk.DataDir, 0o755)
	dbPath := cfg.Desk.DataDir + "/tickets.db"
	store, err := ticket.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Error("failed to open ticket store", "path", dbPath, "error", err)
		os.Exit(1)
	}

	// 2. Roster/catalog cache; the desk can run on an empty snapshot until
	// the first refresh succeeds.
	cat := catalog.New(store, logger.With("component", "catalog"))
	if err := cat.Refresh(); err != nil {
		logger.Warn("initial catalog refresh failed, starting empty", "error", err)
	}

	// 3. Tracking registry, cleaner, coordinator
	tracked := tracking.New()
	cleaner := tracking.NewCleaner(tracked, logger.With("component", "cleaner"))
	coord := coordinator.New(store, tracked, cleaner, cat, logger.With("component", "coordinator"))
	coord.AllowAnyEngineer = cfg.Completion.AllowAnyEngineer

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Telegram bot (primary transport)
	bot, err := telegram.New(telegram.Config{
		Token:           cfg.Connectors.Telegram.Token,
		EngineersChatID: cfg.Connectors.Telegram.EngineersChatID,
		IdleTimeout:     cfg.Completion.IdleTimeout(),
	}, coord, store, cat, cleaner, logger.With("connector", "telegram"))
	if err != nil {
		logger.Error("failed to init telegram bot", "error", err)
		os.Exit(1)
	}

	// The cleaner deletes through whichever platform sent the message; both
	// sides exist now, so bind it.
	cleaner.Delete = bot.Delete

	// Optional: route engineer broadcasts to Slack instead of the Telegram
	// engineers chat.
	if cfg.Connectors.Slack != nil {
		slackNotifier, err := slackconn.New(slackconn.Config{
			BotToken:         cfg.Connectors.Slack.BotToken,
			EngineersChannel: cfg.Connectors.Slack.EngineersChannel,
		}, logger.With("connector", "slack"))
		if err != nil {
			logger.Error("failed to init slack notifier", "error", err)
			os.Exit(1)
		}
		bot.Channel = slackNotifier
		bot.ChannelChatID = slackNotifier.Channel()
		logger.Info("engineer broadcasts routed to slack", "channel", slackNotifier.Channel())
	}

	go safeGo(logger, "telegram", func() { bot.Start(ctx) })
	logger.Info("telegram connector started")

	// 5. Periodic jobs: reminder sweep + catalog refresh
	sweeper := reminder.New(store, tracked, bot, reminder.Config{
		Threshold:  cfg.Reminders.Threshold(),
		RemindOnce: cfg.Reminders.RemindOnce,
	}, logger.With("component", "reminder"))

	sched := scheduler.New(logger.With("component", "scheduler"))
	if err := sched.AddJob("reminder-sweep", cfg.Reminders.Sweep, func() {
		sweeper.Sweep(ctx)
	}); err != nil {
		logger.Error("failed to schedule reminder sweep", "error", err)
		os.Exit(1)
	}
	if err := sched.AddJob("catalog-refresh", cfg.Catalog.Refresh, func() {
		cat.Refresh()
	}); err != nil {
		logger.Error("failed to schedule catalog refresh", "error", err)
		os.Exit(1)
	}
	go safeGo(logger, "scheduler", func() { sched.Start(ctx) })

	// 6. Ops API server
	apiSvc := &deskServiceAdapter{store: store, catalog: cat}
	apiSrv := apiPkg.NewServer(apiSvc, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logRing)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 7. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("fixbotd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}

// deskServiceAdapter implements api.DeskService over the store and catalog.
type deskServiceAdapter struct {
	store   ticket.Store
	catalog *catalog.Cache
}

func (d *deskServiceAdapter) ListTickets(status protocol.TicketStatus) ([]*protocol.Ticket, error) {
	if status != "" {
		return d.store.ListByStatus(status)
	}
	var all []*protocol.Ticket
	for _, s := range []protocol.TicketStatus{protocol.TicketNew, protocol.TicketInProgress, protocol.TicketCompleted} {
		tickets, err := d.store.ListByStatus(s)
		if err != nil {
			return nil, err
		}
		all = append(all, tickets...)
	}
	return all, nil
}

func (d *deskServiceAdapter) GetTicket(id int64) (*protocol.Ticket, error) {
	return d.store.FindByID(id)
}

func (d *deskServiceAdapter) RefreshCatalog() error {
	return d.catalog.Refresh()
}
