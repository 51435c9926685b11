package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hostalia/concierge/internal/agent"
	"github.com/hostalia/concierge/internal/approvals"
	"github.com/hostalia/concierge/internal/broadcast"
	"github.com/hostalia/concierge/internal/buffer"
	"github.com/hostalia/concierge/internal/bus"
	"github.com/hostalia/concierge/internal/channels"
	"github.com/hostalia/concierge/internal/channels/telegram"
	"github.com/hostalia/concierge/internal/channels/whatsapp"
	"github.com/hostalia/concierge/internal/config"
	"github.com/hostalia/concierge/internal/escalation"
	"github.com/hostalia/concierge/internal/gateway"
	"github.com/hostalia/concierge/internal/kb"
	"github.com/hostalia/concierge/internal/memory"
	"github.com/hostalia/concierge/internal/pipeline"
	"github.com/hostalia/concierge/internal/pms"
	"github.com/hostalia/concierge/internal/store"
	"github.com/hostalia/concierge/internal/store/pg"
	"github.com/hostalia/concierge/internal/store/sqlite"
	"github.com/hostalia/concierge/internal/telemetry"
)

const (
	guestChannel   = "whatsapp"
	managerChannel = "telegram"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Gateway.Verbose && !verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is a no-op unless an OTLP endpoint is configured.
	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer tel.Shutdown(context.Background())

	// Storage: SQLite for standalone, Postgres (migrated via `concierge
	// migrate up`) for managed mode.
	var stores *store.Stores
	if cfg.IsManagedMode() {
		db, pgStores, pgErr := pg.Open(cfg.Database.PostgresDSN)
		if pgErr != nil {
			slog.Error("failed to open postgres", "error", pgErr)
			os.Exit(1)
		}
		defer db.Close()
		stores = pgStores
		slog.Info("storage ready", "mode", "managed")
	} else {
		sq, sqErr := sqlite.Open(config.ExpandHome(cfg.Database.SQLitePath))
		if sqErr != nil {
			slog.Error("failed to open sqlite", "error", sqErr, "path", cfg.Database.SQLitePath)
			os.Exit(1)
		}
		defer sq.Close()
		stores = sq.Stores()
		slog.Info("storage ready", "mode", "standalone", "path", cfg.Database.SQLitePath)
	}

	mem := memory.NewManager(stores.Flags, stores.History)
	kbService := kb.NewService(stores.KB)
	tracker := approvals.NewTracker(config.ExpandHome(cfg.Approvals.SnapshotPath))
	consent := escalation.NewConsentManager(cfg.Escalation.ConsentTTL())

	msgBus := bus.NewMessageBus()
	deduper := channels.NewSendDeduper(cfg.Dedupe.SendCapacity, cfg.Dedupe.SendWindow())
	channelMgr := channels.NewManager(msgBus, deduper)

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		tg, tgErr := telegram.New(cfg.Channels.Telegram, msgBus)
		if tgErr != nil {
			slog.Error("failed to initialize telegram channel", "error", tgErr)
		} else {
			channelMgr.RegisterChannel(managerChannel, tg)
			slog.Info("telegram channel enabled")
		}
	}
	if cfg.Channels.WhatsApp.Enabled && cfg.Channels.WhatsApp.BridgeURL != "" {
		wa, waErr := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
		if waErr != nil {
			slog.Error("failed to initialize whatsapp channel", "error", waErr)
		} else {
			channelMgr.RegisterChannel(guestChannel, wa)
			slog.Info("whatsapp channel enabled")
		}
	}

	assistant, err := agent.NewClient(cfg.Agent)
	if err != nil {
		slog.Error("assistant not configured", "error", err)
		os.Exit(1)
	}

	// The buffer's flush callback and the processor's stale-flush fence
	// point at each other, so the buffer is created against a late-bound
	// processor variable. Flushes only start after the first Add.
	var processor *pipeline.Processor
	buf := buffer.NewManager(cfg.Buffer.IdleDuration(), func(ctx context.Context, conversationID, combined string, version uint64) error {
		return processor.Process(ctx, conversationID, combined, version)
	})
	processor = pipeline.NewProcessor(pipeline.Options{
		Agent:          assistant,
		Consent:        consent,
		Tracker:        tracker,
		Memory:         mem,
		KB:             kbService,
		Sender:         channelMgr,
		Fence:          buf,
		Tracer:         tel.Tracer("pipeline"),
		GuestChannel:   guestChannel,
		ManagerChannel: managerChannel,
		ManagerChatID:  cfg.Channels.Telegram.ManagerChatID,
	})

	resolver := approvals.NewResolver(tracker, channelMgr, processor, kbService, mem, guestChannel, managerChannel)

	broadcaster := broadcast.NewScheduler(cfg.Broadcast.Schedules, channelMgr, guestChannel)

	pmsClient, err := pms.Connect(ctx, cfg.PMS)
	if err != nil {
		slog.Warn("pms connection failed, continuing without it", "error", err)
	} else if pmsClient != nil {
		defer pmsClient.Close()
		slog.Info("pms connected", "url", cfg.PMS.BaseURL)
	}

	server := gateway.NewServer(cfg, msgBus, channelMgr, kbService)
	server.SetPMS(pmsClient)

	if err := config.Watch(ctx, cfgPath, func(fresh *config.Config) {
		// Structural settings (channels, storage) need a restart; only log
		// what changed at the tunable level.
		slog.Info("config change detected",
			"buffer_idle_s", fresh.Buffer.IdleSeconds,
			"consent_ttl_min", fresh.Escalation.ConsentTTLMinutes,
		)
	}); err != nil {
		slog.Warn("config watch unavailable", "error", err)
	}

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
	}
	defer channelMgr.StopAll(context.Background())

	slog.Info("concierge gateway starting",
		"version", Version,
		"channels", channelMgr.GetStatus(),
		"broadcast_schedules", broadcaster.Len(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		consumeInbound(gctx, cfg, msgBus, buf, processor, resolver)
		return nil
	})
	g.Go(func() error {
		broadcaster.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("gateway error", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway stopped")
}
