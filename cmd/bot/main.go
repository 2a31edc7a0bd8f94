package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/grammar-practice-bot/internal/config"
	"github.com/aliskhannn/grammar-practice-bot/internal/delivery/telegram"
	"github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres"
	pgrepo "github.com/aliskhannn/grammar-practice-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/grammar-practice-bot/internal/logger"
	"github.com/aliskhannn/grammar-practice-bot/internal/repository"
	"github.com/aliskhannn/grammar-practice-bot/internal/service"
	"github.com/aliskhannn/grammar-practice-bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("bot stopped with error", zap.Error(err))
	}
	lg.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	catalog, err := repository.NewCatalogRepository(cfg.CatalogPath)
	if err != nil {
		return err
	}
	curriculum := catalog.Curriculum()
	lg.Info("catalog loaded",
		zap.Int("sections", len(curriculum.Sections)),
		zap.Int("topics", len(curriculum.Topics)),
	)

	location, err := cfg.Streak.Location()
	if err != nil {
		return err
	}

	dsn, err := cfg.DB.DSN()
	if err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:        int32(cfg.DB.MaxConnections),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		return err
	}
	bot.Debug = cfg.Env != "production"
	lg.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

	// Initialize repositories.
	tr := postgres.NewTransactor(pool)
	itemRepo := pgrepo.NewItemRepository(pool, curriculum)
	progressRepo := pgrepo.NewProgressRepository(pool)
	settingsRepo := pgrepo.NewSettingsRepository(pool)
	userRepo := pgrepo.NewUserRepository(pool)

	// Initialize services.
	planner := service.NewPlanner(itemRepo, curriculum, cfg.Practice.StepTimeout, lg)
	settingsService := service.NewSettingsService(settingsRepo, curriculum)
	completionService := service.NewCompletionService(
		tr,
		service.PostgresLedger(curriculum),
		service.RetryConfig{
			MaxAttempts: cfg.Recorder.MaxAttempts,
			InitialWait: cfg.Recorder.InitialWait,
			MaxWait:     cfg.Recorder.MaxWait,
			Multiplier:  service.DefaultRetryConfig().Multiplier,
		},
		location,
		lg,
	)
	practiceService := service.NewPracticeService(
		planner,
		settingsService,
		completionService,
		storage.NewSessionStorage[*service.Session](),
		service.SessionConfig{
			BufferSize:  cfg.Practice.BufferSize,
			RefillEvery: cfg.Practice.RefillEvery,
		},
		lg,
	)
	defer practiceService.Shutdown()

	reaper := service.NewSessionReaper(
		practiceService,
		cfg.Practice.ReaperSchedule,
		cfg.Practice.SessionIdleTTL,
		lg,
	)

	handler := telegram.NewHandler(
		bot,
		lg,
		curriculum,
		service.NewUserService(userRepo),
		practiceService,
		service.NewProgressService(progressRepo, itemRepo, curriculum),
		settingsService,
		service.NewReportService(tr, lg),
		service.NewResetService(userRepo),
		storage.NewAttemptStorage(),
		storage.NewMessageStorage(),
	)
	if err := handler.RegisterCommands(); err != nil {
		lg.Warn("failed to set bot commands", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer bot.StopReceivingUpdates()
		return handler.Run(gctx)
	})
	g.Go(func() error {
		return reaper.Start(gctx)
	})

	return g.Wait()
}
