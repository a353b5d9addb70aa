package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/defect-dispatch/internal/api/dto"
	httptransport "github.com/spec-kit/defect-dispatch/internal/api/http"
	"github.com/spec-kit/defect-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/defect-dispatch/internal/auth"
	"github.com/spec-kit/defect-dispatch/internal/config"
	"github.com/spec-kit/defect-dispatch/internal/domain"
	"github.com/spec-kit/defect-dispatch/internal/events"
	"github.com/spec-kit/defect-dispatch/internal/notify"
	"github.com/spec-kit/defect-dispatch/internal/observability"
	"github.com/spec-kit/defect-dispatch/internal/persistence"
	"github.com/spec-kit/defect-dispatch/internal/repository"
	"github.com/spec-kit/defect-dispatch/internal/service"
	"github.com/spec-kit/defect-dispatch/internal/tracking"
	"github.com/spec-kit/defect-dispatch/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type repositories struct {
	reports repository.ReportRepository
	users   repository.UserRepository
	history repository.ReportHistoryRepository
}

// newRepositories picks Postgres when configured. The in-memory users
// directory starts with the supervisors named in the notification config.
func newRepositories(pg *persistence.Postgres, notifyCfg config.NotificationConfig) repositories {
	if !pg.Enabled() {
		return repositories{
			reports: repository.NewMemoryReportRepository(),
			users:   repository.NewMemoryUserRepository(supervisorSeed(notifyCfg.SupervisorIDs)...),
			history: repository.NewMemoryReportHistoryRepository(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		reports: repository.NewReportRepository(pool),
		users:   repository.NewUserRepository(pool),
		history: repository.NewReportHistoryRepository(pool),
	}
}

func supervisorSeed(ids []string) []domain.User {
	now := time.Now().UTC()
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, domain.User{
			ID:        id,
			Name:      id,
			Role:      domain.RoleSupervisor,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return users
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func notificationChannels(cfg config.NotificationConfig, redis *persistence.Redis, logger *zap.Logger) []notify.Channel {
	channels := []notify.Channel{notify.NewLogChannel(logger)}
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.WebhookURL, 5*time.Second))
	}
	if redis.Enabled() {
		channels = append(channels, notify.NewRedisChannel(redis.Client, cfg.RedisChannel))
	}
	return channels
}

func runServe(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return err
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := newRepositories(pg, cfg.Notification)
	if !pg.Enabled() {
		logger.Info("in-memory users directory seeded", zap.Strings("supervisors", cfg.Notification.SupervisorIDs))
	}
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	notifier := worker.NewNotificationWorker(cfg.Notification, notificationChannels(cfg.Notification, redis, logger), logger, metrics)
	notifier.Start(ctx)
	defer notifier.Stop()

	service.NewNotificationService(dispatcher, notifier, repos.users, logger, cfg.Notification).RegisterHandlers()
	historyService := service.NewHistoryService(repos.reports, repos.history)
	historyService.RegisterHandlers(dispatcher)

	hub := tracking.NewDeviceHub(cfg.Tracking.PermissionTimeout, cfg.Tracking.SampleBuffer, logger)
	tracker := tracking.NewTracker(repos.reports, hub, cfg.Tracking.DistanceThresholdMeters, logger, metrics)

	dispatchService := service.NewDispatchService(service.DispatchDependencies{
		ReportRepo:      repos.reports,
		Tracker:         tracker,
		Dispatcher:      dispatcher,
		Logger:          logger,
		Metrics:         metrics,
		AssumedSpeedMph: cfg.Dispatch.AssumedSpeedMph,
	})
	defer dispatchService.Shutdown()
	visibilityService := service.NewVisibilityService(repos.reports)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	validate := dto.NewValidator()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Reports:        handlers.NewReportsHandler(dispatchService, visibilityService, historyService, validate),
		Devices:        handlers.NewDevicesHandler(hub, validate),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("postgres", pg.Enabled()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
