package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/warranty-service/internal/api/http"
	"github.com/spec-kit/warranty-service/internal/api/http/handlers"
	"github.com/spec-kit/warranty-service/internal/auth"
	"github.com/spec-kit/warranty-service/internal/config"
	"github.com/spec-kit/warranty-service/internal/events"
	"github.com/spec-kit/warranty-service/internal/notification"
	"github.com/spec-kit/warranty-service/internal/observability"
	"github.com/spec-kit/warranty-service/internal/persistence"
	"github.com/spec-kit/warranty-service/internal/reminder"
	"github.com/spec-kit/warranty-service/internal/repository"
	"github.com/spec-kit/warranty-service/internal/service"
	workerpkg "github.com/spec-kit/warranty-service/internal/worker"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck
			return serve(cfg, logger)
		},
	}
}

// repositories selects Postgres-backed stores when a pool is available and
// in-memory stores otherwise.
type repositories struct {
	claims        repository.ClaimRepository
	tasks         repository.ApprovalTaskRepository
	cancellations repository.CancellationRepository
	history       repository.ClaimHistoryRepository
	serials       repository.PartSerialRepository
	workOrders    repository.WorkOrderRepository
	vehicles      repository.VehicleRepository
	rules         repository.WarrantyRuleRepository
}

func newRepositories(pool *pgxpool.Pool) repositories {
	if pool == nil {
		return repositories{
			claims:        repository.NewMemoryClaimRepository(),
			tasks:         repository.NewMemoryApprovalTaskRepository(),
			cancellations: repository.NewMemoryCancellationRepository(),
			history:       repository.NewMemoryClaimHistoryRepository(),
			serials:       repository.NewMemoryPartSerialRepository(),
			workOrders:    repository.NewMemoryWorkOrderRepository(),
			vehicles:      repository.NewMemoryVehicleRepository(),
			rules:         repository.NewMemoryWarrantyRuleRepository(),
		}
	}
	return repositories{
		claims:        repository.NewClaimRepository(pool),
		tasks:         repository.NewApprovalTaskRepository(pool),
		cancellations: repository.NewCancellationRepository(pool),
		history:       repository.NewClaimHistoryRepository(pool),
		serials:       repository.NewPartSerialRepository(pool),
		workOrders:    repository.NewWorkOrderRepository(pool),
		vehicles:      repository.NewVehicleRepository(pool),
		rules:         repository.NewWarrantyRuleRepository(pool),
	}
}

func notificationSink(cfg config.NotificationConfig, redis *persistence.Redis, logger *zap.Logger) notification.Sink {
	sinks := notification.MultiSink{notification.NewLogSink(logger)}
	if redis != nil && redis.Client != nil && cfg.RedisQueueKey != "" {
		sinks = append(sinks, notification.NewRedisSink(redis.Client, cfg.RedisQueueKey))
	}
	if cfg.SlackWebhookURL != "" {
		sinks = append(sinks, notification.AudienceFilter{
			Audience: notification.AudienceStaff,
			Next:     notification.NewSlackSink(cfg.SlackWebhookURL, cfg.SlackChannel),
		})
	}
	return sinks
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := newRepositories(pg.PoolHandle())
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	worker := workerFor(cfg.Notification, redis, logger)
	worker.Start(ctx)
	defer worker.Stop()

	ledgerSvc := service.NewLedgerService(service.LedgerDependencies{
		SerialRepo:    repos.serials,
		WorkOrderRepo: repos.workOrders,
		Logger:        logger,
	})
	eligibilitySvc := service.NewEligibilityService(service.EligibilityDependencies{
		ClaimRepo:   repos.claims,
		VehicleRepo: repos.vehicles,
		RuleRepo:    repos.rules,
		HistoryRepo: repos.history,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	claimSvc := service.NewClaimService(service.ClaimDependencies{
		ClaimRepo:         repos.claims,
		TaskRepo:          repos.tasks,
		WorkOrderRepo:     repos.workOrders,
		VehicleRepo:       repos.vehicles,
		SerialRepo:        repos.serials,
		HistoryRepo:       repos.history,
		Ledger:            ledgerSvc,
		Eligibility:       eligibilitySvc,
		Dispatcher:        dispatcher,
		Metrics:           metrics,
		Logger:            logger,
		MaxRejections:     cfg.Warranty.MaxRejections,
		ClaimNumberPrefix: cfg.Warranty.ClaimNumberPrefix,
	})
	cancellationSvc := service.NewCancellationService(service.CancellationDependencies{
		ClaimRepo:        repos.claims,
		CancellationRepo: repos.cancellations,
		TaskRepo:         repos.tasks,
		WorkOrderRepo:    repos.workOrders,
		HistoryRepo:      repos.history,
		Ledger:           ledgerSvc,
		Dispatcher:       dispatcher,
		Metrics:          metrics,
		Logger:           logger,
	})
	notificationSvc := service.NewNotificationService(dispatcher, worker, logger, nil)
	notificationSvc.RegisterHandlers()

	if cfg.Warranty.PolicyFile != "" {
		policy, err := config.LoadPolicyFile(cfg.Warranty.PolicyFile)
		if err != nil {
			return err
		}
		if err := eligibilitySvc.SeedRules(ctx, policy.Rules); err != nil {
			return fmt.Errorf("seed warranty rules: %w", err)
		}
	}

	reminders, err := reminder.NewScheduler(cfg.Warranty.ReminderCron, cfg.Warranty.HandoverReminderAge(), claimSvc, notificationSvc, logger)
	if err != nil {
		return err
	}
	reminders.Start()
	defer reminders.Stop()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL())

	deps := map[string]handlers.Pinger{"postgres": nil, "redis": redis}
	if pg.PoolHandle() != nil {
		deps["postgres"] = pg
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, Version, deps, metrics),
		Claims:         handlers.NewClaimsHandler(claimSvc, eligibilitySvc, ledgerSvc),
		Cancellation:   handlers.NewCancellationHandler(cancellationSvc),
		Ledger:         handlers.NewLedgerHandler(ledgerSvc),
		Vehicles:       handlers.NewVehiclesHandler(eligibilitySvc),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}
	return app.Shutdown()
}

func workerFor(cfg config.NotificationConfig, redis *persistence.Redis, logger *zap.Logger) *workerpkg.NotificationWorker {
	return workerpkg.NewNotificationWorker(notificationSink(cfg, redis, logger), cfg.QueueSize, logger)
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
