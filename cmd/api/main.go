package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-service/internal/api/http"
	"github.com/spec-kit/maintenance-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/config"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/repository/memory"
	"github.com/spec-kit/maintenance-service/internal/service"
	"github.com/spec-kit/maintenance-service/internal/worker"
)

type repositories struct {
	requests    repository.RequestRepository
	history     repository.StatusHistoryRepository
	policies    repository.SLAPolicyRepository
	technicians repository.TechnicianRepository
	units       repository.UnitRepository
	properties  repository.PropertyRepository
	users       repository.UserRepository
	staff       repository.StaffRepository
	notes       repository.NoteRepository
	photos      repository.PhotoRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		pg    *persistence.Postgres
		redis *persistence.Redis
		repos repositories
	)

	if cfg.Postgres.DSN != "" {
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}

		pool := pg.PoolHandle()
		repos = repositories{
			requests:    repository.NewRequestRepository(pool),
			history:     repository.NewStatusHistoryRepository(pool),
			policies:    repository.NewSLAPolicyRepository(pool),
			technicians: repository.NewTechnicianRepository(pool),
			units:       repository.NewUnitRepository(pool),
			properties:  repository.NewPropertyRepository(pool),
			users:       repository.NewUserRepository(pool),
			staff:       repository.NewStaffRepository(pool),
			notes:       repository.NewNoteRepository(pool),
			photos:      repository.NewPhotoRepository(pool),
		}

		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
	} else {
		logger.Warn("POSTGRES_DSN empty, running on the in-memory store")
		store := memory.NewStore()
		repos = repositories{
			requests:    store.Requests(),
			history:     store.History(),
			policies:    store.Policies(),
			technicians: store.Technicians(),
			units:       store.Units(),
			properties:  store.Properties(),
			users:       store.Users(),
			staff:       store.Staff(),
			notes:       store.Notes(),
			photos:      store.Photos(),
		}
	}

	var cacheClient *goredis.Client
	if redis != nil {
		cacheClient = redis.Client
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	locks := service.NewLockRegistry()

	policyService := service.NewSLAPolicyService(repos.policies, cacheClient, cfg.Monitor.PolicyCacheTTL(), logger)

	requestService := service.NewRequestService(service.RequestDependencies{
		RequestRepo:  repos.requests,
		HistoryRepo:  repos.history,
		UnitRepo:     repos.units,
		PropertyRepo: repos.properties,
		NoteRepo:     repos.notes,
		PhotoRepo:    repos.photos,
		Policies:     policyService,
		Dispatcher:   dispatcher,
		Logger:       logger,
		Locks:        locks,
		LockTimeout:  cfg.Monitor.LockTimeout(),
		RetryBackoff: cfg.Monitor.TransitionRetryBackoff,
	})

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		RequestRepo:    repos.requests,
		TechnicianRepo: repos.technicians,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Locks:          locks,
		LockTimeout:    cfg.Monitor.LockTimeout(),
		RetryBackoff:   cfg.Monitor.TransitionRetryBackoff,
	})

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  repos.users,
		StaffRepo: repos.staff,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users, repos.staff)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	monitor := worker.NewBreachMonitor(repos.requests, dispatcher, logger, metrics, worker.BreachMonitorOptions{
		Interval:  cfg.Monitor.SweepInterval(),
		BatchSize: cfg.Monitor.SweepBatchSize,
	})
	go monitor.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Requests:       handlers.NewRequestsHandler(requestService),
		Ops:            handlers.NewOpsRequestsHandler(requestService, assignmentService),
		Directory:      handlers.NewDirectoryHandler(assignmentService, policyService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
