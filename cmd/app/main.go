package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waste3d/training-portal/config"
	"github.com/waste3d/training-portal/internal/application/usecase"
	"github.com/waste3d/training-portal/internal/infrastructure/cache"
	"github.com/waste3d/training-portal/internal/infrastructure/docstore"
	"github.com/waste3d/training-portal/internal/infrastructure/email"
	"github.com/waste3d/training-portal/internal/infrastructure/repository"
	"github.com/waste3d/training-portal/internal/infrastructure/security"
	"github.com/waste3d/training-portal/internal/jobs"
	"github.com/waste3d/training-portal/internal/middleware"
	grpc_server "github.com/waste3d/training-portal/internal/transport/grpc"
	handlers "github.com/waste3d/training-portal/internal/transport/http"
)

func main() {
	// 1. Конфиг
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Хранилище документов
	var store docstore.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = docstore.NewMemory()
		log.Println("Using in-memory document store")
	default:
		pg, err := docstore.OpenPostgres(cfg.DSN(), cfg.Indexes())
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		store = pg
		log.Printf("Connected to Postgres at %s:%s", cfg.DBHost, cfg.DBPort)
	}

	// 3. Кэш
	var (
		rdb      *redis.Client
		memCache *cache.Memory
		c        cache.Cache
	)
	switch cfg.CacheDriver {
	case config.DriverMemory:
		memCache = cache.NewMemory(cfg.CacheTTL, nil)
		c = memCache
	default:
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Connected to Redis at", cfg.RedisAddr)
		c = cache.NewRedis(rdb, cfg.CacheTTL)
	}

	// 4. Репозитории и use case'ы
	catalogRepo := repository.NewCatalogRepository(store, c)
	progressRepo := repository.NewProgressRepository(store, c)
	certRepo := repository.NewCertificateRepository(store, c)
	profileRepo := repository.NewProfileRepository(store, c)

	var notifier usecase.CertificateNotifier
	if cfg.SendGridAPIKey != "" {
		notifier = email.NewEmailSender(cfg.SendGridAPIKey, cfg.SMTPEmail, cfg.FrontendURL)
	} else {
		log.Println("SENDGRID_API_KEY is empty, certificate e-mails are disabled")
	}

	issuer := usecase.NewCertificateIssuer(catalogRepo, progressRepo, certRepo, profileRepo, notifier)
	progressUC := usecase.NewProgressUseCase(catalogRepo, progressRepo, issuer)

	tokenManager := security.NewTokenManager(cfg.AccessSecret, security.DefaultAccessTTL)

	// 5. gRPC health
	grpcServer, healthReporter := grpc_server.NewServer(store)
	healthReporter.Probe(context.Background())

	// 6. Cron
	cron := jobs.NewManager()
	if memCache != nil {
		if err := cron.Register(jobs.CacheSweep(cfg.CacheSweepSchedule, memCache)); err != nil {
			log.Fatalf("Failed to register job: %v", err)
		}
	}
	if err := cron.Register(jobs.HealthProbe(cfg.HealthSchedule, func() {
		healthReporter.Probe(context.Background())
	})); err != nil {
		log.Fatalf("Failed to register job: %v", err)
	}
	cron.Start()

	// 7. HTTP
	router := handlers.NewRouter(handlers.Handlers{
		Catalog:     handlers.NewCatalogHandler(catalogRepo),
		Progress:    handlers.NewProgressHandler(progressUC),
		Certificate: handlers.NewCertificateHandler(issuer),
		Profile:     handlers.NewProfileHandler(profileRepo),
		Health:      handlers.NewHealthHandler(store),
	}, middleware.NewRateLimiter(rdb), tokenManager, cfg.Origins())

	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	go func() {
		log.Printf("gRPC health server running on port %s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("Failed to serve gRPC: %v", err)
		}
	}()

	go func() {
		log.Printf("Training portal running on port %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	cron.Stop()
	healthReporter.Shutdown()
	grpcServer.GracefulStop()
	if rdb != nil {
		_ = rdb.Close()
	}
}
