package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sifan077/shortng/config"
	apprepository "github.com/sifan077/shortng/internal/app/repository"
	appserver "github.com/sifan077/shortng/internal/app/server"
	appservice "github.com/sifan077/shortng/internal/app/service"
	"github.com/sifan077/shortng/internal/app/vault"
	infraGCS "github.com/sifan077/shortng/internal/infra/gcs"
	"github.com/sifan077/shortng/internal/infra/logger"
	"github.com/sifan077/shortng/internal/infra/memstore"
	infraNATS "github.com/sifan077/shortng/internal/infra/nats"
	infraPostgres "github.com/sifan077/shortng/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/shortng/internal/infra/prometheus"
	"github.com/sifan077/shortng/internal/infra/publicfetch"
	infraRedis "github.com/sifan077/shortng/internal/infra/redis"
	infraS3 "github.com/sifan077/shortng/internal/infra/s3"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.MustInit(logger.FromEnv())
	defer func() { _ = logger.Sync() }()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Configuration loaded successfully",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("link_bucket", cfg.Links.Bucket),
		zap.String("password_bucket", cfg.Links.PasswordBucket),
		zap.Duration("edit_window", cfg.Links.EditWindow),
		zap.Bool("postgres_enabled", cfg.Postgres.Enabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
	)

	store, closeStore := newBlobStore(cfg, log)
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := infraPrometheus.NewMetrics(registry)

	linkRepo := apprepository.NewLinkRepository(store, cfg.Links.Bucket)
	passwords := vault.New(store, cfg.Links.PasswordBucket, cfg.Links.Suffix, log.Named("vault"))

	deps := appservice.Dependencies{
		Normalizer: appservice.NewRequestNormalizer(appservice.NormalizerConfig{
			Suffix:       cfg.Links.Suffix,
			ViewerURL:    cfg.Links.ViewerURL,
			ShortenerURL: cfg.Links.ShortenerURL,
		}),
		Resolver: appservice.NewStateResolver(
			publicfetch.New(cfg.Links.FetchTimeout),
			appservice.ResolverConfig{
				PublicHost:       cfg.Links.PublicHost,
				DefaultViewerURL: cfg.Links.ViewerURL,
			},
			log.Named("resolver"),
		),
		Authorizer: appservice.NewEditAuthorizer(linkRepo, passwords,
			appservice.WithEditWindow(cfg.Links.EditWindow),
			appservice.WithAuthorizerLogger(log.Named("authorizer")),
		),
		Links:      linkRepo,
		Passwords:  passwords,
		Metrics:    metrics,
		Logger:     log.Named("links"),
		PublicHost: cfg.Links.PublicHost,
	}

	serverDeps := appserver.Dependencies{
		Logger:       log,
		Metrics:      metrics,
		RateLimit:    cfg.Server.RateLimit,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		EditWindow:   cfg.Links.EditWindow,
	}

	if cfg.Redis.Enabled {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		serverDeps.Limiter = infraRedis.NewWindowLimiter(redisClient, "shortng:ratelimit", cfg.Server.RateWindow)
		log.Info("Connected to Redis successfully")
	}

	var journal apprepository.SaveEventRepository
	if cfg.Postgres.Enabled {
		gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log.Named("gorm"))
		if err != nil {
			log.Fatal("Failed to open GORM connection", zap.Error(err))
		}
		sqlDB, err := gormDB.DB()
		if err != nil {
			log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
		}
		defer sqlDB.Close()

		if err := infraPostgres.MigrateJournal(ctx, gormDB); err != nil {
			log.Fatal("Failed to run database migrations", zap.Error(err))
		}

		pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer pool.Close()

		journal = apprepository.NewSaveEventRepository(gormDB)
		deps.Journal = apprepository.NewSaveEventHistory(pool)
		serverDeps.Pinger = pool.Ping

		pruner := appservice.NewJournalPruner(log.Named("pruner"), journal, cfg.Links.JournalRetention)
		pruner.Start()
		defer pruner.Stop()

		log.Info("Connected to Postgres successfully")
	}

	if cfg.NATS.Enabled {
		natsConn, js, err := infraNATS.Connect(cfg.NATS, log.Named("nats"))
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer natsConn.Drain()

		if err := appservice.EnsureStream(js); err != nil {
			log.Fatal("Failed to prepare save stream", zap.Error(err))
		}
		deps.Publisher = appservice.NewSaveEventPublisher(js)

		if journal != nil {
			consumer := appservice.NewSaveEventConsumer(js, log.Named("journal"), journal)
			if err := consumer.Start(ctx); err != nil {
				log.Fatal("Failed to start save event consumer", zap.Error(err))
			}
		}
		log.Info("Connected to NATS successfully")
	}

	serverDeps.LinkService = appservice.NewLinkService(deps)
	server := appserver.New(serverDeps)

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, registry)
		go func() {
			log.Info("Starting Prometheus metrics server",
				zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("Fiber shutdown failed", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting shortener", zap.String("addr", addr))
	if err := server.Listen(addr); err != nil {
		log.Error("Fiber server exited", zap.Error(err))
	}
}

func newBlobStore(cfg *config.Config, log *zap.Logger) (apprepository.BlobStore, func()) {
	switch cfg.Storage.Backend {
	case config.BackendS3:
		return infraS3.New(cfg.Storage.S3, log.Named("s3")), func() {}
	case config.BackendMemory:
		log.Warn("Using in-memory blob store; links are lost on restart")
		return memstore.New(), func() {}
	default:
		store := infraGCS.New(cfg.Storage.GCS.CredentialsJSON, log.Named("gcs"))
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("Failed to close storage client", zap.Error(err))
			}
		}
	}
}
