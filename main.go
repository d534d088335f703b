// Package main provides the main entry point for the HumanFlow API server
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/humanflow/app/handlers"
	"github.com/amirphl/humanflow/app/middleware"
	"github.com/amirphl/humanflow/app/router"
	"github.com/amirphl/humanflow/app/scheduler"
	"github.com/amirphl/humanflow/app/services"
	businessflow "github.com/amirphl/humanflow/business_flow"
	"github.com/amirphl/humanflow/config"
	"github.com/amirphl/humanflow/logger"
	"github.com/amirphl/humanflow/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    *zap.Logger
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging, cfg.Deployment.Environment)
	defer func() { _ = log.Sync() }()

	log.Info("Starting HumanFlow",
		zap.String("environment", cfg.Deployment.Environment),
		zap.String("version", cfg.Deployment.Version))

	app, err := initializeApplication(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-sigChan
	log.Info("Shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
	}

	// in-flight requests are done, stop background workers last so queued
	// status writes still land
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	log.Info("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	if cfg.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("Database schema migrated")
	}

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client means the in-memory caches are used.
func initializeCache(cfg config.CacheConfig, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connection established", zap.Int("db", cfg.RedisDB))
	return rc, nil
}

func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeMailService(cfg config.EmailConfig, log *zap.Logger) services.MailService {
	if !cfg.Enabled {
		log.Info("Email delivery disabled, recovery codes are logged")
		return services.NewLogMailService(log)
	}
	return services.NewGomailService(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.FromEmail, cfg.FromName)
}

func initializeApplication(cfg *config.ProductionConfig, log *zap.Logger) (*Application, error) {
	var stopFuncs []func()

	var (
		store     businessflow.SessionStore
		primary   businessflow.CredentialStore
		dedicated businessflow.CredentialStore
		writer    scheduler.StatusWriter
	)

	if cfg.Database.Enabled {
		db, err := initializeDatabase(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		gormStore := businessflow.NewGormSessionStore(db, businessflow.SessionStoreOptions{
			BatchSize:      cfg.Session.SaveBatchSize,
			BcryptCost:     cfg.Security.BcryptCost,
			ClosedKeywords: cfg.Status.ClosedKeywords,
			HistoryLimit:   cfg.Session.HistoryLimit,
		}, log)
		store, primary, writer = gormStore, gormStore, gormStore
		stopFuncs = append(stopFuncs, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
	} else {
		log.Warn("No database configured, uploads and templates are not persisted")
	}

	if cfg.AuthStore.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		authStore, err := businessflow.OpenSQLAuthStore(ctx, cfg.AuthStore.URL, cfg.AuthStore.Table, cfg.Security.BcryptCost, cfg.AuthStore.QueryTimeout, log)
		cancel()
		if err != nil {
			return nil, err
		}
		dedicated = authStore
		stopFuncs = append(stopFuncs, func() { _ = authStore.Close() })
	}

	if dedicated == nil && primary == nil {
		if cfg.AuthStore.AllowDegraded {
			log.Warn("No credential store configured, logins run in degraded mode")
		} else {
			log.Warn("No credential store configured, every login will be rejected")
		}
	}

	rc, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	var (
		workbooks businessflow.WorkbookCache
		sentSets  businessflow.SentSetStore
	)
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, log))
		workbooks = businessflow.NewRedisWorkbookCache(rc, cfg.Cache.RedisPrefix, cfg.Import.WorkbookTTL)
		sentSets = businessflow.NewRedisSentSetStore(rc, cfg.Cache.RedisPrefix, cfg.Session.SentSetTTL)
	} else {
		memWorkbooks := businessflow.NewMemoryWorkbookCache(cfg.Import.WorkbookTTL)
		stopFuncs = append(stopFuncs, memWorkbooks.StartJanitor(context.Background(), cfg.Cache.CleanupInterval))
		workbooks = memWorkbooks
		sentSets = businessflow.NewMemorySentSetStore()
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Info("Token service initialized",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.String("audience", cfg.JWT.Audience))

	metrics := middleware.NewDomainMetrics(prometheus.DefaultRegisterer)

	var sink businessflow.StatusSink
	if writer != nil {
		dispatcher := scheduler.NewStatusDispatcher(writer, cfg.Session.StatusWorkers, cfg.Session.StatusQueue, cfg.Session.StatusTimeout, metrics, log)
		stopFuncs = append(stopFuncs, dispatcher.Start(context.Background()))
		sink = dispatcher
	}

	authProvider := businessflow.NewAuthProvider(dedicated, primary, cfg.AuthStore.AllowDegraded, log)
	mailService := initializeMailService(cfg.Email, log)

	loginFlow := businessflow.NewLoginFlow(authProvider, store, tokenService, mailService, cfg.Security, log)
	importFlow := businessflow.NewImportFlow(workbooks, store, cfg.Import, cfg.Status, metrics, log)
	templateFlow := businessflow.NewTemplateFlow(store, rc, &cfg.Cache, cfg.Messaging, log)
	campaignFlow := businessflow.NewCampaignFlow(store, sentSets, templateFlow, sink, cfg.Status, cfg.Messaging, cfg.Session, metrics, log)

	r := router.NewFiberRouter(cfg, router.Handlers{
		Auth:     handlers.NewAuthHandler(loginFlow, log),
		Import:   handlers.NewImportHandler(importFlow, log),
		Campaign: handlers.NewCampaignHandler(campaignFlow, log),
		Template: handlers.NewTemplateHandler(templateFlow, log),
	}, middleware.NewAuthMiddleware(tokenService), log)

	return &Application{
		router:    r,
		config:    cfg,
		logger:    log,
		stopFuncs: stopFuncs,
	}, nil
}
