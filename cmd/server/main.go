package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"twinhub/internal/connector"
	"twinhub/internal/dispatcher"
	dispatcherhandler "twinhub/internal/dispatcher/handler"
	"twinhub/internal/events"
	"twinhub/internal/identity"
	jwttoken "twinhub/internal/jwt_token"
	"twinhub/internal/part"
	parthandler "twinhub/internal/part/handler"
	partservice "twinhub/internal/part/service"
	partstore "twinhub/internal/part/store"
	"twinhub/internal/platform/config"
	"twinhub/internal/platform/httpserver"
	"twinhub/internal/platform/logger"
	"twinhub/internal/platform/postgres"
	"twinhub/internal/platform/redis"
	"twinhub/internal/registry"
	"twinhub/internal/submodelstore"
	httptransport "twinhub/internal/transport/http"
	"twinhub/internal/twin"
	twinhandler "twinhub/internal/twin/handler"
	twinmetrics "twinhub/internal/twin/metrics"
	twinservice "twinhub/internal/twin/service"
	twinstore "twinhub/internal/twin/store"
	"twinhub/pkg/platform/tx"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid configuration", err)
	}

	ctx := context.Background()

	// Persistence: Postgres when configured, in-memory otherwise so the
	// server stays usable for local development.
	var (
		db     *sql.DB
		twins  twin.Store
		parts  part.Store
		runner tx.Runner = tx.NopRunner{}
	)
	if cfg.PostgresDSN != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			fatal(log, "postgres connection failed", err)
		}
		defer db.Close()
		if err := postgres.Migrate(db); err != nil {
			fatal(log, "postgres migration failed", err)
		}
		twins = twinstore.NewPostgres(db)
		parts = partstore.NewPostgres(db)
		runner = tx.NewSQLRunner(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		twins = twinstore.NewMemory()
		parts = partstore.NewMemory()
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		fatal(log, "redis connection failed", err)
	}
	var submodels submodelstore.Store
	if redisClient != nil {
		defer redisClient.Close()
		submodels = submodelstore.NewRedis(redisClient.Client)
	} else {
		log.Warn("no redis URL configured, using in-memory submodel store")
		submodels = submodelstore.NewMemory()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafka(ctx, cfg.Kafka, log)
		if err != nil {
			fatal(log, "kafka connection failed", err)
		}
		publisher = kafka
	}
	defer publisher.Close()

	m := twinmetrics.New()
	provisioner := connector.NewProvisioner(connector.NewClient(cfg.Connector), identity.NewDeriver(), log)
	dtr := registry.NewClient(cfg.Registry)

	orchestrator := twinservice.NewOrchestrator(twins, parts, submodels, provisioner, dtr, runner, publisher, m, cfg, log)
	sharing := twinservice.NewSharing(twins, parts, publisher, m, log)
	partSvc := partservice.NewService(parts, twins, runner, log)
	shortcut := partservice.NewShortcut(parts, twins, orchestrator, log)
	dispatcherSvc := dispatcher.NewService(twins, submodels, log)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "twinhub", "twinhub-api")
	validator := jwttoken.NewJWTServiceAdapter(jwtService)

	checks := map[string]httptransport.Health{}
	if db != nil {
		checks["postgres"] = db.Ping
	}
	if redisClient != nil {
		checks["redis"] = func() error { return redisClient.Health(context.Background()) }
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Parts:      parthandler.New(partSvc, shortcut, log, validator),
		Twins:      twinhandler.New(orchestrator, sharing, log, validator),
		Dispatcher: dispatcherhandler.New(dispatcherSvc, cfg.DispatcherAPIKey, log),
		Logger:     log,
		Checks:     checks,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting twinhub", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
	log.Info("server stopped")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
