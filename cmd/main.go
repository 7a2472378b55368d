package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"BackofficeAPI/internal/config"
	"BackofficeAPI/internal/crud"
	"BackofficeAPI/internal/db"
	"BackofficeAPI/internal/handler"
	"BackofficeAPI/internal/logger"
	"BackofficeAPI/internal/query"
	"BackofficeAPI/internal/router"
	"BackofficeAPI/internal/schema"
	"BackofficeAPI/internal/store"
)

func main() {
	debugFlag := flag.Bool("d", false, "enable debug logging")
	migrateFlag := flag.Bool("migrate", false, "apply pending migrations before serving")
	publishFlag := flag.Bool("publish-schemas", false, "copy schema documents from schemas_dir into redis and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "log init failed: %v\n", err)
		os.Exit(1)
	}
	logger.SetDebug(*debugFlag)

	ctx := context.Background()

	if *publishFlag {
		if err := publishSchemas(ctx, cfg); err != nil {
			fatal("schema_publish_failed", err)
		}
		return
	}

	if *migrateFlag {
		if err := db.Migrate(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
			fatal("migrate_failed", err)
		}
	}

	if err := db.InitPostgres(cfg.PostgresDSN); err != nil {
		fatal("postgres_init_failed", err)
	}
	defer db.ClosePostgres()
	logger.Info("postgres_connected", nil)

	src, err := schemaSource(ctx, cfg)
	if err != nil {
		fatal("schema_source_failed", err)
	}
	registry, err := schema.Load(ctx, src)
	db.CloseRedis()
	if err != nil {
		fatal("registry_init_failed", err)
	}
	logger.Info("registry_loaded", map[string]any{"entities": registry.Names()})

	entities, err := buildEntities(cfg, registry, store.NewPostgres(db.Pool))
	if err != nil {
		fatal("entity_init_failed", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg.CORS, entities),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server_start", map[string]any{"port": cfg.Port})
	log.Printf("starting server on port %s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal("server_error", err)
	}
	logger.Info("server_stopped", nil)
}

func fatal(event string, err error) {
	logger.Error(event, map[string]any{"error": err.Error()})
	fmt.Fprintf(os.Stderr, "%s: %v\n", event, err)
	os.Exit(1)
}

func schemaSource(ctx context.Context, cfg *config.Config) (schema.Source, error) {
	if cfg.SchemaSource != "redis" {
		return schema.DirSource{Dir: cfg.SchemasDir}, nil
	}
	if err := db.InitRedis(cfg.RedisAddr); err != nil {
		return nil, err
	}
	if err := db.PingRedis(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return schema.RedisSource{Client: db.RDB, Key: cfg.SchemaRedisKey}, nil
}

func publishSchemas(ctx context.Context, cfg *config.Config) error {
	docs, err := schema.DirSource{Dir: cfg.SchemasDir}.Documents(ctx)
	if err != nil {
		return err
	}
	// refuse to publish documents that would fail to load
	for _, doc := range docs {
		if _, err := schema.Parse(doc); err != nil {
			return err
		}
	}
	if err := db.InitRedis(cfg.RedisAddr); err != nil {
		return err
	}
	defer db.CloseRedis()
	if err := db.PingRedis(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	if err := schema.Publish(ctx, db.RDB, cfg.SchemaRedisKey, docs); err != nil {
		return err
	}
	logger.Info("schemas_published", map[string]any{"key": cfg.SchemaRedisKey, "count": len(docs)})
	return nil
}

// buildEntities creates one service per served entity. A served entity
// without a schema aborts startup.
func buildEntities(cfg *config.Config, registry *schema.Registry, st store.Store) (handler.Entities, error) {
	names := cfg.Entities
	if len(names) == 0 {
		names = registry.Names()
	}
	opts := query.ParseOptions{Strict: cfg.StrictParams, DefaultPageSize: cfg.DefaultPageSize}

	entities := make(handler.Entities, len(names))
	for _, name := range names {
		es, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		svc, err := crud.NewService(name, registry, st, crud.SchemaProjection(es), opts)
		if err != nil {
			return nil, err
		}
		entities[name] = handler.ForService(svc)
	}
	return entities, nil
}
