// Package main runs the chainhook activity indexer: webhook ingestion,
// activity store, and the read API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cypher-activity/internal/api"
	"cypher-activity/internal/chainhook"
	"cypher-activity/internal/config"
	"cypher-activity/internal/ingest"
	"cypher-activity/internal/storage"
	"cypher-activity/internal/storage/memory"
	"cypher-activity/internal/storage/migrations"
	mongostore "cypher-activity/internal/storage/mongo"
	pgstore "cypher-activity/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "activity-server",
		Short:        "Chainhook activity indexer",
		SilenceUsage: true,
		RunE:         runServer,
	}

	root.Flags().String("mongodb-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	root.Flags().String("db-name", "cypherbtc", "MongoDB database name")
	root.Flags().String("postgres-uri", "", "PostgreSQL DSN (uses Postgres instead of MongoDB when set)")
	root.Flags().Bool("use-memory", false, "use in-memory storage instead of a database")
	root.Flags().Int("port", 3000, "HTTP listen port")
	root.Flags().String("chainhook-secret", "", "shared chainhook webhook secret")
	root.Flags().String("network", "testnet", "target Stacks network")
	root.Flags().String("profiles-contract", "", "profiles contract id")
	root.Flags().String("cbtc-contract", "", "cBTC token asset identifier")
	root.Flags().String("collectibles-contract", "", "collectibles asset identifier")
	root.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := createStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	processor := ingest.NewProcessor(ingest.Options{
		Store:      store,
		Normalizer: chainhook.NewNormalizer(cfg.Contracts),
		Logger:     logger.Named("ingest"),
	})

	server := api.New(api.Options{
		Store:     store,
		Processor: processor,
		Secret:    cfg.Secret,
		Logger:    logger.Named("api"),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("server started",
		zap.Int("port", cfg.Port),
		zap.String("network", cfg.Network),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// createStore selects the activity store backend: in-memory, Postgres when a
// DSN is configured, MongoDB otherwise. Store connectivity failures here are
// fatal to process start.
func createStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.ActivityStore, func(), error) {
	switch {
	case cfg.UseMemory:
		logger.Info("using in-memory activity store")
		return memory.NewActivityStore(), func() {}, nil

	case cfg.PostgresURI != "":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresURI)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to postgres")
		return pgstore.NewActivityStore(pool), pool.Close, nil

	default:
		db, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.DBName)
		if err != nil {
			return nil, nil, err
		}
		store := mongostore.NewActivityStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = db.Close(ctx)
			return nil, nil, err
		}
		logger.Info("connected to mongodb", zap.String("db", cfg.DBName))
		cleanup := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Close(closeCtx)
		}
		return store, cleanup, nil
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
