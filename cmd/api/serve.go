package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"citeme/api/internal/app"
	"citeme/api/internal/citation"
	"citeme/api/internal/config"
	"citeme/api/internal/export"
	"citeme/api/internal/gitrepo"
	"citeme/api/internal/logging"
	"citeme/api/internal/remote"
	"citeme/api/internal/search"
	"citeme/api/internal/session"
	"citeme/api/internal/store"
	"citeme/api/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")
		if addr != "" {
			cfg.Addr = addr
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides API_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

// backend is the storage chosen by config plus what else it can serve.
type backend struct {
	kv    store.KV
	db    *sql.DB
	close func()
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, cfg.MigrationsDir)
		if err != nil {
			return backend{}, fmt.Errorf("database setup failed: %w", err)
		}
		return backend{kv: pg, db: pg.DB(), close: func() { pg.Close() }}, nil
	case config.StorageSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return backend{}, err
		}
		return backend{kv: s, close: func() { s.Close() }}, nil
	case config.StorageRedis:
		s, err := session.NewRedisStore(cfg.RedisURL, cfg.RedisTTL)
		if err != nil {
			return backend{}, fmt.Errorf("redis connection failed: %w", err)
		}
		return backend{kv: s, close: func() { s.Close() }}, nil
	default:
		return backend{kv: store.NewMemoryStore(), close: func() {}}, nil
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	storage, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer storage.close()
	logging.Info("storage ready", "backend", cfg.StorageBackend)

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos dir: %w", err)
	}
	gitService := gitrepo.New(cfg.ReposDir)

	var primary search.Backend
	if storage.db != nil {
		primary = search.NewPgFTS(storage.db)
	}
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	library := search.NewService(meiliClient, primary)
	if meiliClient != nil && storage.db != nil {
		go library.ReindexAllFromPG(context.Background())
	}

	deps := workspace.Deps{
		KV:        storage.kv,
		Generator: remote.NewCitationClient(cfg.CitationURL, cfg.GenerationTimeout),
		Library:   library,
		History:   gitService,
	}
	var credibility *remote.CredibilityClient
	if strings.TrimSpace(cfg.CredibilityURL) != "" {
		credibility = remote.NewCredibilityClient(cfg.CredibilityURL, cfg.ScoreTimeout)
		deps.Scorer = credibility
	}
	registry := workspace.NewRegistry(deps, workspace.Options{
		Limits: citation.Limits{
			Web:        cfg.MaxWebSources,
			FreeText:   cfg.MaxFreeTextSources,
			Supplement: cfg.MaxSupplementSource,
		},
		CharacterLimit:    cfg.CharacterLimit,
		GenerationTimeout: cfg.GenerationTimeout,
	})

	appDeps := app.Deps{
		Workspaces: registry,
		Storage:    storage.kv,
		Exporter:   export.NewService(export.ChromePrinter{}, export.Pandoc{}),
		Library:    library,
	}
	if credibility != nil {
		appDeps.Credibility = credibility
	}
	httpServer := app.NewHTTPServer(app.New(appDeps), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("CiteMe API listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn("shutdown error", "err", err)
	}
	return nil
}
