// Command server runs the dashboard HTTP API: campaign ingestion, account
// linking, reports and read access to the active data source.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nhle/agency-dashboard/internal/adsplatform"
	"github.com/nhle/agency-dashboard/internal/api"
	"github.com/nhle/agency-dashboard/internal/apperr"
	"github.com/nhle/agency-dashboard/internal/credential"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/datasource/factory"
	"github.com/nhle/agency-dashboard/internal/datasource/hosted"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/store"
	"github.com/nhle/agency-dashboard/internal/sync"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config.yaml")
	flag.Parse()

	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := resolveSecrets(cfg, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DataSource.LocalDBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	local, err := store.NewSQLiteStore(cfg.DataSource.LocalDBPath)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer local.Close()

	manager := factory.NewManager(
		factory.New(*cfg, local, logger),
		local, datasource.Kind(cfg.DataSource.Kind), cfg.DataSource.ProbeTimeout(), logger,
	)
	defer manager.Close()

	repo, resolver, closeDB := openHostedRepository(ctx, cfg, logger)
	defer closeDB()

	poller := sync.New(cfg.Sync.Schedule, logger)
	poller.Register(sync.ActiveSource{Provider: manager})
	if err := poller.Start(ctx); err != nil {
		return err
	}
	defer func() { <-poller.Stop().Done() }()

	handler := api.NewHandler(repo, resolver, manager, cfg.DataSource.LoadTimeout(), logger)
	router := api.NewRouter(handler, api.RouterConfig{
		IngestAPIKey:   cfg.Server.IngestAPIKey,
		JWTSecret:      cfg.Server.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "data_source", manager.CurrentKind(ctx))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	logger.Info("server exited gracefully")
	return nil
}

// resolveSecrets fills secrets missing from the config and environment from
// the OS keyring.
func resolveSecrets(cfg *model.AppConfig, logger *slog.Logger) error {
	secrets := []struct {
		key   string
		value *string
	}{
		{credential.KeyIngestAPIKey, &cfg.Server.IngestAPIKey},
		{credential.KeyJWTSecret, &cfg.Server.JWTSecret},
		{credential.KeyHostedDatabaseURL, &cfg.Hosted.DatabaseURL},
	}
	for _, s := range secrets {
		v, err := credential.Fallback(*s.value, s.key, nil)
		if err != nil {
			logger.Warn("reading secret from keyring", "key", s.key, "error", err)
			continue
		}
		*s.value = v
	}
	if cfg.Server.IngestAPIKey == "" {
		logger.Warn("no ingest API key configured; campaign ingestion will reject every request")
	}
	if cfg.Server.JWTSecret == "" {
		logger.Warn("no JWT secret configured; user endpoints will reject every request")
	}
	return nil
}

// openHostedRepository connects the repository used by ingestion, linking
// and reports. Without a database those handlers answer with an error.
func openHostedRepository(ctx context.Context, cfg *model.AppConfig, logger *slog.Logger) (api.Repository, api.MCCResolver, func()) {
	pool, err := hosted.Open(ctx, cfg.Hosted)
	if err != nil {
		logger.Warn("hosted database unavailable", "error", err)
		return offlineRepository{err: err}, offlineResolver{}, func() {}
	}
	if err := hosted.EnsureSchema(ctx, pool); err != nil {
		logger.Warn("ensuring hosted schema", "error", err)
	}
	logger.Info("database connection established")

	repo := hosted.NewRepository(pool)
	client := adsplatform.NewClient(cfg.Server.GoogleAdsBaseURL, cfg.Server.GoogleAdsDeveloperToken)
	resolver := adsplatform.NewResolver(client, repo, repo, logger)
	return repo, resolver, pool.Close
}

type offlineRepository struct {
	err error
}

func (o offlineRepository) unavailable() error {
	if apperr.IsAuth(o.err) {
		return o.err
	}
	return &apperr.NetworkError{Backend: "hosted", Op: "connect", Err: o.err}
}

func (o offlineRepository) UpsertCampaign(context.Context, model.Campaign) error {
	return o.unavailable()
}

func (o offlineRepository) UpsertAccountBinding(context.Context, model.AccountBinding) (*model.AccountBinding, error) {
	return nil, o.unavailable()
}

func (o offlineRepository) DailyReport(context.Context, string) ([]model.ReportRow, error) {
	return nil, o.unavailable()
}

func (o offlineRepository) ThirtyDayReport(context.Context, string) ([]model.ReportRow, error) {
	return nil, o.unavailable()
}

type offlineResolver struct{}

func (offlineResolver) Resolve(context.Context, string, string) (*adsplatform.Resolution, error) {
	return nil, &adsplatform.ResolveError{Code: adsplatform.CodeTokenMissing, Err: errors.New("hosted database unavailable")}
}
