// Package factory constructs data sources by kind and owns the process's
// active data source.
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nhle/agency-dashboard/internal/credential"
	"github.com/nhle/agency-dashboard/internal/datasource"
	"github.com/nhle/agency-dashboard/internal/datasource/hosted"
	"github.com/nhle/agency-dashboard/internal/datasource/hybrid"
	"github.com/nhle/agency-dashboard/internal/datasource/mock"
	"github.com/nhle/agency-dashboard/internal/datasource/sheet"
	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/store"
)

// Builder constructs one kind of data source.
type Builder func(ctx context.Context) (datasource.DataSource, error)

// Factory turns a kind into a new data source instance. It has no state of
// its own beyond configuration; every call returns a fresh instance.
type Factory struct {
	cfg      model.AppConfig
	cache    store.Store
	logger   *slog.Logger
	secrets  credential.Resolver
	builders map[datasource.Kind]Builder
}

// Option configures a Factory.
type Option func(*Factory)

// WithBuilder overrides how kind is constructed.
func WithBuilder(kind datasource.Kind, b Builder) Option {
	return func(f *Factory) { f.builders[kind] = b }
}

// WithSecrets replaces the keyring lookup used for missing secrets.
func WithSecrets(r credential.Resolver) Option {
	return func(f *Factory) { f.secrets = r }
}

// New creates a factory. cache is the local store used by the hybrid
// adapter and for the persisted spreadsheet settings.
func New(cfg model.AppConfig, cache store.Store, logger *slog.Logger, opts ...Option) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{
		cfg:     cfg,
		cache:   cache,
		logger:  logger,
		secrets: credential.Lookup,
	}
	f.builders = map[datasource.Kind]Builder{
		datasource.KindMock:   f.buildMock,
		datasource.KindSheet:  f.buildSheet,
		datasource.KindHosted: f.buildHosted,
		datasource.KindHybrid: f.buildHybrid,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create constructs a new data source of the given kind.
func (f *Factory) Create(ctx context.Context, kind datasource.Kind) (datasource.DataSource, error) {
	b, ok := f.builders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown data source kind %q", kind)
	}
	ds, err := b(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating %s data source: %w", kind, err)
	}
	return ds, nil
}

func (f *Factory) buildMock(context.Context) (datasource.DataSource, error) {
	return mock.NewAdapter(), nil
}

// buildSheet prefers the connection saved from the dashboard over the one
// in the config file.
func (f *Factory) buildSheet(ctx context.Context) (datasource.DataSource, error) {
	cfg := f.cfg.Sheet
	if f.cache != nil {
		saved, err := store.GetSheetConfig(ctx, f.cache)
		if err != nil {
			return nil, err
		}
		if saved != nil {
			saved.Token = cfg.Token
			cfg = *saved
		}
	}
	return sheet.NewAdapter(cfg, f.logger)
}

func (f *Factory) openHosted(ctx context.Context) (*hosted.Adapter, error) {
	cfg := f.cfg.Hosted
	url, err := credential.Fallback(cfg.DatabaseURL, credential.KeyHostedDatabaseURL, f.secrets)
	if err != nil {
		f.logger.Warn("reading hosted database URL from keyring", "error", err)
	}
	cfg.DatabaseURL = url

	pool, err := hosted.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return hosted.New(pool, f.logger), nil
}

func (f *Factory) buildHosted(ctx context.Context) (datasource.DataSource, error) {
	return f.openHosted(ctx)
}

func (f *Factory) buildHybrid(ctx context.Context) (datasource.DataSource, error) {
	if f.cache == nil {
		return nil, fmt.Errorf("hybrid data source needs a local store")
	}
	remote, err := f.openHosted(ctx)
	if err != nil {
		return nil, err
	}
	return hybrid.New(remote, f.cache, f.cfg.DataSource.CacheTTL(), f.logger), nil
}
