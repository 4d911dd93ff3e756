package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ngm-data/causelist/internal/sources"
	"github.com/ngm-data/causelist/internal/store"
	"github.com/ngm-data/causelist/internal/transport"
)

// env bundles the shared dependencies a command runs with.
type env struct {
	store    store.Store
	registry *sources.Registry
	fetcher  *transport.HTTPFetcher
}

func initEnv(ctx context.Context) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.OpenSQLite(ctx, cfg.Store.SQLitePath, zap.L())
	default:
		st, err = store.OpenPostgres(ctx, cfg.Store.DatabaseURL, zap.L())
	}
	if err != nil {
		return nil, err
	}

	registry := sources.NewRegistry()
	if cfg.Sources.Overrides != "" {
		if err := registry.LoadOverrides(cfg.Sources.Overrides); err != nil {
			st.Close()
			return nil, err
		}
	}

	fetcher := transport.NewHTTPFetcher(transport.Options{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxAttempts: cfg.HTTP.MaxAttempts,
		PerHostRate: rate.Limit(cfg.HTTP.RatePerHost),
		Burst:       cfg.HTTP.Burst,
	})

	return &env{store: st, registry: registry, fetcher: fetcher}, nil
}

func (e *env) Close() {
	e.store.Close()
}

// selectCourts resolves the flag/config court selection for a command.
func (e *env) selectCourts(ids []string, kind string) ([]sources.Court, error) {
	k, err := sources.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	courts, err := e.registry.Select(ids, k)
	if err != nil {
		return nil, eris.Wrap(err, "resolving court selection")
	}
	return courts, nil
}
