package main

import (
	"context"

	"github.com/sells-group/divisions-cli/internal/dataset"
	"github.com/sells-group/divisions-cli/internal/resolver"
)

// openGateway builds the configured dataset gateway. SQLite is the default;
// postgres expects a PostGIS database that already holds a snapshot.
func openGateway(ctx context.Context) (dataset.Gateway, error) {
	if cfg.Dataset.Driver == "postgres" {
		return dataset.ConnectPostgres(ctx, cfg.Dataset.DatabaseURL)
	}

	gw, err := dataset.OpenSQLite(cfg.Dataset.Path)
	if err != nil {
		return nil, err
	}
	if err := gw.Migrate(ctx); err != nil {
		gw.Close() //nolint:errcheck
		return nil, err
	}
	return gw, nil
}

// initService opens the gateway and wraps it in the resolution engine.
// The returned service owns the gateway; close the service, not the gateway.
func initService(ctx context.Context) (*resolver.Service, error) {
	gw, err := openGateway(ctx)
	if err != nil {
		return nil, err
	}

	svc, err := resolver.New(ctx, gw, cfg.Cache.MaxEntries)
	if err != nil {
		gw.Close() //nolint:errcheck
		return nil, err
	}
	return svc, nil
}
