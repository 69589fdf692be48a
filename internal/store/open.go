package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the ledger named by driver and runs its migration.
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig, opts ...Option) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverSQLite:
		st, err = NewSQLite(databaseURL, opts...)
	case DriverPostgres:
		st, err = NewPostgres(ctx, databaseURL, poolCfg, opts...)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
