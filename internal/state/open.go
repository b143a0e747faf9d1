package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Supported store drivers.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a Store.
type Options struct {
	Driver      string
	Dir         string
	CatalogFile string
	SeenFile    string
	DatabaseURL string
}

// Open builds the Store named by opts.Driver and migrates SQL schemas.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFile:
		return NewFileStore(opts.Dir, opts.CatalogFile, opts.SeenFile)
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		dsn := opts.DatabaseURL
		if dsn == "" {
			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "state: create dir %s", opts.Dir)
			}
			dsn = filepath.Join(opts.Dir, "hunter.db")
		}
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, eris.New("state: postgres driver needs database_url")
		}
		s, err := NewPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("state: unknown driver %q", opts.Driver)
	}
}
