package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/db"
	"github.com/camarohq/hunter/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects a pool and verifies it with a ping.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS seen_ids (
	identity      TEXT PRIMARY KEY,
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listings (
	position INTEGER PRIMARY KEY,
	identity TEXT NOT NULL UNIQUE,
	data     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_runs (
	run_id     TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL,
	total      INTEGER NOT NULL,
	new_count  INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_catalog_runs_created_at ON catalog_runs(created_at DESC);
`

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// LoadSeen implements Store.
func (s *PostgresStore) LoadSeen(ctx context.Context) (model.SeenLedger, error) {
	rows, err := s.pool.Query(ctx, `SELECT identity FROM seen_ids`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load seen")
	}
	defer rows.Close()

	seen := model.NewSeenLedger()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan seen")
		}
		seen.Add(id)
	}
	return seen, eris.Wrap(rows.Err(), "postgres: iterate seen")
}

// SaveSeen inserts every identity not yet stored. The ledger never shrinks.
func (s *PostgresStore) SaveSeen(ctx context.Context, seen model.SeenLedger) error {
	return s.inTx(ctx, "seen", func(tx pgx.Tx) error {
		return pgSaveSeen(ctx, tx, seen)
	})
}

// LoadCatalog implements Store.
func (s *PostgresStore) LoadCatalog(ctx context.Context) (model.CatalogDocument, error) {
	var doc model.CatalogDocument

	err := s.pool.QueryRow(ctx,
		`SELECT run_id, updated_at, total, new_count FROM catalog_runs ORDER BY created_at DESC LIMIT 1`,
	).Scan(&doc.RunID, &doc.UpdatedAt, &doc.Total, &doc.NewCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CatalogDocument{}, nil
	}
	if err != nil {
		return model.CatalogDocument{}, eris.Wrap(err, "postgres: load catalog meta")
	}

	rows, err := s.pool.Query(ctx, `SELECT data FROM listings ORDER BY position`)
	if err != nil {
		return model.CatalogDocument{}, eris.Wrap(err, "postgres: load listings")
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return model.CatalogDocument{}, eris.Wrap(err, "postgres: scan listing")
		}
		var l model.Listing
		if err := json.Unmarshal(data, &l); err != nil {
			return model.CatalogDocument{}, eris.Wrap(err, "postgres: decode listing")
		}
		doc.Listings = append(doc.Listings, l)
	}
	if err := rows.Err(); err != nil {
		return model.CatalogDocument{}, eris.Wrap(err, "postgres: iterate listings")
	}
	return doc, nil
}

// SaveCatalog replaces the stored catalog and records the run in one transaction.
func (s *PostgresStore) SaveCatalog(ctx context.Context, doc model.CatalogDocument) error {
	return s.inTx(ctx, "catalog", func(tx pgx.Tx) error {
		return pgSaveCatalog(ctx, tx, doc)
	})
}

// Commit writes the catalog and the ledger in one transaction.
func (s *PostgresStore) Commit(ctx context.Context, doc model.CatalogDocument, seen model.SeenLedger) error {
	return s.inTx(ctx, "commit", func(tx pgx.Tx) error {
		if err := pgSaveCatalog(ctx, tx, doc); err != nil {
			return err
		}
		return pgSaveSeen(ctx, tx, seen)
	})
}

func (s *PostgresStore) inTx(ctx context.Context, what string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(ctx), "postgres: commit %s", what)
}

func pgSaveSeen(ctx context.Context, tx pgx.Tx, seen model.SeenLedger) error {
	ids := seen.Sorted()
	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{id}
	}
	if _, err := db.InsertMissing(ctx, tx, db.InsertConfig{
		Table:        "seen_ids",
		Columns:      []string{"identity"},
		ConflictKeys: []string{"identity"},
	}, rows); err != nil {
		return eris.Wrap(err, "postgres: save seen")
	}
	return nil
}

func pgSaveCatalog(ctx context.Context, tx pgx.Tx, doc model.CatalogDocument) error {
	runID := doc.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	rows := make([][]any, len(doc.Listings))
	for i, l := range doc.Listings {
		data, err := json.Marshal(l)
		if err != nil {
			return eris.Wrap(err, "postgres: encode listing")
		}
		rows[i] = []any{i, l.Identity, data}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM listings`); err != nil {
		return eris.Wrap(err, "postgres: clear listings")
	}
	if _, err := db.CopyFrom(ctx, tx, "listings", []string{"position", "identity", "data"}, rows); err != nil {
		return eris.Wrap(err, "postgres: save listings")
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO catalog_runs (run_id, updated_at, total, new_count) VALUES ($1, $2, $3, $4)`,
		runID, doc.UpdatedAt, doc.Total, doc.NewCount,
	); err != nil {
		return eris.Wrap(err, "postgres: insert catalog run")
	}
	return nil
}
