package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/camarohq/hunter/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS seen_ids (
	identity      TEXT PRIMARY KEY,
	first_seen_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS listings (
	position INTEGER PRIMARY KEY,
	identity TEXT NOT NULL UNIQUE,
	data     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_runs (
	run_id     TEXT PRIMARY KEY,
	updated_at TEXT NOT NULL,
	total      INTEGER NOT NULL,
	new_count  INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadSeen implements Store.
func (s *SQLiteStore) LoadSeen(ctx context.Context) (model.SeenLedger, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM seen_ids`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load seen")
	}
	defer rows.Close() //nolint:errcheck

	seen := model.NewSeenLedger()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan seen")
		}
		seen.Add(id)
	}
	return seen, eris.Wrap(rows.Err(), "sqlite: iterate seen")
}

// SaveSeen inserts every identity not yet stored. The ledger never shrinks.
func (s *SQLiteStore) SaveSeen(ctx context.Context, seen model.SeenLedger) error {
	return s.inTx(ctx, "seen", func(tx *sql.Tx) error {
		return sqliteSaveSeen(ctx, tx, seen)
	})
}

// LoadCatalog implements Store.
func (s *SQLiteStore) LoadCatalog(ctx context.Context) (model.CatalogDocument, error) {
	var doc model.CatalogDocument

	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, updated_at, total, new_count FROM catalog_runs ORDER BY rowid DESC LIMIT 1`,
	).Scan(&doc.RunID, &doc.UpdatedAt, &doc.Total, &doc.NewCount)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CatalogDocument{}, nil
	}
	if err != nil {
		return model.CatalogDocument{}, eris.Wrap(err, "sqlite: load catalog meta")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM listings ORDER BY position`)
	if err != nil {
		return model.CatalogDocument{}, eris.Wrap(err, "sqlite: load listings")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return model.CatalogDocument{}, eris.Wrap(err, "sqlite: scan listing")
		}
		var l model.Listing
		if err := json.Unmarshal([]byte(data), &l); err != nil {
			return model.CatalogDocument{}, eris.Wrap(err, "sqlite: decode listing")
		}
		doc.Listings = append(doc.Listings, l)
	}
	if err := rows.Err(); err != nil {
		return model.CatalogDocument{}, eris.Wrap(err, "sqlite: iterate listings")
	}
	return doc, nil
}

// SaveCatalog replaces the stored catalog and records the run in one transaction.
func (s *SQLiteStore) SaveCatalog(ctx context.Context, doc model.CatalogDocument) error {
	return s.inTx(ctx, "catalog", func(tx *sql.Tx) error {
		return sqliteSaveCatalog(ctx, tx, doc)
	})
}

// Commit writes the catalog and the ledger in one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, doc model.CatalogDocument, seen model.SeenLedger) error {
	return s.inTx(ctx, "commit", func(tx *sql.Tx) error {
		if err := sqliteSaveCatalog(ctx, tx, doc); err != nil {
			return err
		}
		return sqliteSaveSeen(ctx, tx, seen)
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrapf(tx.Commit(), "sqlite: commit %s", what)
}

func sqliteSaveSeen(ctx context.Context, tx *sql.Tx, seen model.SeenLedger) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seen_ids (identity) VALUES (?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare seen insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, id := range seen.Sorted() {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return eris.Wrapf(err, "sqlite: insert seen %s", id)
		}
	}
	return nil
}

func sqliteSaveCatalog(ctx context.Context, tx *sql.Tx, doc model.CatalogDocument) error {
	runID := doc.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM listings`); err != nil {
		return eris.Wrap(err, "sqlite: clear listings")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO listings (position, identity, data) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare listing insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, l := range doc.Listings {
		data, err := json.Marshal(l)
		if err != nil {
			return eris.Wrap(err, "sqlite: encode listing")
		}
		if _, err := stmt.ExecContext(ctx, i, l.Identity, string(data)); err != nil {
			return eris.Wrapf(err, "sqlite: insert listing %s", l.Identity)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_runs (run_id, updated_at, total, new_count) VALUES (?, ?, ?, ?)`,
		runID, doc.UpdatedAt, doc.Total, doc.NewCount,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert catalog run")
	}
	return nil
}
