// Package state persists the seen ledger and the emitted catalog between runs.
package state

import (
	"context"

	"github.com/camarohq/hunter/internal/model"
)

// Store is the durable home of the seen ledger and the catalog. Loads of
// state that was never written return empty values, not errors. Each save
// replaces the previous value as one atomic unit.
type Store interface {
	LoadSeen(ctx context.Context) (model.SeenLedger, error)
	SaveSeen(ctx context.Context, seen model.SeenLedger) error
	LoadCatalog(ctx context.Context) (model.CatalogDocument, error)
	SaveCatalog(ctx context.Context, doc model.CatalogDocument) error
	// Commit replaces the catalog and the ledger together. On error neither
	// is changed.
	Commit(ctx context.Context, doc model.CatalogDocument, seen model.SeenLedger) error
	Close() error
}
