// Package notify delivers a digest of newly discovered listings. Every
// notifier is best-effort: it runs after the catalog and ledger are persisted
// and its failures never change the outcome of a run.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/model"
)

// Notifier delivers the new listings of one run. Implementations return nil
// without doing anything when listings is empty or they are not configured.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, listings []model.Listing) error
}

// Multi fans a digest out to several notifiers in order.
type Multi struct {
	notifiers []Notifier
}

// NewMulti builds a Multi from the non-nil notifiers.
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of wrapped notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify runs every notifier and logs each failure. It always returns nil.
func (m *Multi) Notify(ctx context.Context, listings []model.Listing) error {
	m.Deliver(ctx, listings)
	return nil
}

// Deliver is Notify that reports how many notifiers failed.
func (m *Multi) Deliver(ctx context.Context, listings []model.Listing) int {
	if len(listings) == 0 {
		return 0
	}
	failed := 0
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, listings); err != nil {
			zap.L().Error("notify: delivery failed",
				zap.String("notifier", n.Name()),
				zap.Int("listings", len(listings)),
				zap.Error(err),
			)
			failed++
			continue
		}
		zap.L().Info("notify: delivered",
			zap.String("notifier", n.Name()),
			zap.Int("listings", len(listings)),
		)
	}
	return failed
}
