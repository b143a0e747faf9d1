package engine

import (
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/camarohq/hunter/internal/identity"
	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/normalize"
	"github.com/camarohq/hunter/internal/relevance"
)

// Order selects how equally-new records are displayed in the catalog.
type Order string

// Supported display orders. New records always come first.
const (
	OrderNewest Order = "newest"
	OrderOldest Order = "oldest"
)

// ParseOrder validates a configured order. Empty means OrderNewest.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case "", OrderNewest:
		return OrderNewest, nil
	case OrderOldest:
		return OrderOldest, nil
	default:
		return "", eris.Errorf("engine: unknown catalog order %q", s)
	}
}

// Batch is the buffered output of one adapter. A failed adapter yields a
// Batch with Err set and no candidates.
type Batch struct {
	Source     string
	Candidates []model.RawCandidate
	Err        error
	Duration   time.Duration
}

// Policy parameterizes one reconciliation.
type Policy struct {
	Filter   *relevance.Filter
	Capacity int
	Order    Order
	Now      time.Time
}

// SourceReport summarizes what one adapter contributed.
type SourceReport struct {
	Name       string        `json:"name"`
	Fetched    int           `json:"fetched"`
	Relevant   int           `json:"relevant"`
	Duplicates int           `json:"duplicates"`
	New        int           `json:"new"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Result is the outcome of Reconcile.
type Result struct {
	Catalog []model.Listing
	New     []model.Listing
	Seen    model.SeenLedger
	Counts  model.Counts
	Sources []SourceReport
}

// Reconcile merges adapter batches with the previous catalog. Batches are
// consumed in slice order and the first occurrence of an identity or a title
// identity wins. previous is the catalog persisted by the last run and seen
// the ledger as it stood before this run fetched anything. Neither input is
// modified.
func Reconcile(batches []Batch, seen model.SeenLedger, previous []model.Listing, p Policy) Result {
	var res Result
	ids := make(map[string]bool)
	titles := make(map[string]bool)
	var observed []string
	var fresh []model.Listing

	for _, b := range batches {
		rep := SourceReport{Name: b.Source, Duration: b.Duration, Fetched: len(b.Candidates)}
		if b.Err != nil {
			rep.Error = b.Err.Error()
		}
		defaults := normalize.Defaults{Source: b.Source, FetchedAt: p.Now}

		for _, c := range b.Candidates {
			res.Counts.Fetched++

			text := c.MatchText
			if text == "" {
				text = c.Title
			}
			if p.Filter != nil && !p.Filter.Matches(text) {
				continue
			}

			l, ok := normalize.Normalize(c, defaults)
			if !ok {
				res.Counts.Invalid++
				continue
			}
			res.Counts.Relevant++
			rep.Relevant++
			observed = append(observed, l.Identity)

			if ids[l.Identity] || titles[l.TitleIdentity] {
				res.Counts.Duplicates++
				rep.Duplicates++
				continue
			}
			ids[l.Identity] = true
			titles[l.TitleIdentity] = true

			l.IsNew = !seen.Has(l.Identity)
			if l.IsNew {
				res.New = append(res.New, l)
				rep.New++
			}
			fresh = append(fresh, l)
		}
		res.Sources = append(res.Sources, rep)
	}

	merged := fresh
	for _, old := range previous {
		l, ok := carryForward(old)
		if !ok {
			res.Counts.Invalid++
			continue
		}
		if ids[l.Identity] {
			// Re-fetched this run; the fresh copy replaces it.
			continue
		}
		if titles[l.TitleIdentity] {
			res.Counts.Duplicates++
			continue
		}
		ids[l.Identity] = true
		titles[l.TitleIdentity] = true
		merged = append(merged, l)
		res.Counts.Carried++
	}

	res.Catalog = retain(merged, p.Capacity, p.Order)
	res.Counts.Dropped = len(merged) - len(res.Catalog)
	res.Counts.New = len(res.New)
	res.Counts.Total = len(res.Catalog)
	res.Seen = seen.Union(observed...)
	return res
}

// carryForward prepares a persisted record for the merge. Records written by
// older catalog versions may lack a title identity or even an identity.
func carryForward(l model.Listing) (model.Listing, bool) {
	if l.Identity == "" {
		if l.URL == "" {
			return model.Listing{}, false
		}
		l.Identity = identity.URL(l.URL)
	}
	if l.TitleIdentity == "" {
		l.TitleIdentity = identity.Title(l.Title, l.Source)
	}
	l.IsNew = false
	return l, true
}

// retain keeps the capacity highest-priority records (new first, then most
// recently fetched) and returns them in display order.
func retain(merged []model.Listing, capacity int, order Order) []model.Listing {
	out := slices.Clone(merged)
	slices.SortStableFunc(out, func(a, b model.Listing) int {
		return compare(a, b, true)
	})

	if capacity > 0 && len(out) > capacity {
		dropped := 0
		for _, l := range out[capacity:] {
			if l.IsNew {
				dropped++
			}
		}
		if dropped > 0 {
			zap.L().Warn("engine: capacity truncated new listings",
				zap.Int("capacity", capacity),
				zap.Int("new_dropped", dropped),
			)
		}
		out = out[:capacity]
	}

	if order == OrderOldest {
		slices.SortStableFunc(out, func(a, b model.Listing) int {
			return compare(a, b, false)
		})
	}
	return out
}

func compare(a, b model.Listing, newestFirst bool) int {
	if a.IsNew != b.IsNew {
		if a.IsNew {
			return -1
		}
		return 1
	}
	c := a.FetchedTime().Compare(b.FetchedTime())
	if newestFirst {
		return -c
	}
	return c
}
