package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/relevance"
	"github.com/camarohq/hunter/internal/source"
	"github.com/camarohq/hunter/internal/state"
)

var runTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func camaroFilter() *relevance.Filter {
	f, err := relevance.New(relevance.Target{Model: "Camaro", Year: 1969, MinYear: 1960, MaxYear: 1979})
	if err != nil {
		panic(err)
	}
	return f
}

func policy(capacity int) Policy {
	return Policy{Filter: camaroFilter(), Capacity: capacity, Order: OrderNewest, Now: runTime}
}

func cand(title, url string) model.RawCandidate {
	return model.RawCandidate{Title: title, URL: url}
}

func numbered(n int) []model.RawCandidate {
	out := make([]model.RawCandidate, n)
	for i := range out {
		out[i] = cand(fmt.Sprintf("1969 Camaro SS #%d", i), fmt.Sprintf("https://x.test/listing/%d", i))
	}
	return out
}

type stubAdapter struct {
	name       string
	candidates []model.RawCandidate
	err        error
	failFirst  int
	panics     bool
	block      bool
	delay      time.Duration
	calls      atomic.Int32
}

func (a *stubAdapter) Name() string      { return a.name }
func (a *stubAdapter) Kind() source.Kind { return source.KindRSS }

func (a *stubAdapter) Fetch(ctx context.Context) ([]model.RawCandidate, error) {
	n := a.calls.Add(1)
	if a.panics {
		panic("selector exploded")
	}
	if a.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if int(n) <= a.failFirst {
		return nil, fmt.Errorf("transient failure %d", n)
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.candidates, nil
}

type recordingNotifier struct {
	got [][]model.Listing
	err error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, listings []model.Listing) error {
	r.got = append(r.got, listings)
	return r.err
}

// faultyStore fails the operation named by failOn.
type faultyStore struct {
	*state.MemoryStore
	failOn string
	saves  int
}

func (s *faultyStore) LoadSeen(ctx context.Context) (model.SeenLedger, error) {
	if s.failOn == "load_seen" {
		return nil, fmt.Errorf("ledger unreadable")
	}
	return s.MemoryStore.LoadSeen(ctx)
}

func (s *faultyStore) LoadCatalog(ctx context.Context) (model.CatalogDocument, error) {
	if s.failOn == "load_catalog" {
		return model.CatalogDocument{}, fmt.Errorf("catalog unreadable")
	}
	return s.MemoryStore.LoadCatalog(ctx)
}

// Commit fails as a whole when either part is marked broken, like a store
// that writes both in one transaction.
func (s *faultyStore) Commit(ctx context.Context, doc model.CatalogDocument, seen model.SeenLedger) error {
	switch s.failOn {
	case "save_catalog", "save_seen":
		return fmt.Errorf("disk full")
	}
	s.saves++
	return s.MemoryStore.Commit(ctx, doc, seen)
}
