package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camarohq/hunter/internal/identity"
	"github.com/camarohq/hunter/internal/model"
)

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderNewest, o)

	o, err = ParseOrder("oldest")
	require.NoError(t, err)
	assert.Equal(t, OrderOldest, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}

func TestReconcile_FirstRunSingleListing(t *testing.T) {
	c := cand("1969 Chevrolet Camaro SS", "https://x.test/listing/42?ref=abc")
	c.PriceText = "$45,000"

	res := Reconcile([]Batch{{Source: "eBay Motors", Candidates: []model.RawCandidate{c}}}, model.NewSeenLedger(), nil, policy(1000))

	require.Len(t, res.Catalog, 1)
	l := res.Catalog[0]
	assert.Equal(t, 45000, l.PriceAmount)
	assert.Equal(t, "$45,000", l.PriceDisplay)
	assert.True(t, l.IsNew)
	assert.Equal(t, identity.URL("https://x.test/listing/42"), l.Identity)
	assert.Equal(t, "eBay Motors", l.Source)
	assert.Equal(t, 1, res.Counts.New)
	assert.Len(t, res.New, 1)
	assert.True(t, res.Seen.Has(l.Identity))
}

func TestReconcile_SecondRunIsNotNew(t *testing.T) {
	c := cand("1969 Chevrolet Camaro SS", "https://x.test/listing/42?ref=abc")
	c.PriceText = "$45,000"
	batches := []Batch{{Source: "eBay Motors", Candidates: []model.RawCandidate{c}}}

	first := Reconcile(batches, model.NewSeenLedger(), nil, policy(1000))
	second := Reconcile(batches, first.Seen, first.Catalog, policy(1000))

	require.Len(t, second.Catalog, 1)
	assert.False(t, second.Catalog[0].IsNew)
	assert.Equal(t, 0, second.Counts.New)
	assert.Empty(t, second.New)
	assert.Equal(t, 0, second.Counts.Carried, "re-fetched record replaces its persisted copy")
}

func TestReconcile_RejectsAdjacentYear(t *testing.T) {
	batches := []Batch{{Source: "A", Candidates: []model.RawCandidate{
		cand("1968 Camaro", "https://a.test/68"),
		cand("1969 Camaro", "https://a.test/69"),
	}}}

	res := Reconcile(batches, model.NewSeenLedger(), nil, policy(1000))

	require.Len(t, res.Catalog, 1)
	assert.Equal(t, "https://a.test/69", res.Catalog[0].URL)
	assert.Equal(t, 2, res.Counts.Fetched)
	assert.Equal(t, 1, res.Counts.Relevant)
	assert.False(t, res.Seen.Has(identity.URL("https://a.test/68")), "rejected records never enter the ledger")
}

func TestReconcile_MatchTextSurface(t *testing.T) {
	c := cand("Chevrolet Camaro", "https://cc.test/listings/view/1969-camaro")
	c.MatchText = "Chevrolet Camaro https://cc.test/listings/view/1969-camaro"

	res := Reconcile([]Batch{{Source: "ClassicCars.com", Candidates: []model.RawCandidate{c}}}, model.NewSeenLedger(), nil, policy(10))
	assert.Len(t, res.Catalog, 1)
}

func TestReconcile_CrossSourceDuplicateCollapse(t *testing.T) {
	batches := []Batch{
		{Source: "eBay Motors", Candidates: []model.RawCandidate{cand("1969 Camaro RS", "https://x.test/car/7")}},
		{Source: "Kijiji", Candidates: []model.RawCandidate{cand("1969 Camaro RS/SS", "HTTPS://X.TEST/car/7/?utm=1")}},
	}

	res := Reconcile(batches, model.NewSeenLedger(), nil, policy(10))

	require.Len(t, res.Catalog, 1)
	assert.Equal(t, "eBay Motors", res.Catalog[0].Source)
	assert.Equal(t, 1, res.Counts.Duplicates)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, 1, res.Sources[1].Duplicates)
}

func TestReconcile_TitleCollisionCollapse(t *testing.T) {
	batches := []Batch{{Source: "Craigslist", Candidates: []model.RawCandidate{
		cand("1969  Camaro   SS", "https://austin.cl.test/1"),
		cand("1969 camaro ss", "https://dallas.cl.test/2"),
	}}}

	res := Reconcile(batches, model.NewSeenLedger(), nil, policy(10))

	require.Len(t, res.Catalog, 1)
	assert.Equal(t, "https://austin.cl.test/1", res.Catalog[0].URL)
	assert.True(t, res.Seen.Has(identity.URL("https://dallas.cl.test/2")), "collapsed duplicates still enter the ledger")
}

func TestReconcile_SameTitleDifferentSourcesKept(t *testing.T) {
	batches := []Batch{
		{Source: "A", Candidates: []model.RawCandidate{cand("1969 Camaro", "https://a.test/1")}},
		{Source: "B", Candidates: []model.RawCandidate{cand("1969 Camaro", "https://b.test/1")}},
	}
	res := Reconcile(batches, model.NewSeenLedger(), nil, policy(10))
	assert.Len(t, res.Catalog, 2)
}

func TestReconcile_MissingURLIsInvalid(t *testing.T) {
	batches := []Batch{{Source: "A", Candidates: []model.RawCandidate{cand("1969 Camaro", "  ")}}}
	res := Reconcile(batches, model.NewSeenLedger(), nil, policy(10))
	assert.Empty(t, res.Catalog)
	assert.Equal(t, 1, res.Counts.Invalid)
}

func TestReconcile_CarriesForwardAsNotNew(t *testing.T) {
	previous := []model.Listing{
		{Identity: "old1", TitleIdentity: "t-old1", Source: "Kijiji", Title: "69 Camaro", URL: "https://k.test/old1", FetchedAt: "2024-05-01T00:00:00Z", IsNew: true},
	}
	batches := []Batch{{Source: "eBay Motors", Candidates: []model.RawCandidate{cand("1969 Camaro", "https://e.test/1")}}}

	res := Reconcile(batches, model.NewSeenLedger("old1"), previous, policy(10))

	require.Len(t, res.Catalog, 2)
	assert.True(t, res.Catalog[0].IsNew)
	assert.Equal(t, "old1", res.Catalog[1].Identity)
	assert.False(t, res.Catalog[1].IsNew)
	assert.Equal(t, 1, res.Counts.Carried)
	assert.True(t, previous[0].IsNew, "input catalog is not modified")
}

func TestReconcile_CarriedLegacyRecords(t *testing.T) {
	previous := []model.Listing{
		{Source: "Kijiji", Title: "69 Camaro", URL: "https://k.test/legacy"},
		{Source: "Kijiji", Title: "no url"},
		{Identity: "dup", Source: "eBay Motors", Title: "1969 Camaro", URL: "https://e.test/other"},
	}
	batches := []Batch{{Source: "eBay Motors", Candidates: []model.RawCandidate{cand("1969 Camaro", "https://e.test/1")}}}

	res := Reconcile(batches, model.NewSeenLedger(), previous, policy(10))

	require.Len(t, res.Catalog, 2)
	assert.Equal(t, identity.URL("https://k.test/legacy"), res.Catalog[1].Identity)
	assert.Equal(t, identity.Title("69 Camaro", "Kijiji"), res.Catalog[1].TitleIdentity)
	assert.Equal(t, 1, res.Counts.Invalid)
	assert.Equal(t, 1, res.Counts.Duplicates, "carried record colliding on title identity is dropped")
}

func TestReconcile_FailedBatchReported(t *testing.T) {
	batches := []Batch{
		{Source: "A", Err: errors.New("timeout")},
		{Source: "B", Candidates: []model.RawCandidate{cand("1969 Camaro", "https://b.test/1")}},
	}
	res := Reconcile(batches, model.NewSeenLedger(), nil, policy(10))

	require.Len(t, res.Sources, 2)
	assert.Equal(t, "timeout", res.Sources[0].Error)
	assert.Equal(t, 1, res.Sources[1].New)
	assert.Len(t, res.Catalog, 1)
}

func TestReconcile_ZeroAdaptersKeepsCatalog(t *testing.T) {
	previous := []model.Listing{
		{Identity: "a", TitleIdentity: "ta", URL: "https://a.test", FetchedAt: "2024-05-02T00:00:00Z", IsNew: true},
		{Identity: "b", TitleIdentity: "tb", URL: "https://b.test", FetchedAt: "2024-05-01T00:00:00Z"},
	}
	res := Reconcile([]Batch{{Source: "A", Err: errors.New("down")}}, model.NewSeenLedger("a", "b"), previous, policy(10))

	require.Len(t, res.Catalog, 2)
	assert.Equal(t, 0, res.Counts.New)
	for _, l := range res.Catalog {
		assert.False(t, l.IsNew)
	}
}

func TestReconcile_RetentionBoundKeepsNew(t *testing.T) {
	all := numbered(1200)
	var seenIDs []string
	for _, c := range all[:900] {
		seenIDs = append(seenIDs, identity.URL(c.URL))
	}

	res := Reconcile([]Batch{{Source: "A", Candidates: all}}, model.NewSeenLedger(seenIDs...), nil, policy(500))

	assert.Len(t, res.Catalog, 500)
	assert.Equal(t, 300, res.Counts.New)
	assert.Equal(t, 700, res.Counts.Dropped)

	kept := map[string]bool{}
	for _, l := range res.Catalog {
		kept[l.Identity] = true
	}
	for _, l := range res.New {
		assert.True(t, kept[l.Identity], "new listing %s truncated", l.Identity)
	}
}

func TestReconcile_RetentionBoundAnySize(t *testing.T) {
	for _, n := range []int{0, 1, 5, 6, 50} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			res := Reconcile([]Batch{{Source: "A", Candidates: numbered(n)}}, model.NewSeenLedger(), nil, policy(5))
			assert.LessOrEqual(t, len(res.Catalog), 5)
			assert.Equal(t, min(n, 5), res.Counts.Total)
		})
	}
}

func TestReconcile_NewFirstOrdering(t *testing.T) {
	var previous []model.Listing
	for i := range 20 {
		previous = append(previous, model.Listing{
			Identity:      fmt.Sprintf("old%d", i),
			TitleIdentity: fmt.Sprintf("t-old%d", i),
			URL:           fmt.Sprintf("https://o.test/%d", i),
			FetchedAt:     runTime.Add(-time.Duration(i+1) * time.Hour).Format(time.RFC3339),
		})
	}
	fresh := numbered(10)
	seen := model.NewSeenLedger(identity.URL(fresh[2].URL), identity.URL(fresh[7].URL))

	for _, order := range []Order{OrderNewest, OrderOldest} {
		t.Run(string(order), func(t *testing.T) {
			p := policy(25)
			p.Order = order
			res := Reconcile([]Batch{{Source: "A", Candidates: fresh}}, seen, previous, p)

			require.Len(t, res.Catalog, 25)
			seenOld := false
			for _, l := range res.Catalog {
				if !l.IsNew {
					seenOld = true
				} else {
					assert.False(t, seenOld, "new listing after a non-new one")
				}
			}
		})
	}
}

func TestReconcile_RetentionDropsOldestCarried(t *testing.T) {
	previous := []model.Listing{
		{Identity: "older", TitleIdentity: "t1", URL: "https://o.test/1", FetchedAt: "2024-01-01T00:00:00Z"},
		{Identity: "newer", TitleIdentity: "t2", URL: "https://o.test/2", FetchedAt: "2024-05-01T00:00:00Z"},
	}
	batches := []Batch{{Source: "A", Candidates: []model.RawCandidate{cand("1969 Camaro", "https://a.test/1")}}}

	for _, order := range []Order{OrderNewest, OrderOldest} {
		p := policy(2)
		p.Order = order
		res := Reconcile(batches, model.NewSeenLedger("older", "newer"), previous, p)
		require.Len(t, res.Catalog, 2)
		assert.True(t, res.Catalog[0].IsNew)
		assert.Equal(t, "newer", res.Catalog[1].Identity)
	}
}

func TestReconcile_DisplayOrder(t *testing.T) {
	previous := []model.Listing{
		{Identity: "a", TitleIdentity: "ta", URL: "https://o.test/a", FetchedAt: "2024-01-01T00:00:00Z"},
		{Identity: "b", TitleIdentity: "tb", URL: "https://o.test/b", FetchedAt: "2024-03-01T00:00:00Z"},
		{Identity: "c", TitleIdentity: "tc", URL: "https://o.test/c", FetchedAt: "2024-02-01T00:00:00Z"},
	}
	seen := model.NewSeenLedger("a", "b", "c")

	res := Reconcile(nil, seen, previous, policy(10))
	assert.Equal(t, []string{"b", "c", "a"}, ids(res.Catalog))

	p := policy(10)
	p.Order = OrderOldest
	res = Reconcile(nil, seen, previous, p)
	assert.Equal(t, []string{"a", "c", "b"}, ids(res.Catalog))
}

func TestReconcile_Idempotent(t *testing.T) {
	batches := []Batch{
		{Source: "A", Candidates: numbered(30)},
		{Source: "B", Candidates: []model.RawCandidate{cand("1969 Camaro SS #3", "https://x.test/listing/3"), cand("1969 Camaro Z28", "https://b.test/z28")}},
	}
	previous := []model.Listing{{Identity: "p", TitleIdentity: "tp", URL: "https://p.test", FetchedAt: "2024-01-01T00:00:00Z"}}
	seen := model.NewSeenLedger("p")

	r1 := Reconcile(batches, seen, previous, policy(20))
	r2 := Reconcile(batches, seen, previous, policy(20))
	assert.Equal(t, r1.Catalog, r2.Catalog)
	assert.Equal(t, r1.Counts, r2.Counts)

	again := Reconcile(batches, r1.Seen, r1.Catalog, policy(20))
	assert.Equal(t, 0, again.Counts.New)
	assert.Equal(t, ids(r1.Catalog), ids(again.Catalog))
}

func TestReconcile_LedgerOnlyGrows(t *testing.T) {
	seen := model.NewSeenLedger("ancient")
	res := Reconcile([]Batch{{Source: "A", Candidates: numbered(3)}}, seen, nil, policy(10))
	assert.True(t, res.Seen.Has("ancient"))
	assert.Len(t, res.Seen, 4)
	assert.Len(t, seen, 1)
}

func ids(listings []model.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.Identity
	}
	return out
}
