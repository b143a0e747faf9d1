package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camarohq/hunter/internal/config"
	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/relevance"
	"github.com/camarohq/hunter/internal/source"
	"github.com/camarohq/hunter/internal/state"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
  <item>
    <title>1969 Chevrolet Camaro SS</title>
    <link>https://x.test/listing/42?ref=abc</link>
    <description>Asking $45,000</description>
  </item>
  <item>
    <title>1968 Camaro</title>
    <link>https://x.test/listing/68</link>
  </item>
</channel></rss>`

func testConfig(t *testing.T, feedURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	sources := fmt.Sprintf(`sources:
  - name: Test Feed
    kind: rss
    location: Texas
    feeds:
      - url: %s
  - name: Broken Feed
    kind: rss
    feeds:
      - url: %s/missing
`, feedURL, feedURL)
	sourcesPath := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(sourcesPath, []byte(sources), 0o644))

	c := &config.Config{}
	c.Target = relevance.Target{Model: "Camaro", Year: 1969, MinYear: 1960, MaxYear: 1979}
	c.Catalog.Capacity = 1000
	c.Catalog.Order = "newest"
	c.State.Driver = "file"
	c.State.Dir = filepath.Join(dir, "state")
	c.State.LockTTLSecs = 3600
	c.Fetch.MaxRetries = 1
	c.Fetch.RatePerHost = 100
	c.Engine.Concurrency = 2
	c.Retry.MaxAttempts = 1
	c.Sources.File = sourcesPath
	return c
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHunt_EndToEnd(t *testing.T) {
	srv := feedServer(t)
	c := testConfig(t, srv.URL)

	report, err := hunt(context.Background(), c, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.New)
	require.Len(t, report.Sources, 2)
	assert.NotEmpty(t, report.Sources[1].Error)

	data, err := os.ReadFile(filepath.Join(c.State.Dir, "listings.json"))
	require.NoError(t, err)
	var doc model.CatalogDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Listings, 1)
	assert.Equal(t, 45000, doc.Listings[0].PriceAmount)
	assert.Equal(t, "Texas", doc.Listings[0].Location)
	assert.Equal(t, "Test Feed", doc.Listings[0].Source)
	assert.NoFileExists(t, filepath.Join(c.State.Dir, state.LockFile), "lock released")

	again, err := hunt(context.Background(), c, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Counts.New)
	assert.Equal(t, 1, again.Counts.Total)
}

func TestHunt_SelectedSourceAndDryRun(t *testing.T) {
	srv := feedServer(t)
	c := testConfig(t, srv.URL)

	report, err := hunt(context.Background(), c, []string{"Test Feed"}, true)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.True(t, report.DryRun)
	assert.NoFileExists(t, filepath.Join(c.State.Dir, "listings.json"))
}

func TestHunt_UnknownSource(t *testing.T) {
	c := testConfig(t, "http://127.0.0.1:1")
	_, err := hunt(context.Background(), c, []string{"Nope"}, false)
	assert.Error(t, err)
}

func TestHunt_Locked(t *testing.T) {
	c := testConfig(t, "http://127.0.0.1:1")
	lock, err := state.AcquireLock(c.State.Dir, 0)
	require.NoError(t, err)
	defer lock.Release() //nolint:errcheck

	c.State.LockTTLSecs = 3600
	_, err = hunt(context.Background(), c, nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, state.ErrLocked))
}

func TestHunt_InvalidConfig(t *testing.T) {
	c := testConfig(t, "http://127.0.0.1:1")
	c.Catalog.Capacity = 0
	_, err := hunt(context.Background(), c, nil, false)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	srv := feedServer(t)
	c := testConfig(t, srv.URL)
	report, err := hunt(context.Background(), c, []string{"Test Feed"}, true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report))
	assert.Contains(t, buf.String(), `"run_id"`)
	assert.Contains(t, buf.String(), `"new": 1`)
}

func TestPrintSources(t *testing.T) {
	catalog, err := source.LoadCatalog("")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printSources(&buf, catalog, []string{"Kijiji"}))
	out := buf.String()
	assert.Contains(t, out, "eBay Motors")
	assert.Contains(t, out, "Barrett-Jackson")
	assert.Regexp(t, `2\s+Kijiji\s+rss\s+4\s+false\s+true`, out)
	assert.Regexp(t, `1\s+eBay Motors\s+rss\s+3\s+false\s+false`, out)
}

func TestPrintSeen(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSeen(&buf, model.NewSeenLedger("b", "a"), true))
	assert.Equal(t, "2 identities seen\na\nb\n", buf.String())
}
