package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camarohq/hunter/internal/model"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), "", "")
	require.NoError(t, err)
	return s
}

func TestFileStore_EmptyState(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	seen, err := s.LoadSeen(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen)

	doc, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Listings)
}

func TestFileStore_SeenRoundTrip(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSeen(ctx, model.NewSeenLedger("b", "a")))

	raw, err := os.ReadFile(s.SeenPath())
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(raw))

	seen, err := s.LoadSeen(ctx)
	require.NoError(t, err)
	assert.True(t, seen.Has("a"))
	assert.True(t, seen.Has("b"))
}

func TestFileStore_CatalogEnvelope(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	doc := model.CatalogDocument{
		UpdatedAt: "2024-01-01T00:00:00Z",
		RunID:     "run-1",
		Total:     1,
		NewCount:  1,
		Listings:  []model.Listing{{Identity: "abc", URL: "https://x.test/1", IsNew: true}},
	}
	require.NoError(t, s.SaveCatalog(ctx, doc))

	raw, err := os.ReadFile(s.CatalogPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"updated_at": "2024-01-01T00:00:00Z"`)
	assert.Contains(t, string(raw), `"new_count": 1`)

	got, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestFileStore_CatalogBareArray(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, os.WriteFile(s.CatalogPath(),
		[]byte(`[{"id":"abc","title":"1969 Camaro","price":"$1","url":"https://x.test/1"}]`), 0o644))

	doc, err := s.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Listings, 1)
	assert.Equal(t, "abc", doc.Listings[0].Identity)
	assert.Equal(t, 1, doc.Total)
}

func TestFileStore_EmptyCatalogWrittenAsArray(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, s.SaveCatalog(context.Background(), model.CatalogDocument{UpdatedAt: "t"}))

	raw, err := os.ReadFile(s.CatalogPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"listings": []`)
}

func TestFileStore_CorruptFilesAreErrors(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(s.SeenPath(), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(s.CatalogPath(), []byte("{not json"), 0o644))

	_, err := s.LoadSeen(ctx)
	require.Error(t, err)
	_, err = s.LoadCatalog(ctx)
	require.Error(t, err)
}

func TestFileStore_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "catalog.json", "seen.json")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveSeen(ctx, model.NewSeenLedger("a")))
	require.NoError(t, s.SaveCatalog(ctx, model.CatalogDocument{}))
	require.NoError(t, s.SaveCatalog(ctx, model.CatalogDocument{Total: 0}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"catalog.json", "seen.json"}, names)
}

func TestFileStore_FailedWriteKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "", "")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.SaveSeen(ctx, model.NewSeenLedger("a")))

	// A directory in place of the target makes the rename fail.
	require.NoError(t, os.Remove(s.SeenPath()))
	require.NoError(t, os.Mkdir(s.SeenPath(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.SeenPath(), "keep"), []byte("x"), 0o644))

	err = s.SaveSeen(ctx, model.NewSeenLedger("a", "b"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestFileStore_Commit(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	doc := model.CatalogDocument{
		UpdatedAt: "2024-01-01T00:00:00Z",
		Total:     1,
		NewCount:  1,
		Listings:  []model.Listing{{Identity: "abc", IsNew: true}},
	}
	require.NoError(t, s.Commit(ctx, doc, model.NewSeenLedger("abc")))

	got, err := s.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	seen, err := s.LoadSeen(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, seen.Sorted())
}

// blockSeenPath puts a non-empty directory where the ledger file goes so a
// rename onto it fails.
func blockSeenPath(t *testing.T, s *FileStore) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(s.SeenPath(), "occupied"), 0o755))
}

func TestFileStore_CommitLedgerFailureRestoresCatalog(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	previous := model.CatalogDocument{
		UpdatedAt: "2024-01-01T00:00:00Z",
		Total:     1,
		Listings:  []model.Listing{{Identity: "old"}},
	}
	require.NoError(t, s.SaveCatalog(ctx, previous))
	before, err := os.ReadFile(s.CatalogPath())
	require.NoError(t, err)

	blockSeenPath(t, s)

	err = s.Commit(ctx, model.CatalogDocument{
		UpdatedAt: "2024-01-02T00:00:00Z",
		Total:     1,
		NewCount:  1,
		Listings:  []model.Listing{{Identity: "new", IsNew: true}},
	}, model.NewSeenLedger("new"))
	require.Error(t, err)

	after, err := os.ReadFile(s.CatalogPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	info, err := os.Stat(s.SeenPath())
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "ledger location untouched")

	temps, err := filepath.Glob(filepath.Join(filepath.Dir(s.CatalogPath()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, temps)
}

func TestFileStore_CommitLedgerFailureRemovesNewCatalog(t *testing.T) {
	s := newFileStore(t)
	blockSeenPath(t, s)

	err := s.Commit(context.Background(), model.CatalogDocument{
		Listings: []model.Listing{{Identity: "new", IsNew: true}},
	}, model.NewSeenLedger("new"))
	require.Error(t, err)

	_, err = os.Stat(s.CatalogPath())
	assert.True(t, os.IsNotExist(err), "catalog must not exist after a failed first commit")
}
