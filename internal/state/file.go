package state

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/model"
)

// Default file names inside the state directory.
const (
	DefaultCatalogFile = "listings.json"
	DefaultSeenFile    = "seen_ids.json"
)

// FileStore keeps state as two JSON documents in a directory.
type FileStore struct {
	catalogPath string
	seenPath    string
}

// NewFileStore creates a FileStore rooted at dir. Empty file names fall back
// to the defaults.
func NewFileStore(dir, catalogFile, seenFile string) (*FileStore, error) {
	if catalogFile == "" {
		catalogFile = DefaultCatalogFile
	}
	if seenFile == "" {
		seenFile = DefaultSeenFile
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "state: create dir %s", dir)
	}
	return &FileStore{
		catalogPath: filepath.Join(dir, catalogFile),
		seenPath:    filepath.Join(dir, seenFile),
	}, nil
}

// CatalogPath returns the path of the catalog document.
func (s *FileStore) CatalogPath() string { return s.catalogPath }

// SeenPath returns the path of the seen ledger document.
func (s *FileStore) SeenPath() string { return s.seenPath }

// LoadSeen reads the ledger, a JSON array of identities.
func (s *FileStore) LoadSeen(_ context.Context) (model.SeenLedger, error) {
	data, err := readOptional(s.seenPath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return model.NewSeenLedger(), nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, eris.Wrapf(err, "state: decode %s", s.seenPath)
	}
	return model.NewSeenLedger(ids...), nil
}

// SaveSeen writes the ledger sorted so diffs stay small.
func (s *FileStore) SaveSeen(_ context.Context, seen model.SeenLedger) error {
	data, err := encodeSeen(seen)
	if err != nil {
		return err
	}
	return writeAtomic(s.seenPath, data)
}

// LoadCatalog reads the catalog. Both the enveloped document and a bare
// array of listings are accepted.
func (s *FileStore) LoadCatalog(_ context.Context) (model.CatalogDocument, error) {
	data, err := readOptional(s.catalogPath)
	if err != nil {
		return model.CatalogDocument{}, err
	}
	if data == nil {
		return model.CatalogDocument{}, nil
	}
	doc, err := decodeCatalog(data)
	if err != nil {
		return model.CatalogDocument{}, eris.Wrapf(err, "state: decode %s", s.catalogPath)
	}
	return doc, nil
}

// SaveCatalog writes the catalog document.
func (s *FileStore) SaveCatalog(_ context.Context, doc model.CatalogDocument) error {
	data, err := encodeCatalog(doc)
	if err != nil {
		return err
	}
	return writeAtomic(s.catalogPath, data)
}

// Commit stages both documents beside their targets and renames them into
// place. When the ledger cannot be replaced the previous catalog is put
// back, so a failed commit leaves both files as they were.
func (s *FileStore) Commit(_ context.Context, doc model.CatalogDocument, seen model.SeenLedger) error {
	catalogData, err := encodeCatalog(doc)
	if err != nil {
		return err
	}
	seenData, err := encodeSeen(seen)
	if err != nil {
		return err
	}
	previous, err := readOptional(s.catalogPath)
	if err != nil {
		return err
	}

	catalogTemp, err := stage(s.catalogPath, catalogData)
	if err != nil {
		return err
	}
	seenTemp, err := stage(s.seenPath, seenData)
	if err != nil {
		_ = os.Remove(catalogTemp)
		return err
	}

	if err := os.Rename(catalogTemp, s.catalogPath); err != nil {
		_ = os.Remove(catalogTemp)
		_ = os.Remove(seenTemp)
		return eris.Wrapf(err, "state: replace %s", s.catalogPath)
	}
	if err := os.Rename(seenTemp, s.seenPath); err != nil {
		_ = os.Remove(seenTemp)
		if rerr := s.restoreCatalog(previous); rerr != nil {
			return eris.Wrapf(err, "state: replace %s (catalog restore failed: %v)", s.seenPath, rerr)
		}
		return eris.Wrapf(err, "state: replace %s", s.seenPath)
	}
	return nil
}

// restoreCatalog puts back the catalog read before a commit. A catalog that
// did not exist is removed again.
func (s *FileStore) restoreCatalog(previous []byte) error {
	if previous == nil {
		if err := os.Remove(s.catalogPath); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "state: remove %s", s.catalogPath)
		}
		return nil
	}
	return writeAtomic(s.catalogPath, previous)
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func encodeSeen(seen model.SeenLedger) ([]byte, error) {
	data, err := json.Marshal(seen.Sorted())
	if err != nil {
		return nil, eris.Wrap(err, "state: encode seen ledger")
	}
	return data, nil
}

func encodeCatalog(doc model.CatalogDocument) ([]byte, error) {
	if doc.Listings == nil {
		doc.Listings = []model.Listing{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "state: encode catalog")
	}
	return data, nil
}

func decodeCatalog(data []byte) (model.CatalogDocument, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return model.CatalogDocument{}, nil
	}
	if trimmed[0] == '[' {
		var listings []model.Listing
		if err := json.Unmarshal(trimmed, &listings); err != nil {
			return model.CatalogDocument{}, err
		}
		return model.CatalogDocument{Total: len(listings), Listings: listings}, nil
	}
	var doc model.CatalogDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return model.CatalogDocument{}, err
	}
	return doc, nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "state: read %s", path)
	}
	return data, nil
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so readers see either the old or the new document.
func writeAtomic(path string, data []byte) error {
	tempPath, err := stage(path, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return eris.Wrapf(err, "state: replace %s", path)
	}
	return nil
}

// stage writes and syncs data to a uniquely named temp file beside path and
// returns its name. The temp file is removed on any error.
func stage(path string, data []byte) (string, error) {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return "", eris.Wrap(err, "state: temp name")
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", eris.Wrapf(err, "state: create %s", tempPath)
	}

	success := false
	defer func() {
		if f != nil {
			_ = f.Close()
		}
		if !success {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return "", eris.Wrapf(err, "state: write %s", tempPath)
	}
	if err := f.Sync(); err != nil {
		return "", eris.Wrapf(err, "state: sync %s", tempPath)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "state: close %s", tempPath)
	}
	f = nil
	success = true
	return tempPath, nil
}
