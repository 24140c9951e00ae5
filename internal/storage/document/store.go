// Package document stores the ledger as a single JSON file.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

// Store is a storage.Gateway over one JSON document. Every Update works on
// a copy and replaces the file atomically, so a failed update leaves both
// the file and the in-memory document untouched.
type Store struct {
	path   string
	logger *applog.Logger

	mu  sync.Mutex
	doc *docFile
}

var _ storage.Gateway = (*Store)(nil)

// Open reads the document at path. A missing file is an empty ledger.
func Open(path string, logger *applog.Logger) (*Store, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	doc, err := readDoc(path)
	if errors.Is(err, fs.ErrNotExist) {
		doc = newDocFile()
	} else if err != nil {
		return nil, err
	}

	logger = logger.WithComponent(applog.ComponentStorage)
	logger.Debug("Document store opened", applog.FieldBackend, "document", "path", path)
	return &Store{path: path, logger: logger, doc: doc}, nil
}

func (s *Store) LoadAll(ctx context.Context) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.snapshot()
}

func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working, err := s.doc.clone()
	if err != nil {
		return err
	}
	if err := fn(&docTx{d: working}); err != nil {
		return err
	}
	if err := writeDoc(s.path, working); err != nil {
		return err
	}
	s.doc = working
	return nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == storage.ConfigDefaultAccount {
		return s.doc.ContaPadrao, s.doc.ContaPadrao != "", nil
	}
	v, ok := s.doc.Configuracoes[key]
	return v, ok, nil
}

// Close is a no-op; every update is already on disk.
func (s *Store) Close() error { return nil }

// ReadFile loads a ledger document or backup as a snapshot.
func ReadFile(path string) (core.Snapshot, error) {
	doc, err := readDoc(path)
	if err != nil {
		return core.Snapshot{}, err
	}
	return doc.snapshot()
}

// WriteFile writes snap as a backup document stamped with at.
func WriteFile(path string, snap core.Snapshot, at time.Time) error {
	doc := fromSnapshot(snap)
	doc.DataBackup = &at
	doc.VersaoSistema = backupVersion
	return writeDoc(path, doc)
}

func readDoc(path string) (*docFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	doc := newDocFile()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	if err := doc.migrateBankBalances(); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	doc.normalize()
	return doc, nil
}

// writeDoc replaces path through a temp file in the same directory.
func writeDoc(path string, doc *docFile) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

func (d *docFile) clone() (*docFile, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	c := newDocFile()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}
	c.normalize()
	return c, nil
}
