// Package fs is a filesystem-backed Gateway implementation, used for local
// development and tests in place of a real bucket. Adapted from the
// filesystem store pattern used alongside the GCS backend elsewhere in this
// module's lineage.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/objectstore"
)

// Store is a filesystem-based Gateway. One JSON file per key, directories
// created lazily per prefix.
type Store struct {
	baseDir  string
	prefixes objectstore.Prefixes
	mu       sync.RWMutex
}

// New creates a Store rooted at baseDir.
func New(baseDir string, prefixes objectstore.Prefixes) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, &domain.GatewayError{Op: "mkdir", Key: baseDir, Err: err}
	}
	return &Store{baseDir: baseDir, prefixes: prefixes}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

func (s *Store) write(key string, record *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &domain.GatewayError{Op: "marshal", Key: key, Err: err}
	}

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &domain.GatewayError{Op: "mkdir", Key: key, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &domain.GatewayError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *Store) PutActive(ctx context.Context, record *domain.Record) error {
	return s.write(s.prefixes.ActiveKey(record.MessageID), record)
}

func (s *Store) PutSuccess(ctx context.Context, record *domain.Record) error {
	return s.write(s.prefixes.SuccessKey(record.UpdatedAt.UnixMilli(), record.MessageID), record)
}

func (s *Store) PutFailed(ctx context.Context, record *domain.Record) error {
	return s.write(s.prefixes.FailedKey(record.UpdatedAt.UnixMilli(), record.MessageID), record)
}

func (s *Store) GetActive(ctx context.Context, messageID string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := s.prefixes.ActiveKey(messageID)
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, &domain.GatewayError{Op: "get", Key: key, Err: err}
	}

	var record domain.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &domain.SerializationError{Key: key, Err: err}
	}
	return &record, nil
}

func (s *Store) DeleteActive(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.prefixes.ActiveKey(messageID)
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.GatewayError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.baseDir, s.prefixes.Active)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.GatewayError{Op: "list", Key: dir, Err: err}
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if name != e.Name() {
			ids = append(ids, name)
		}
	}
	return ids, nil
}
