// Package gcs is the production Gateway backend, backed by a Google Cloud
// Storage bucket. Adapted from the filesystem/GCS dual-backend pattern used
// elsewhere in this module's lineage: one JSON object per key, plain
// put/get/delete, no conditional writes or versioning.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/objectstore"
)

// Store is a GCS-backed Gateway implementation.
type Store struct {
	client   *storage.Client
	bucket   string
	prefixes objectstore.Prefixes
}

// New creates a Store against bucketName. The client is assumed to already
// be authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS) and, when the
// WithEndpoint option is given, pointed at a local simulator (§6 endpoint_url).
func New(ctx context.Context, bucketName string, prefixes objectstore.Prefixes, opts ...option) (*Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var clientOpts []storage.ClientOption
	if cfg.endpoint != "" {
		clientOpts = append(clientOpts, storage.WithEndpoint(cfg.endpoint))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Store{client: client, bucket: bucketName, prefixes: prefixes}, nil
}

type storeConfig struct {
	endpoint string
}

type option func(*storeConfig)

// WithEndpoint overrides the GCS endpoint, for local simulation (§6 endpoint_url).
func WithEndpoint(endpoint string) option {
	return func(c *storeConfig) { c.endpoint = endpoint }
}

func (s *Store) write(ctx context.Context, key string, record *domain.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return &domain.GatewayError{Op: "marshal", Key: key, Err: err}
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return &domain.GatewayError{Op: "put", Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return &domain.GatewayError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *Store) PutActive(ctx context.Context, record *domain.Record) error {
	return s.write(ctx, s.prefixes.ActiveKey(record.MessageID), record)
}

func (s *Store) PutSuccess(ctx context.Context, record *domain.Record) error {
	return s.write(ctx, s.prefixes.SuccessKey(record.UpdatedAt.UnixMilli(), record.MessageID), record)
}

func (s *Store) PutFailed(ctx context.Context, record *domain.Record) error {
	return s.write(ctx, s.prefixes.FailedKey(record.UpdatedAt.UnixMilli(), record.MessageID), record)
}

func (s *Store) GetActive(ctx context.Context, messageID string) (*domain.Record, error) {
	key := s.prefixes.ActiveKey(messageID)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, &domain.GatewayError{Op: "get", Key: key, Err: err}
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &domain.GatewayError{Op: "get", Key: key, Err: err}
	}

	var record domain.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, &domain.SerializationError{Key: key, Err: err}
	}
	return &record, nil
}

func (s *Store) DeleteActive(ctx context.Context, messageID string) error {
	key := s.prefixes.ActiveKey(messageID)
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return &domain.GatewayError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// ListActive enumerates every message id with a live active document by
// listing objects under the active prefix (§4.2, §4.4).
func (s *Store) ListActive(ctx context.Context) ([]string, error) {
	prefix := s.prefixes.Active + "/"
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var ids []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &domain.GatewayError{Op: "list", Key: prefix, Err: err}
		}
		name := strings.TrimSuffix(strings.TrimPrefix(attrs.Name, prefix), ".json")
		if name != "" {
			ids = append(ids, name)
		}
	}
	return ids, nil
}
