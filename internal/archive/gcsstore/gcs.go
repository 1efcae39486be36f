// Package gcsstore implements a Google Cloud Storage archive store.
package gcsstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/codec"
)

// Compile-time check that Store implements archive.Store.
var _ archive.Store = (*Store)(nil)

// Store is a Google Cloud Storage backend.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	codec  codec.Codec
}

// New creates a new GCS store. The bucket must already exist.
func New(ctx context.Context, bucketName string, c codec.Codec, opts ...Option) (*Store, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	s := &Store{
		client: client,
		bucket: client.Bucket(bucketName),
		codec:  c,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets a key prefix for all operations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = normalizePrefix(prefix)
	}
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return prefix
}

// Read downloads and decompresses the object under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(s.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, archive.ErrNotFound
		}
		return nil, fmt.Errorf("creating reader: %w", err)
	}
	defer r.Close()
	return codec.Decode(s.codec, r)
}

// Write compresses data while uploading it.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	w := s.bucket.Object(s.objectKey(key)).NewWriter(ctx)
	cw, err := s.codec.Writer(w)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := cw.Write(data); err != nil {
		_ = cw.Close()
		_ = w.Close()
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	if err := cw.Close(); err != nil {
		_ = w.Close()
		return fmt.Errorf("flushing compressor: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing upload of %s: %w", key, err)
	}
	return nil
}

// List iterates the bucket for keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix + prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}
		if key, ok := s.keyOf(attrs.Name); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close releases resources.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) objectKey(key string) string {
	name := s.prefix + key
	if ext := s.codec.Extension(); ext != "" {
		name += "." + ext
	}
	return name
}

func (s *Store) keyOf(name string) (string, bool) {
	key, ok := strings.CutPrefix(name, s.prefix)
	if !ok {
		return "", false
	}
	if ext := s.codec.Extension(); ext != "" {
		if key, ok = strings.CutSuffix(key, "."+ext); !ok {
			return "", false
		}
	}
	return key, true
}
