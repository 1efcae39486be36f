// Package diskstore implements a filesystem archive store.
package diskstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/codec"
)

// Compile-time check that Store implements archive.Store.
var _ archive.Store = (*Store)(nil)

// Store keeps each object in its own file under a root directory.
type Store struct {
	root  string
	codec codec.Codec
}

// New creates a disk store rooted at root, creating the directory if
// needed. The codec handles compression.
func New(root string, c codec.Codec) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating root directory: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Store{root: root, codec: c}, nil
}

// Root returns the store's directory.
func (s *Store) Root() string { return s.root }

// Read reads and decompresses the object under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, archive.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return codec.Decode(s.codec, bytes.NewReader(raw))
}

// Write compresses data into a temporary file and renames it into place.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc, err := codec.Encode(s.codec, data)
	if err != nil {
		return err
	}
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, enc, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", key, err)
	}
	return nil
}

// List walks the directory for keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key, ok := s.keyOf(filepath.ToSlash(rel))
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	return keys, nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(s.objectName(key)))
}

func (s *Store) objectName(key string) string {
	if ext := s.codec.Extension(); ext != "" {
		return key + "." + ext
	}
	return key
}

// keyOf strips the codec extension, rejecting files written by another codec.
func (s *Store) keyOf(name string) (string, bool) {
	if strings.HasSuffix(name, ".tmp") {
		return "", false
	}
	ext := s.codec.Extension()
	if ext == "" {
		return name, true
	}
	key, ok := strings.CutSuffix(name, "."+ext)
	if !ok {
		return "", false
	}
	return key, true
}
