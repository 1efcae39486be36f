package diskstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/discochess/hindsight/internal/archive"
	"github.com/discochess/hindsight/internal/codec"
)

func TestStore_WriteRead(t *testing.T) {
	tests := []struct {
		name  string
		codec codec.Codec
		file  string
	}{
		{"zstd", codec.Zstd{}, "archives/2025-05.pgn.zst"},
		{"gzip", codec.Gzip{}, "archives/2025-05.pgn.gz"},
		{"none", codec.None{}, "archives/2025-05.pgn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s, err := New(dir, tt.codec)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer s.Close()
			ctx := context.Background()

			data := []byte("1. e4 e5 2. Nf3 *")
			if err := s.Write(ctx, "archives/2025-05.pgn", data); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(tt.file))); err != nil {
				t.Errorf("expected file %s: %v", tt.file, err)
			}

			got, err := s.Read(ctx, "archives/2025-05.pgn")
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if string(got) != string(data) {
				t.Errorf("Read() = %q, want %q", got, data)
			}
		})
	}
}

func TestStore_ReadNotFound(t *testing.T) {
	s, err := New(t.TempDir(), codec.Zstd{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = s.Read(context.Background(), "archives/1999-01.pgn")
	if !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("Read() error = %v, want ErrNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, codec.Zstd{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	for _, k := range []string{"archives/2025-04.pgn", "archives/2025-05.pgn", "manifest.json"} {
		if err := s.Write(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Write(%q) error = %v", k, err)
		}
	}
	// Files written with another codec and leftovers are not keys.
	if err := os.WriteFile(filepath.Join(dir, "archives", "2025-06.pgn.gz"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "archives", "2025-07.pgn.zst.tmp"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx, "archives/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	slices.Sort(got)
	want := []string{"archives/2025-04.pgn", "archives/2025-05.pgn"}
	if !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestStore_CorruptObject(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, codec.Gzip{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.json.gz"), []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(context.Background(), "manifest.json"); err == nil {
		t.Error("Read() error = nil, want decompression error")
	}
}

func TestNew_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file, codec.None{}); err == nil {
		t.Error("New() error = nil, want error for a regular file")
	}
}
