// Package codec compresses stored archive objects.
package codec

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// ErrUnknownCodec is returned by Lookup for an unsupported name.
var ErrUnknownCodec = errors.New("codec: unknown codec")

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file extension without dot (e.g., "zst", "gz").
	// Returns empty string for no compression.
	Extension() string
}

// Lookup returns the codec registered under name: "zstd", "gzip" or "none".
func Lookup(name string) (Codec, error) {
	switch name {
	case "zstd", "zst":
		return Zstd{}, nil
	case "gzip", "gz":
		return Gzip{}, nil
	case "none", "":
		return None{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// Zstd compresses with zstd.
type Zstd struct{}

func (Zstd) Reader(r io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

func (Zstd) Writer(w io.Writer) (io.WriteCloser, error) { return zstd.NewWriter(w) }

func (Zstd) Extension() string { return "zst" }

// Gzip compresses with gzip.
type Gzip struct{}

func (Gzip) Reader(r io.Reader) (io.ReadCloser, error) { return gzip.NewReader(r) }

func (Gzip) Writer(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil }

func (Gzip) Extension() string { return "gz" }

// None stores data as is.
type None struct{}

func (None) Reader(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil }

func (None) Writer(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil }

func (None) Extension() string { return "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Encode compresses data in one call.
func Encode(c Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flushing compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses everything read from r.
func Decode(c Codec, r io.Reader) ([]byte, error) {
	dr, err := c.Reader(r)
	if err != nil {
		return nil, fmt.Errorf("creating decompressor: %w", err)
	}
	defer dr.Close()
	data, err := io.ReadAll(dr)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return data, nil
}
