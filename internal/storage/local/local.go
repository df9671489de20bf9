// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/arjunkorath02/DigiData/internal/metrics"
)

// Backend implements storage.Backend using the local filesystem.
type Backend struct {
	rootPath string
}

// New creates a local filesystem backend rooted at rootPath.
// The root directory is created if it does not exist.
func New(rootPath string) (*Backend, error) {
	if rootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat root path %s: %w", rootPath, err)
		}
		if mkErr := os.MkdirAll(rootPath, 0755); mkErr != nil {
			return nil, fmt.Errorf("create root path %s: %w", rootPath, mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", rootPath)
	}

	return &Backend{rootPath: rootPath}, nil
}

func (b *Backend) fullPath(key string) string {
	return filepath.Join(b.rootPath, filepath.FromSlash(key))
}

// GetObject reads a file from the local filesystem with range support.
func (b *Backend) GetObject(_ context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	start := time.Now()

	f, err := os.Open(b.fullPath(key))
	if err != nil {
		metrics.RecordBlobOp("local", "get_object", time.Since(start), false)
		return nil, 0, fmt.Errorf("open %s: %w", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		metrics.RecordBlobOp("local", "get_object", time.Since(start), false)
		return nil, 0, fmt.Errorf("stat %s: %w", key, err)
	}
	totalSize := info.Size()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			metrics.RecordBlobOp("local", "get_object", time.Since(start), false)
			return nil, 0, fmt.Errorf("seek %s: %w", key, err)
		}
	}

	metrics.RecordBlobOp("local", "get_object", time.Since(start), true)

	if length > 0 {
		return &limitedReadCloser{
			Reader: io.LimitReader(f, length),
			Closer: f,
		}, length, nil
	}

	returnSize := totalSize - offset
	if returnSize < 0 {
		returnSize = 0
	}
	return f, returnSize, nil
}

// PutObject writes content to the local filesystem atomically.
func (b *Backend) PutObject(_ context.Context, key string, body io.Reader, size int64) error {
	start := time.Now()

	path := b.fullPath(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		metrics.RecordBlobOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("create dirs for %s: %w", key, err)
	}

	// Write to temp file then rename for atomicity
	tmp, err := os.CreateTemp(dir, ".digidata-*.tmp")
	if err != nil {
		metrics.RecordBlobOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		metrics.RecordBlobOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		metrics.RecordBlobOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		metrics.RecordBlobOp("local", "put_object", time.Since(start), false)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}

	metrics.RecordBlobOp("local", "put_object", time.Since(start), true)
	return nil
}

// DeleteObject removes a file from the local filesystem.
func (b *Backend) DeleteObject(_ context.Context, key string) error {
	start := time.Now()

	err := os.Remove(b.fullPath(key))
	if err != nil && !os.IsNotExist(err) {
		metrics.RecordBlobOp("local", "delete_object", time.Since(start), false)
		return fmt.Errorf("delete %s: %w", key, err)
	}

	metrics.RecordBlobOp("local", "delete_object", time.Since(start), true)
	return nil
}

// ObjectExists checks if a file exists on the local filesystem.
func (b *Backend) ObjectExists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return true, nil
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *Backend) Close() error { return nil }

// limitedReadCloser wraps a LimitReader with a separate Closer.
type limitedReadCloser struct {
	io.Reader
	io.Closer
}
