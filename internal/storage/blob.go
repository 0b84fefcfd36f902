package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidKey = errors.New("invalid blob key")

// File is an open blob. afero.File satisfies it.
type File interface {
	io.ReadSeekCloser
	Stat() (os.FileInfo, error)
}

// BlobStore keeps uploaded documents under opaque keys. Blobs are only ever
// read back through Open; nothing is served from the store directly.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (written int64, err error)
	Open(ctx context.Context, key string) (File, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FSStore keeps blobs on an afero filesystem.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore wraps fs. Use afero.NewMemMapFs in tests.
func NewFSStore(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

// NewDiskStore stores blobs below root on the local disk.
func NewDiskStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

func (s *FSStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(path.Dir(clean), 0o755); err != nil {
		return 0, fmt.Errorf("create blob dir: %w", err)
	}

	f, err := s.fs.OpenFile(clean, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	n, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = s.fs.Remove(clean)
		if copyErr != nil {
			return n, fmt.Errorf("write blob: %w", copyErr)
		}
		return n, fmt.Errorf("close blob: %w", closeErr)
	}
	return n, nil
}

// Open returns the blob stored under key. A missing key, or one naming a
// directory, yields an error matching os.ErrNotExist.
func (s *FSStore) Open(_ context.Context, key string) (File, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(clean)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open blob %q: %w", key, os.ErrNotExist)
	}
	return f, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(clean); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, clean)
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return path.Clean(key), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
