package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// tempPrefix marks in-flight writes.
const tempPrefix = ".glean-tmp-"

// FS keeps blobs as plain files under a root directory.
type FS struct {
	root string
}

// NewFS returns an FS rooted at root, creating the directory if needed.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// resolve maps a key to a file path inside root.
func (f *FS) resolve(key string) (string, error) {
	p := filepath.FromSlash(key)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.root, p), nil
}

// Open opens the blob at key for reading.
func (f *FS) Open(key string) (*Blob, error) {
	p, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("storage: open %s: %w", key, fs.ErrNotExist)
	}
	return &Blob{
		ReadSeekCloser: file,
		Info:           BlobInfo{Path: key, Size: info.Size(), UpdatedAt: info.ModTime()},
	}, nil
}

// Write stores content through a synced temp file renamed over the target.
func (f *FS) Write(key string, content []byte) (err error) {
	p, err := f.resolve(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}

// Delete removes the blob at key.
func (f *FS) Delete(key string) error {
	p, err := f.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// DeleteDir removes dir and every blob under it.
func (f *FS) DeleteDir(dir string) error {
	p, err := f.resolve(dir)
	if err != nil {
		return err
	}
	if p == f.root {
		return fmt.Errorf("%w: refusing to delete root", ErrInvalidKey)
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("storage: delete dir %s: %w", dir, err)
	}
	return nil
}

var _ Provider = (*FS)(nil)
