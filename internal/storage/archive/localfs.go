package archive

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalFS stores archive objects as plain files under a root directory.
type LocalFS struct {
	root string
}

// NewLocalFS creates the root directory if needed and returns a backend
// rooted there.
func NewLocalFS(root string) (*LocalFS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating archive root: %w", err)
	}
	return &LocalFS{root: root}, nil
}

func (b *LocalFS) resolve(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

func (b *LocalFS) Write(ctx context.Context, key string, data []byte) error {
	target := b.resolve(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	return os.WriteFile(target, data, 0o644)
}

func (b *LocalFS) Read(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(b.resolve(key))
}

// List returns the keys of every object under prefix. Keys always use
// forward slashes regardless of platform.
func (b *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(b.resolve(prefix), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	return keys, err
}

func (b *LocalFS) Delete(ctx context.Context, key string) error {
	return os.Remove(b.resolve(key))
}

func (b *LocalFS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(b.resolve(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
