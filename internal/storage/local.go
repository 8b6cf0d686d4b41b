package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements ObjectStore on the local filesystem. Each bucket is a
// directory under baseDir and each key a relative path inside it.
type LocalStore struct {
	baseDir string
}

var _ ObjectStore = (*LocalStore)(nil)

// NewLocalStore creates a store rooted at baseDir.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

func (s *LocalStore) path(loc Locator) (string, error) {
	for _, part := range []string{loc.Bucket, loc.Key} {
		clean := filepath.Clean(filepath.FromSlash(part))
		if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
			return "", fmt.Errorf("%w: %s escapes the store root", ErrInvalidLocator, loc)
		}
	}
	return filepath.Join(s.baseDir, loc.Bucket, filepath.FromSlash(loc.Key)), nil
}

func (s *LocalStore) Get(ctx context.Context, loc Locator) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(loc)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	return data, nil
}

func (s *LocalStore) Put(ctx context.Context, loc Locator, body []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(loc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(p, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", loc, err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, prefix Locator) ([]Locator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := filepath.Join(s.baseDir, prefix.Bucket)
	var out []Locator
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix.Key) {
			out = append(out, Locator{Bucket: prefix.Bucket, Key: key})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
