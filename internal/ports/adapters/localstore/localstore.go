package localstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/clipnetic/clipnetic/internal/ports"
	"github.com/clipnetic/clipnetic/internal/types"
)

// Store maps object keys onto files under a root directory. It backs offline
// runs of the CLI and the integration tests.
type Store struct {
	root string
}

var _ ports.ObjectStore = (*Store)(nil)

func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("localstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("localstore: create root: %w", err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) resolve(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("localstore: key %q escapes root", key)
	}
	return p, nil
}

func (s *Store) Download(_ context.Context, key, dst string) error {
	src, err := s.resolve(key)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrRetrieval, err)
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("%w: %w", types.ErrRetrieval, err)
	}
	return nil
}

func (s *Store) Upload(_ context.Context, src, key, _ string) error {
	dst, err := s.resolve(key)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrPublish, err)
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("%w: %w", types.ErrPublish, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
