package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// LocalStore keeps artifacts on the local filesystem.
// Writes go to a temporary file in the destination directory which is then renamed over the target.
type LocalStore struct {
	root   string
	logger *zap.Logger

	// beforeRename runs between writing the temp file and renaming it. Tests use it to inject failures.
	beforeRename func(tmpPath string) error
}

// NewLocalStore creates the root directory if needed and returns a store rooted there.
func NewLocalStore(root string, logger *zap.Logger) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local store root is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, Prefix), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &LocalStore{root: abs, logger: logger}, nil
}

// Root returns the absolute root directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Backend implements Store.
func (s *LocalStore) Backend() string {
	return "local"
}

func (s *LocalStore) path(jobID string, kind Kind) (string, error) {
	key, err := Key(jobID, kind)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Write implements Store.
func (s *LocalStore) Write(ctx context.Context, jobID string, kind Kind, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.path(jobID, kind)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+string(kind)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.logger.Warn("failed to remove temp file", zap.String("path", tmpPath), zap.Error(rmErr))
			}
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", kind, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", kind, err)
	}
	if s.beforeRename != nil {
		if err := s.beforeRename(tmpPath); err != nil {
			return fmt.Errorf("failed to commit %s: %w", kind, err)
		}
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("failed to commit %s: %w", kind, err)
	}
	committed = true
	return nil
}

// Read implements Store.
func (s *LocalStore) Read(ctx context.Context, jobID string, kind Kind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(jobID, kind)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", kind, err)
	}
	return data, nil
}

// List implements Store. A directory counts as a job once any artifact has been committed in it.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, Prefix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || ValidateJobID(e.Name()) != nil {
			continue
		}
		if s.hasStatus(e.Name()) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *LocalStore) hasStatus(jobID string) bool {
	p, err := s.path(jobID, KindStatus)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Ping implements Store by checking the root is a readable directory.
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root %s is not a directory", s.root)
	}
	return nil
}

// Close implements Store.
func (s *LocalStore) Close() error {
	return nil
}
