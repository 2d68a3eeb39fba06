package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// keyPattern allows slash-separated segments of safe characters only, so a
// key can never escape the store directory.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(/[A-Za-z0-9_-]+)*$`)

// ErrInvalidKey is returned for keys that cannot be mapped to a file.
var ErrInvalidKey = errors.New("invalid key format")

// FileKV stores each key as a JSON file under a directory.
type FileKV struct {
	dir    string
	logger *zap.Logger
}

// NewFileKV creates dir if needed and returns a store rooted there.
func NewFileKV(dir string, logger *zap.Logger) (*FileKV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}
	return &FileKV{dir: dir, logger: logger}, nil
}

// securePath maps key to a file inside the store directory.
func (f *FileKV) securePath(key string) (string, error) {
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	path := filepath.Join(f.dir, filepath.FromSlash(key)+".json")
	rel, err := filepath.Rel(f.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return path, nil
}

func (f *FileKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := f.securePath(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

// Set writes value through a temporary file so readers never see a partial
// write.
func (f *FileKV) Set(_ context.Context, key string, value []byte) error {
	path, err := f.securePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	f.logger.Debug("saved file", zap.String("path", path), zap.Int("bytes", len(value)))
	return nil
}

func (f *FileKV) Delete(_ context.Context, key string) error {
	path, err := f.securePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Cleanup removes stored files not modified within maxAge and returns how
// many were removed.
func (f *FileKV) Cleanup(maxAge time.Duration) (int, error) {
	f.logger.Info("starting store cleanup", zap.Duration("max_age", maxAge), zap.String("dir", f.dir))

	cutoff := time.Now().Add(-maxAge)
	removed, failed := 0, 0

	err := filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			f.logger.Warn("could not stat stored file", zap.String("path", path), zap.Error(err))
			failed++
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			f.logger.Warn("could not remove old file", zap.String("path", path), zap.Error(err))
			failed++
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("walk %s: %w", f.dir, err)
	}

	f.logger.Info("store cleanup completed", zap.Int("removed", removed), zap.Int("errors", failed))
	return removed, nil
}
