// Package filestore persists image binaries on a local filesystem,
// partitioned per tenant: {root}/{app_id}/{stored_filename}.
package filestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var ErrInvalidName = errors.New("invalid path component")

type Store struct {
	fs     afero.Fs
	root   string
	logger *zap.Logger
}

// Entry describes one stored file, as seen by the orphan sweep.
type Entry struct {
	Name    string
	ModTime time.Time
}

func New(fs afero.Fs, root string, logger *zap.Logger) *Store {
	return &Store{
		fs:     fs,
		root:   root,
		logger: logger.Named("FileStore"),
	}
}

func (s *Store) Save(appID, filename string, data []byte) error {
	path, err := s.path(appID, filename)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("Failed to create tenant directory", zap.String("dir", dir), zap.Error(err))
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		s.logger.Error("Failed to write file", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("write file %s: %w", path, err)
	}

	s.logger.Debug("File written", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

func (s *Store) Read(appID, filename string) ([]byte, error) {
	path, err := s.path(appID, filename)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		s.logger.Error("Failed to read file", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return data, nil
}

func (s *Store) Delete(appID, filename string) error {
	path, err := s.path(appID, filename)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		s.logger.Error("Failed to delete file", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("delete file %s: %w", path, err)
	}
	return nil
}

func (s *Store) Exists(appID, filename string) (bool, error) {
	path, err := s.path(appID, filename)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, path)
}

// Apps lists tenant directories under the root.
func (s *Store) Apps() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read root directory %s: %w", s.root, err)
	}

	apps := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			apps = append(apps, info.Name())
		}
	}
	return apps, nil
}

// Files lists stored files for one tenant.
func (s *Store) Files(appID string) ([]Entry, error) {
	if err := checkComponent(appID); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, filepath.Join(s.root, appID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tenant directory %s: %w", appID, err)
	}

	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		entries = append(entries, Entry{Name: info.Name(), ModTime: info.ModTime()})
	}
	return entries, nil
}

// path joins validated components under the root. Both components must be
// plain names: no separators, no traversal.
func (s *Store) path(appID, filename string) (string, error) {
	if err := checkComponent(appID); err != nil {
		return "", fmt.Errorf("app id %q: %w", appID, err)
	}
	if err := checkComponent(filename); err != nil {
		return "", fmt.Errorf("filename %q: %w", filename, err)
	}
	return filepath.Join(s.root, appID, filename), nil
}

func checkComponent(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}
