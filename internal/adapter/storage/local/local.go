// Package local stores archive objects on the local filesystem under a
// configured base directory. Importing it for side effects enables
// "type: local" storage connections.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/seaward/marketsync/internal/adapter/storage"
	"github.com/seaward/marketsync/internal/support/logger"
)

// ProviderType identifies this storage implementation in configuration.
const ProviderType = "local"

func init() {
	storage.RegisterFactory(ProviderType, func(cfg storage.StorageConfig, name string) (storage.Connection, error) {
		return NewAdapter(cfg, name)
	})
}

// Adapter implements storage.Connection on the local filesystem.
type Adapter struct {
	cfg  storage.StorageConfig
	name string
}

// NewAdapter validates the base directory, creating it when missing.
func NewAdapter(cfg storage.StorageConfig, name string) (*Adapter, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage %q: base_dir must be specified", name)
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
			return nil, fmt.Errorf("local storage %q: failed to create base_dir %s: %w", name, cfg.BaseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local storage %q: failed to stat base_dir %s: %w", name, cfg.BaseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local storage %q: base_dir %s is not a directory", name, cfg.BaseDir)
	}

	return &Adapter{cfg: cfg, name: name}, nil
}

// Upload writes the data stream to base_dir/[bucket_name/]objectName,
// creating intermediate directories.
func (a *Adapter) Upload(ctx context.Context, objectName string, data io.Reader) error {
	fullPath, err := a.resolvePath(objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", fullPath, err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", fullPath, err)
	}
	logger.Debugf("local storage %s: wrote %s", a.name, fullPath)
	return nil
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Close() error { return nil }

// resolvePath joins the object name under the base directory and rejects
// paths that escape it.
func (a *Adapter) resolvePath(objectName string) (string, error) {
	fullPath := filepath.Join(a.cfg.BaseDir, a.cfg.BucketName, objectName)

	absBase, err := filepath.Abs(a.cfg.BaseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base_dir %s: %w", a.cfg.BaseDir, err)
	}
	absFull, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", fullPath, err)
	}
	if !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("object path %q escapes base_dir %s", objectName, a.cfg.BaseDir)
	}
	return fullPath, nil
}

var _ storage.Connection = (*Adapter)(nil)
