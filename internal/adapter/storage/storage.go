// Package storage abstracts where archive exports land. The archive only
// needs upload, so the interface stays narrow; implementations live in
// subpackages and register a factory per storage type.
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/seaward/marketsync/internal/config"
	"github.com/seaward/marketsync/internal/support/binder"
	"github.com/seaward/marketsync/internal/support/exception"
)

const moduleName = "storage"

// StorageConfig holds one named storage connection's settings.
type StorageConfig struct {
	Type       string `yaml:"type"`        // Type of storage ("local").
	BucketName string `yaml:"bucket_name"` // Default bucket (subdirectory for local storage).
	BaseDir    string `yaml:"base_dir"`    // Base directory for local storage.
}

// Connection is a writable storage target.
type Connection interface {
	// Upload stores the data stream under objectName.
	Upload(ctx context.Context, objectName string, data io.Reader) error
	// Name returns the connection's configured name.
	Name() string
	Close() error
}

// Factory builds a Connection from one named connection's settings.
type Factory func(cfg StorageConfig, name string) (Connection, error)

var (
	factoryMu       sync.RWMutex
	factoryRegistry = make(map[string]Factory)
)

// RegisterFactory registers a Factory for the given storage type. Storage
// subpackages call this from init.
func RegisterFactory(storageType string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryRegistry[storageType] = factory
}

// Resolve opens the storage connection named by name from the configured
// storage map.
func Resolve(cfg *config.Config, name string) (Connection, error) {
	raw, ok := cfg.Marketsync.StorageConfigs[name]
	if !ok {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("storage configuration %q not found", name), nil, false, false)
	}
	properties, ok := raw.(map[string]interface{})
	if !ok {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("storage configuration %q is not a mapping", name), nil, false, false)
	}

	var storageCfg StorageConfig
	if err := binder.BindProperties(properties, &storageCfg); err != nil {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("failed to decode storage configuration %q", name), err, false, false)
	}

	factoryMu.RLock()
	factory, ok := factoryRegistry[storageCfg.Type]
	factoryMu.RUnlock()
	if !ok {
		return nil, exception.NewPipelineError(moduleName,
			fmt.Sprintf("no storage factory registered for type %q", storageCfg.Type), nil, false, false)
	}

	return factory(storageCfg, name)
}
