package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rateprobe/internal/common"
	"github.com/ternarybob/rateprobe/internal/interfaces"
	"github.com/ternarybob/rateprobe/internal/storage/badger"
	"github.com/ternarybob/rateprobe/internal/storage/filesystem"
)

// NewStorageManager creates a new storage manager based on config
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Cookies.Backend {
	case "", "badger":
		return badger.NewManager(logger, &config.Storage.Badger)
	case "filesystem":
		return filesystem.NewManager(config.Cookies.Dir, logger)
	default:
		return nil, fmt.Errorf("unsupported cookies backend: %s (expected badger or filesystem)", config.Cookies.Backend)
	}
}
