package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nhle/climate-alerts/internal/model"
)

// OpenPersister builds the persister selected by cfg.Driver.
func OpenPersister(cfg model.StoreConfig) (Persister, error) {
	switch cfg.Driver {
	case "sqlite", "":
		if cfg.Path != ":memory:" {
			dir := filepath.Dir(cfg.Path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		return NewSQLiteStore(cfg.Path, cfg.Key)
	case "file":
		return NewFileStore(cfg.Path, cfg.Key)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
