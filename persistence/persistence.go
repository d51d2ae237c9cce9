package persistence

import (
	"fmt"

	"github.com/wavechat/wavechat/config"
)

// NewPersister creates the persister selected by the configuration.
// Returns nil (and no error) when persistence is not configured.
func NewPersister(cfg *config.Config) (Persister, error) {
	switch cfg.PersistenceConfig.Type {
	case "sqlite", "postgres":
		return NewGormPersister(cfg)

	case "buntdb":
		return NewBuntPersister(cfg)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
	}
}
