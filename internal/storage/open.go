package storage

import (
	"fmt"

	"github.com/fyrsmithlabs/digipin/internal/config"
	"github.com/fyrsmithlabs/digipin/internal/logging"
)

// Open builds the backend selected by cfg.
func Open(cfg config.StorageConfig, logger *logging.Logger) (KV, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	switch cfg.Backend {
	case config.StorageMemory:
		return NewMemoryKV(), nil

	case config.StorageNATS:
		nc, err := DialNATS(cfg.NATSURL, cfg.NATSToken.Value())
		if err != nil {
			return nil, err
		}
		kv, err := NewNATSKV(nc, cfg.NATSBucket,
			WithOwnedConn(nc),
			WithNATSLogger(logger.Named("storage.nats")),
		)
		if err != nil {
			nc.Close()
			return nil, err
		}
		return kv, nil

	case config.StorageFile, "":
		path, err := config.ExpandPath(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewFileKV(path, WithFileLogger(logger.Named("storage.file")))

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
