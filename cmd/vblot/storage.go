package main

import (
	"log/slog"

	"github.com/tpncalc/virtualblot/internal/config"
	"github.com/tpncalc/virtualblot/internal/storage"
)

func initStorage(logger *slog.Logger, storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := storage.NewBackend(storageCfg)
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "error", err)
		return nil, err
	}
	logger.Info("Storage backend initialized", "type", storageCfg.Type, "outputDir", storageCfg.OutputDir)
	return backend, nil
}
