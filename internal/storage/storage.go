package storage

import (
	"context"
	"fmt"

	"github.com/yukikurage/mo-task-monitor/internal/config"
	"github.com/yukikurage/mo-task-monitor/internal/objectstore"
	"github.com/yukikurage/mo-task-monitor/internal/repository"
	"github.com/yukikurage/mo-task-monitor/internal/seed"
	"go.uber.org/zap"
)

// Open builds and initializes the backend selected by cfg.StorageMode.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Backend, error) {
	data, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrInitialization, err)
	}
	bundle, err := data.Build(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrInitialization, err)
	}

	var backend repository.Backend
	switch cfg.StorageMode {
	case config.StorageRelational:
		backend, err = repository.OpenGormBackend(cfg, bundle)
	case config.StorageObjectStore:
		backend, err = objectstore.Open(ctx, cfg, bundle)
	case config.StorageFallback:
		backend, err = openFallback(ctx, cfg, bundle, log)
	default:
		return nil, fmt.Errorf("%w: unknown storage mode %q", repository.ErrInitialization, cfg.StorageMode)
	}
	if err != nil {
		return nil, err
	}

	if err := backend.Initialize(ctx); err != nil {
		_ = backend.Close()
		return nil, err
	}

	log.Info("Storage initialized",
		zap.String("mode", cfg.StorageMode),
		zap.String("backend", backend.Name()),
	)
	return backend, nil
}

func openFallback(ctx context.Context, cfg *config.Config, bundle seed.Bundle, log *zap.Logger) (repository.Backend, error) {
	secondary, err := objectstore.Open(ctx, cfg, bundle)
	if err != nil {
		return nil, err
	}

	primary, err := repository.OpenGormBackend(cfg, bundle)
	if err != nil {
		log.Warn("Relational backend unavailable, serving from object store only", zap.Error(err))
		return secondary, nil
	}
	return NewFallback(primary, secondary, log), nil
}
