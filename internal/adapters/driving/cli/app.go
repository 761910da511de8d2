package cli

import (
	"fmt"

	"github.com/custodia-labs/atlas/internal/adapters/driven/config/file"
	"github.com/custodia-labs/atlas/internal/adapters/driven/notion"
	"github.com/custodia-labs/atlas/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/atlas/internal/core/ports/driven"
	"github.com/custodia-labs/atlas/internal/core/services"
	"github.com/custodia-labs/atlas/internal/logger"
)

// app holds the wired service graph shared by the commands.
type app struct {
	cfg     file.Config
	store   *sqlite.Store
	queue   driven.TaskQueue
	service *services.SnapshotOrchestrator
}

// buildApp loads configuration and wires stores, source and orchestrator.
// The caller owns the returned app and must Close it.
func buildApp() (*app, error) {
	cfg, err := file.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	queue := store.TaskQueue()
	service := services.NewSnapshotOrchestrator(
		store.SnapshotStore(),
		store.VersionStore(),
		queue,
		notion.NewFactory(cfg.Notion.Token),
	)

	return &app{
		cfg:     cfg,
		store:   store,
		queue:   queue,
		service: service,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
