// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nicodishanthj/planbuilder/internal/common"
	"github.com/nicodishanthj/planbuilder/internal/docstore"
	"github.com/nicodishanthj/planbuilder/internal/memory"
	"github.com/nicodishanthj/planbuilder/internal/mongostore"
	"github.com/nicodishanthj/planbuilder/internal/sqlite"
)

// Orchestrator owns the process-wide document backend and hands out the plan
// collection to the API server and CLI.
type Orchestrator struct {
	cfg        Config
	collection docstore.Collection
	closers    []io.Closer
}

// New opens the backend selected by cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	orch := &Orchestrator{cfg: cfg}
	if settings.collection != nil {
		orch.collection = settings.collection
		return orch, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := common.Logger()
	switch cfg.Driver {
	case DriverMemory:
		store, err := memory.NewStore(cfg.MemoryPath, cfg.Collection)
		if err != nil {
			return nil, fmt.Errorf("init memory store: %w", err)
		}
		orch.collection = store
		orch.closers = append(orch.closers, store)
		logger.Info("orchestrator: memory store ready", "path", store.Path(), "collection", cfg.Collection)
	case DriverSQLite:
		store, err := sqlite.OpenWithConfig(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		orch.collection = store.Collection(cfg.Collection)
		orch.closers = append(orch.closers, store)
		logger.Info("orchestrator: sqlite store ready", "path", cfg.SQLite.Path, "collection", cfg.Collection)
	case DriverMongo:
		store, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("init mongo store: %w", err)
		}
		if err := store.EnsureIndexes(ctx, cfg.Collection); err != nil {
			store.Close()
			return nil, err
		}
		orch.collection = store.Collection(cfg.Collection)
		orch.closers = append(orch.closers, store)
		logger.Info("orchestrator: mongo store ready", "database", cfg.Mongo.Database, "collection", cfg.Collection)
	}
	return orch, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	if o == nil {
		return Config{}
	}
	return o.cfg
}

// Plans exposes the plan collection.
func (o *Orchestrator) Plans() docstore.Collection {
	if o == nil {
		return nil
	}
	return o.collection
}

// Ping checks the backend is reachable.
func (o *Orchestrator) Ping(ctx context.Context) error {
	if o == nil || o.collection == nil {
		return errors.New("orchestrator not initialised")
	}
	return o.collection.Ping(ctx)
}

// Close releases any resources associated with the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var err error
	for i := len(o.closers) - 1; i >= 0; i-- {
		closer := o.closers[i]
		if closer == nil {
			continue
		}
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	o.closers = nil
	return err
}
