package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"theragraph/internal/model"
	"theragraph/internal/storage"
)

// Coordinator runs one poller per monitored contract.
type Coordinator struct {
	pollers []*Poller
	logger  *zap.Logger
}

// NewCoordinator builds a poller for every target. All pollers share the
// source, store and publisher.
func NewCoordinator(targets []Target, cfg Config, source Source, store Checkpoints, publisher Publisher, logger *zap.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one contract is required")
	}

	seen := make(map[string]struct{}, len(targets))
	pollers := make([]*Poller, 0, len(targets))
	for _, target := range targets {
		if _, dup := seen[target.Key()]; dup {
			return nil, fmt.Errorf("contract %s is configured twice", target.Key())
		}
		seen[target.Key()] = struct{}{}
		pollers = append(pollers, NewPoller(target, cfg, source, store, publisher, logger))
	}
	return &Coordinator{pollers: pollers, logger: logger}, nil
}

// SetArchive attaches a raw log archive to every poller.
func (c *Coordinator) SetArchive(sink storage.Sink[model.LogRecord]) {
	for _, p := range c.pollers {
		p.SetArchive(sink)
	}
}

// Pollers returns the managed pollers.
func (c *Coordinator) Pollers() []*Poller { return c.pollers }

// Run starts every poller and blocks until all have stopped. A poller that
// fails stops the others.
func (c *Coordinator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range c.pollers {
		g.Go(func() error {
			if err := p.Run(gctx); err != nil {
				return fmt.Errorf("indexer %s: %w", p.Name(), err)
			}
			return nil
		})
	}

	c.logger.Info("indexers started", zap.Int("count", len(c.pollers)))
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	c.logger.Info("indexers stopped")
	return nil
}

// Healthy returns an error once any poller has stopped.
func (c *Coordinator) Healthy() error {
	for _, p := range c.pollers {
		if p.State() == ShuttingDown {
			return fmt.Errorf("indexer %s is not running", p.Name())
		}
	}
	return nil
}
