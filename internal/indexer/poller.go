package indexer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"theragraph/internal/metrics"
	"theragraph/internal/model"
	"theragraph/internal/retry"
	"theragraph/internal/storage"
)

// Source is the chain access a poller needs.
type Source interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address) ([]types.Log, error)
}

// Publisher hands one parsed event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, ev model.ParsedEvent) error
}

// Checkpoints persists the last processed block per contract.
type Checkpoints interface {
	LastBlock(ctx context.Context, contractAddress string) (uint64, bool, error)
	SaveLastBlock(ctx context.Context, contractAddress, contractType string, block uint64) error
}

// Config holds runtime settings shared by every poller.
type Config struct {
	StartBlock   uint64
	BatchSize    uint64
	PollInterval time.Duration
	ErrorBackoff time.Duration
	RPCRetry     retry.Config
}

// Poller follows one contract: it fetches new logs, publishes them and
// advances the contract's checkpoint, one block range at a time.
type Poller struct {
	target    Target
	cfg       Config
	source    Source
	store     Checkpoints
	publisher Publisher
	archive   storage.Sink[model.LogRecord]
	logger    *zap.Logger
	now       func() time.Time

	state atomic.Int32
}

// NewPoller builds a Poller with its dependencies.
func NewPoller(target Target, cfg Config, source Source, store Checkpoints, publisher Publisher, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		target:    target,
		cfg:       cfg,
		source:    source,
		store:     store,
		publisher: publisher,
		logger:    logger.With(zap.String("indexer", target.Name), zap.String("contract", target.Key())),
		now:       time.Now,
	}
}

// SetArchive makes the poller append every fetched raw log to sink before
// parsing. Archive failures are logged and do not fail the batch.
func (p *Poller) SetArchive(sink storage.Sink[model.LogRecord]) { p.archive = sink }

// Name returns the configured contract name.
func (p *Poller) Name() string { return p.target.Name }

// State returns the current state.
func (p *Poller) State() State { return State(p.state.Load()) }

func (p *Poller) setState(s State) {
	p.state.Store(int32(s))
	metrics.PollerStateSet(p.target.Name, int(s))
}

// Run polls until ctx is cancelled. A block range that has started is always
// finished, including its checkpoint, before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("chain source is nil")
	}
	if p.store == nil {
		return fmt.Errorf("checkpoint store is nil")
	}
	if p.publisher == nil {
		return fmt.Errorf("publisher is nil")
	}
	if p.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	defer p.setState(ShuttingDown)
	p.setState(Idle)
	p.logger.Info("poller started", zap.Uint64("start_block", p.cfg.StartBlock), zap.Uint64("batch_size", p.cfg.BatchSize))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping")
			return nil
		default:
		}

		wait := p.cfg.PollInterval
		if err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("poller stopping", zap.Error(err))
				return nil
			}
			p.logger.Error("poll failed, retrying same range", zap.Error(err), zap.Duration("backoff", p.cfg.ErrorBackoff))
			wait = p.cfg.ErrorBackoff
		}
		p.setState(Idle)

		if !sleep(ctx, wait) {
			p.logger.Info("poller stopping")
			return nil
		}
	}
}

// Poll runs one tick: read the checkpoint, fetch the height and, when the
// chain is ahead, process the next block range.
func (p *Poller) Poll(ctx context.Context) error {
	checkpoint, err := p.checkpoint(ctx)
	if err != nil {
		return err
	}

	p.setState(FetchingHeight)
	height, err := retry.Do(ctx, p.cfg.RPCRetry, "get_block_number", p.source.LatestBlockNumber)
	if err != nil {
		return fmt.Errorf("get block number: %w", err)
	}

	blockRange, ok := NextRange(checkpoint, height, p.cfg.BatchSize)
	if !ok {
		p.logger.Debug("up to date", zap.Uint64("checkpoint", checkpoint), zap.Uint64("height", height))
		return nil
	}

	// Shutdown no longer interrupts once a range is being fetched.
	return p.processRange(context.WithoutCancel(ctx), blockRange)
}

func (p *Poller) checkpoint(ctx context.Context) (uint64, error) {
	block, ok, err := p.store.LastBlock(ctx, p.target.Key())
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return p.cfg.StartBlock, nil
	}
	return block, nil
}

func (p *Poller) processRange(ctx context.Context, blockRange BlockRange) error {
	start := time.Now()

	p.setState(FetchingLogs)
	addresses := []common.Address{p.target.Address}
	logs, err := retry.Do(ctx, p.cfg.RPCRetry, "get_logs", func(ctx context.Context) ([]types.Log, error) {
		return p.source.FilterLogs(ctx, blockRange.From, blockRange.To, addresses)
	})
	if err != nil {
		return fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
	}

	p.archiveLogs(logs)

	p.setState(Processing)
	parsed := parseLogs(p.target.Name, logs, p.target.Type, p.now())
	published := 0
	for _, ev := range parsed {
		if err := p.publisher.Publish(ctx, ev); err != nil {
			metrics.PublishFailureInc(p.target.Name)
			p.logger.Warn("publish failed",
				zap.Error(err),
				zap.String("event_type", ev.EventType),
				zap.String("tx_hash", ev.TransactionHash),
				zap.Uint64("log_index", ev.LogIndex),
			)
			continue
		}
		published++
	}

	p.setState(Checkpointing)
	if err := p.store.SaveLastBlock(ctx, p.target.Key(), p.target.Type, blockRange.To); err != nil {
		return fmt.Errorf("save checkpoint %d: %w", blockRange.To, err)
	}

	metrics.LastIndexedBlockSet(p.target.Name, blockRange.To)
	metrics.BlocksProcessedAdd(p.target.Name, blockRange.Blocks())
	metrics.BatchDurationLog(p.target.Name, time.Since(start))

	p.logger.Info("batch complete",
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
		zap.Int("logs", len(logs)),
		zap.Int("published", published),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (p *Poller) archiveLogs(logs []types.Log) {
	if p.archive == nil || len(logs) == 0 {
		return
	}
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		records = append(records, model.NewLogRecord(log))
	}
	if err := p.archive.PutBatch(records); err != nil {
		p.logger.Warn("archive raw logs failed", zap.Error(err), zap.Int("logs", len(records)))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
