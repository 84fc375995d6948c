// Package ingest orchestrates chainhook payload processing: per-block
// normalization and bulk insert for apply blocks, set-based rollback
// flagging for rollback blocks.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cypher-activity/internal/chainhook"
	"cypher-activity/internal/observability"
	"cypher-activity/internal/storage"
)

// Processor applies validated chainhook payloads to the activity store.
type Processor struct {
	store      storage.ActivityStore
	normalizer *chainhook.Normalizer
	logger     *zap.Logger
}

// Options contains configuration for creating a Processor.
type Options struct {
	Store      storage.ActivityStore
	Normalizer *chainhook.Normalizer
	Logger     *zap.Logger
}

// NewProcessor creates a new payload processor.
func NewProcessor(opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Processor{
		store:      opts.Store,
		normalizer: opts.Normalizer,
		logger:     logger,
	}
}

// Process handles one validated payload. Apply blocks are processed strictly
// in array order, one insert batch per block; rollback blocks flip the
// rollback flag for their height. The first error aborts remaining blocks
// and propagates; effects of earlier blocks stand (the upstream indexer
// redelivers at least once, and duplicate inserts are accepted).
func (p *Processor) Process(ctx context.Context, payload *chainhook.Payload) error {
	for i := range payload.Apply {
		if err := p.applyBlock(ctx, &payload.Apply[i]); err != nil {
			return err
		}
	}

	for i := range payload.Rollback {
		if err := p.rollbackBlock(ctx, &payload.Rollback[i]); err != nil {
			return err
		}
	}

	return nil
}

func (p *Processor) applyBlock(ctx context.Context, block *chainhook.Block) error {
	height := *block.Block.BlockHeight
	events := p.normalizer.NormalizeBlock(block)

	if len(events) > 0 {
		start := time.Now()
		err := p.store.InsertBulk(ctx, events)
		observability.RecordStoreOp("insert_bulk", time.Since(start).Seconds(), err)
		if err != nil {
			return fmt.Errorf("insert events for block %d: %w", height, err)
		}

		for _, ev := range events {
			observability.RecordEventNormalized(string(ev.EventType))
		}
		p.logger.Info("inserted activity events",
			zap.Int("count", len(events)),
			zap.Int64("block_height", height),
		)
	}

	observability.RecordBlockApplied(len(events))
	return nil
}

func (p *Processor) rollbackBlock(ctx context.Context, block *chainhook.Block) error {
	height := *block.Block.BlockHeight

	start := time.Now()
	flagged, err := p.store.MarkRolledBack(ctx, height)
	observability.RecordStoreOp("mark_rolled_back", time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("mark events rolled back for block %d: %w", height, err)
	}

	observability.RecordBlockRolledBack(flagged)
	p.logger.Info("marked events as rolled back",
		zap.Int64("count", flagged),
		zap.Int64("block_height", height),
	)
	return nil
}
