package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/smafilter/internal/record"
)

// Processor feeds parsed value lists through the chain and forwards them downstream.
// Value lists are always forwarded, even when a target failed on them.
type Processor struct {
	chain         *Chain
	input         <-chan *record.ValueList
	output        chan<- *record.ValueList
	sweepInterval time.Duration
	logger        *zap.Logger
}

// NewProcessor creates a new Processor instance. Every sweepInterval the processor
// evicts idle series from the chain; zero disables the sweep.
func NewProcessor(chain *Chain, input <-chan *record.ValueList, output chan<- *record.ValueList, sweepInterval time.Duration, logger *zap.Logger) *Processor {
	logger.Info("Processor initialized",
		zap.Int("targets", len(chain.rules)),
		zap.Duration("sweep_interval", sweepInterval),
	)
	return &Processor{
		chain:         chain,
		input:         input,
		output:        output,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// Run starts the processor's loop. It returns nil when the input channel is closed.
// Once ctx is cancelled it stops forwarding but keeps applying the chain to whatever
// is still queued until the input channel closes, so every value list read before
// shutdown reaches the windows and the final checkpoint.
func (p *Processor) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Starting processor loop...")
	defer sugar.Info("Processor loop stopped.")

	var sweep <-chan time.Time
	if p.sweepInterval > 0 {
		ticker := time.NewTicker(p.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case vl, ok := <-p.input:
			if !ok {
				sugar.Info("Processor input channel closed.")
				return nil
			}
			p.process(ctx, vl)

			select {
			case p.output <- vl:
			case <-ctx.Done():
				sugar.Info("Context cancelled while forwarding value list, draining input.")
				p.drain(ctx)
				return ctx.Err()
			}

		case <-sweep:
			p.evictIdle(ctx)

		case <-ctx.Done():
			sugar.Info("Context cancelled, draining input.")
			p.drain(ctx)
			return ctx.Err()
		}
	}
}

func (p *Processor) drain(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	n := 0
	for vl := range p.input {
		p.process(ctx, vl)
		n++
	}
	p.logger.Debug("Processor input drained", zap.Int("value_lists", n))
}

func (p *Processor) process(ctx context.Context, vl *record.ValueList) {
	if err := p.chain.Process(ctx, vl); err != nil {
		p.logger.Warn("Value list forwarded with failed targets",
			zap.String("series", vl.Identifier()),
			zap.Error(err),
		)
	}
}

func (p *Processor) evictIdle(ctx context.Context) {
	n, err := p.chain.EvictIdle(ctx)
	if err != nil {
		p.logger.Error("Failed to checkpoint evicted series", zap.Int("series", n), zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("Evicted idle series", zap.Int("series", n), zap.Int("remaining", p.chain.SeriesCount()))
	}
}
