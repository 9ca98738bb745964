package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/smafilter/internal/checkpoint"
	"github.com/sanspareilsmyn/smafilter/internal/config"
	"github.com/sanspareilsmyn/smafilter/internal/record"
)

const checkpointTimeout = 10 * time.Second

// component is a pipeline stage started by Run.
type component struct {
	name   string
	run    func(ctx context.Context) error
	wrap   error
	closes func()
}

// Pipeline orchestrates the different stages: consumer, parsing, filter chain, publishing.
type Pipeline struct {
	cfg       *config.Config
	consumer  *Consumer
	processor *Processor
	publisher *Publisher
	metrics   *MetricsServer
	chain     *Chain
	store     *checkpoint.RedisStore
	logger    *zap.Logger

	rawMessages chan []byte
	parsedLists chan *record.ValueList
	outputLists chan *record.ValueList
}

// New creates and wires up a new filter pipeline.
func New(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	initLogger := logger.Named("pipeline.init")
	initLogger.Debug("Creating pipeline components...")

	// Create Channels
	bufferSize := cfg.Pipeline.BufferSize
	rawMessages := make(chan []byte, bufferSize)
	parsedLists := make(chan *record.ValueList, bufferSize)
	outputLists := make(chan *record.ValueList, bufferSize)
	initLogger.Debug("Channels created", zap.Int("bufferSize", bufferSize))

	// Initialize Components
	var (
		store     *checkpoint.RedisStore
		snapshots SnapshotStore
	)
	if cfg.Checkpoint.Enabled {
		store = checkpoint.NewRedisStore(cfg.Checkpoint)
		snapshots = store
		initLogger.Info("Checkpointing enabled", zap.String("redis_addr", cfg.Checkpoint.RedisAddr))
	}

	chain, err := NewChain(cfg.Targets, snapshots, logger.Named("chain"), WithIdleTimeout(cfg.Pipeline.IdleTimeout))
	if err != nil {
		initLogger.Error("Failed to create filter chain", zap.Error(err))
		closeStore(store, initLogger)
		return nil, err
	}

	consumerInstance, err := NewConsumer(cfg.Kafka, rawMessages, logger.Named("consumer"))
	if err != nil {
		initLogger.Error("Failed to create consumer", zap.Error(err))
		closeStore(store, initLogger)
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}
	initLogger.Debug("Consumer created")

	processorInstance := NewProcessor(chain, parsedLists, outputLists, cfg.Pipeline.SweepInterval, logger.Named("processor"))
	initLogger.Debug("Processor created")

	publisherInstance, err := NewPublisher(cfg.Kafka, outputLists, logger.Named("publisher"))
	if err != nil {
		initLogger.Error("Failed to create publisher", zap.Error(err))
		closeStore(store, initLogger)
		return nil, fmt.Errorf("%w: %w", ErrPublisherCreationFailed, err)
	}
	initLogger.Debug("Publisher created")

	var metricsServer *MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = NewMetricsServer(cfg.Metrics, logger.Named("metrics"))
	}

	p := &Pipeline{
		cfg:         cfg,
		consumer:    consumerInstance,
		processor:   processorInstance,
		publisher:   publisherInstance,
		metrics:     metricsServer,
		chain:       chain,
		store:       store,
		logger:      logger.Named("pipeline"),
		rawMessages: rawMessages,
		parsedLists: parsedLists,
		outputLists: outputLists,
	}

	initLogger.Info("Pipeline instance created successfully")
	return p, nil
}

// Run starts all pipeline components and waits for them to complete or context cancellation.
// Window state is checkpointed once every component has stopped.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()

	if p.store != nil {
		if err := p.store.Check(ctx); err != nil {
			sugar.Warnw("Checkpoint store unreachable, series will start cold", zap.Error(err))
		}
	}

	// Cancelling runCtx stops the consumer and the publisher. The parser and processor
	// drain their inputs until the upstream stage closes its output channel, so every
	// committed message still reaches the windows before the final checkpoint.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	components := []component{
		{name: "consumer", run: p.consumer.Run, wrap: ErrConsumerRunFailed, closes: func() { close(p.rawMessages) }},
		{name: "parser", run: p.runParser, closes: func() { close(p.parsedLists) }},
		{name: "processor", run: p.processor.Run, wrap: ErrProcessorRunFailed, closes: func() { close(p.outputLists) }},
		{name: "publisher", run: p.publisher.Run, wrap: ErrPublisherRunFailed},
	}
	if p.metrics != nil {
		components = append(components, component{name: "metrics", run: p.metrics.Run, wrap: ErrMetricsServerFailed})
	}

	var wg sync.WaitGroup
	pipelineErr := make(chan error, len(components))

	sugar.Info("Pipeline Run: Starting components...")
	wg.Add(len(components))
	for _, c := range components {
		go p.runComponent(runCtx, c, &wg, pipelineErr)
	}

	// Wait for context cancellation or the first error from any component
	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
	}
	cancel()

	sugar.Debug("Pipeline Run: Waiting on WaitGroup...")
	wg.Wait()
	sugar.Info("Pipeline Run: All components finished.")

	p.checkpoint()

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

// runComponent executes one component in a goroutine and reports unexpected errors.
func (p *Pipeline) runComponent(ctx context.Context, c component, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	if c.closes != nil {
		defer func() {
			c.closes()
			p.logger.Debug("Output channel closed", zap.String("component", c.name))
		}()
	}

	p.logger.Debug("Starting component goroutine...", zap.String("component", c.name))
	err := c.run(ctx)
	switch {
	case err == nil:
		p.logger.Debug("Component finished normally", zap.String("component", c.name))
	case errors.Is(err, context.Canceled):
		p.logger.Debug("Component cancelled gracefully", zap.String("component", c.name))
	default:
		p.logger.Error("Component exited with error", zap.String("component", c.name), zap.Error(err))
		if c.wrap != nil {
			err = fmt.Errorf("%w: %w", c.wrap, err)
		}
		errCh <- err
	}
}

// runParser decodes raw payloads into value lists. Undecodable payloads are skipped.
func (p *Pipeline) runParser(ctx context.Context) error {
	parserLogger := p.logger.Named("parser").Sugar()
	parserLogger.Debug("Starting parser goroutine...")

	for {
		select {
		case rawMsg, ok := <-p.rawMessages:
			if !ok {
				parserLogger.Debug("Parser finished (raw message channel closed).")
				return nil
			}

			lists := p.parse(rawMsg)
			for i, vl := range lists {
				select {
				case p.parsedLists <- vl:
				case <-ctx.Done():
					parserLogger.Debug("Parser context cancelled during send, draining.", zap.Error(ctx.Err()))
					p.drainParser(lists[i:])
					return ctx.Err()
				}
			}

		case <-ctx.Done():
			parserLogger.Debug("Parser context cancelled while waiting for raw message, draining.", zap.Error(ctx.Err()))
			p.drainParser(nil)
			return ctx.Err()
		}
	}
}

// drainParser hands pending and still queued value lists to the processor, which
// drains its own input on shutdown.
func (p *Pipeline) drainParser(pending []*record.ValueList) {
	for _, vl := range pending {
		p.parsedLists <- vl
	}
	for rawMsg := range p.rawMessages {
		for _, vl := range p.parse(rawMsg) {
			p.parsedLists <- vl
		}
	}
}

func (p *Pipeline) parse(rawMsg []byte) []*record.ValueList {
	lists, err := record.ParseValueLists(rawMsg)
	if err != nil {
		parseFailures.Inc()
		p.logger.Named("parser").Warn("Failed to parse message, skipping", zap.Error(err))
		return nil
	}
	return lists
}

// checkpoint saves window state and releases all targets.
func (p *Pipeline) checkpoint() {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	if err := p.chain.Close(ctx); err != nil {
		p.logger.Error("Failed to checkpoint window state", zap.Error(err))
	}
}

// Close releases resources that outlive Run.
func (p *Pipeline) Close() error {
	p.logger.Debug("Pipeline Close called.")
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

func closeStore(store *checkpoint.RedisStore, logger *zap.Logger) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.Warn("Failed to close checkpoint store", zap.Error(err))
	}
}
