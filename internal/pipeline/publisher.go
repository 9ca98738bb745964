package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/smafilter/internal/config"
	"github.com/sanspareilsmyn/smafilter/internal/record"
)

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes filtered value lists to the output topic, one value list per message,
// keyed by series identifier so that a series stays on one partition.
type Publisher struct {
	writer messageWriter
	input  <-chan *record.ValueList
	logger *zap.Logger
}

// NewPublisher creates a Kafka writer for the output topic.
func NewPublisher(cfg config.KafkaConfig, input <-chan *record.ValueList, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 || cfg.OutputTopic == "" {
		logger.Error("Kafka configuration validation failed",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.OutputTopic),
		)
		return nil, ErrInvalidKafkaConfig
	}

	w := &kafka.Writer{
		Addr:        kafka.TCP(cfg.Brokers...),
		Topic:       cfg.OutputTopic,
		Balancer:    &kafka.Hash{},
		Logger:      kafkaZapLogger{logger.Named("kafka-writer").WithOptions(zap.AddCallerSkip(1))},
		ErrorLogger: kafkaZapErrorLogger{logger.Named("kafka-writer-error").WithOptions(zap.AddCallerSkip(1))},
	}

	logger.Info("Kafka publisher created",
		zap.String("topic", cfg.OutputTopic),
		zap.Strings("brokers", cfg.Brokers),
	)

	return newPublisher(w, input, logger), nil
}

func newPublisher(w messageWriter, input <-chan *record.ValueList, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: w,
		input:  input,
		logger: logger,
	}
}

// Run publishes value lists until the input channel is closed or the context is cancelled.
// A value list that fails to encode or write is logged and dropped.
func (p *Publisher) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	sugar.Info("Starting publisher loop...")

	defer func() {
		if err := p.writer.Close(); err != nil {
			sugar.Errorw("Failed to close Kafka writer cleanly", zap.Error(err))
		}
		sugar.Info("Publisher loop stopped.")
	}()

	for {
		select {
		case vl, ok := <-p.input:
			if !ok {
				sugar.Info("Publisher input channel closed.")
				return nil
			}
			if err := p.publish(ctx, vl); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				publishFailures.Inc()
				p.logger.Warn("Dropping value list", zap.String("series", vl.Identifier()), zap.Error(err))
			}

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping publisher.")
			return ctx.Err()
		}
	}
}

func (p *Publisher) publish(ctx context.Context, vl *record.ValueList) error {
	payload, err := record.EncodeValueLists([]*record.ValueList{vl})
	if err != nil {
		return err
	}

	msg := kafka.Message{Key: []byte(vl.Identifier()), Value: payload}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrKafkaWriteFailed, err)
	}
	publishedLists.Inc()
	return nil
}
