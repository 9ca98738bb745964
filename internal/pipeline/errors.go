package pipeline

import "errors"

var (
	ErrInvalidKafkaConfig      = errors.New("invalid Kafka configuration provided")
	ErrKafkaFetchFailed        = errors.New("failed to fetch message from Kafka")
	ErrKafkaWriteFailed        = errors.New("failed to write message to Kafka")
	ErrConsumerCreationFailed  = errors.New("failed to create consumer")
	ErrPublisherCreationFailed = errors.New("failed to create publisher")
	ErrChainCreationFailed     = errors.New("failed to create filter chain")
	ErrConsumerRunFailed       = errors.New("consumer component failed")
	ErrProcessorRunFailed      = errors.New("processor component failed")
	ErrPublisherRunFailed      = errors.New("publisher component failed")
	ErrMetricsServerFailed     = errors.New("metrics server failed")
)
