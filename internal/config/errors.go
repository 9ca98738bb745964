package config

import "errors"

var (
	ErrReadingConfigFile         = errors.New("failed to read config file")
	ErrUnmarshallingConfig       = errors.New("failed to unmarshal config")
	ErrEmptyKafkaBrokers         = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic           = errors.New("kafka input and output topics cannot be empty")
	ErrEmptyKafkaGroupID         = errors.New("kafka groupID cannot be empty")
	ErrInvalidPipelineBufferSize = errors.New("pipeline bufferSize must be positive")
	ErrInvalidIdleTimeout        = errors.New("pipeline idleTimeout cannot be negative")
	ErrInvalidSweepInterval      = errors.New("pipeline sweepInterval must be positive when idleTimeout is set")
	ErrEmptyMetricsListenAddr    = errors.New("metrics listenAddr cannot be empty when metrics are enabled")
	ErrEmptyCheckpointAddr       = errors.New("checkpoint redisAddr cannot be empty when checkpointing is enabled")
	ErrNoTargets                 = errors.New("at least one target must be configured")
	ErrEmptyTargetName           = errors.New("target name cannot be empty")
	ErrDuplicateTargetName       = errors.New("target names must be unique")
	ErrConfigFileMissing         = errors.New("config file not found")
)
