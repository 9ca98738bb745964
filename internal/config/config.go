package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultKafkaGroupID       = "smafilter-default-group"
	defaultPipelineBufferSize = 100
	defaultIdleTimeout        = 30 * time.Minute
	defaultSweepInterval      = time.Minute
	defaultMetricsEnabled     = true
	defaultMetricsListenAddr  = ":9464"
	defaultCheckpointEnabled  = false
	defaultCheckpointAddr     = "127.0.0.1:6379"
	defaultCheckpointPrefix   = "smafilter:window:"
	defaultCheckpointTTL      = 24 * time.Hour
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
	defaultLogFileEnabled     = false
	defaultLogDirectory       = "log"
	defaultLogFilename        = "app.log"
	defaultLogMaxSizeMB       = 100
	defaultLogMaxBackups      = 3
	defaultLogMaxAgeDays      = 7
	defaultLogCompress        = false

	// Environment variable prefix
	envPrefix = "SMAFILTER"
)

type Config struct {
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Targets    []TargetConfig   `mapstructure:"targets"`
	Log        LogConfig        `mapstructure:"log"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	InputTopic  string   `mapstructure:"inputTopic"`
	OutputTopic string   `mapstructure:"outputTopic"`
	GroupID     string   `mapstructure:"groupID"`
}

// PipelineConfig sizes the stage channels and controls eviction of idle series.
// A zero IdleTimeout keeps every series until shutdown.
type PipelineConfig struct {
	BufferSize    int           `mapstructure:"bufferSize"`
	IdleTimeout   time.Duration `mapstructure:"idleTimeout"`
	SweepInterval time.Duration `mapstructure:"sweepInterval"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listenAddr"`
}

// CheckpointConfig controls persistence of window state in Redis across restarts.
type CheckpointConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	RedisAddr     string        `mapstructure:"redisAddr"`
	RedisPassword string        `mapstructure:"redisPassword"`
	RedisDB       int           `mapstructure:"redisDB"`
	KeyPrefix     string        `mapstructure:"keyPrefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// TargetConfig describes one filter chain rule: which series it applies to and
// the option block handed to the sma target.
type TargetConfig struct {
	Name    string      `mapstructure:"name"`
	Match   MatchConfig `mapstructure:"match"`
	Options Block       `mapstructure:"options"`
}

// MatchConfig restricts a target to series whose identifier parts match.
// Empty fields match anything.
type MatchConfig struct {
	Host   string `mapstructure:"host"`
	Plugin string `mapstructure:"plugin"`
	Type   string `mapstructure:"type"`
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Set default values before reading config source .yaml
	setDefaults(v)

	// Read configuration from file (error if mandatory file is missing)
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal the configuration
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)
	v.SetDefault("pipeline.bufferSize", defaultPipelineBufferSize)
	v.SetDefault("pipeline.idleTimeout", defaultIdleTimeout)
	v.SetDefault("pipeline.sweepInterval", defaultSweepInterval)
	v.SetDefault("metrics.enabled", defaultMetricsEnabled)
	v.SetDefault("metrics.listenAddr", defaultMetricsListenAddr)
	v.SetDefault("checkpoint.enabled", defaultCheckpointEnabled)
	v.SetDefault("checkpoint.redisAddr", defaultCheckpointAddr)
	v.SetDefault("checkpoint.keyPrefix", defaultCheckpointPrefix)
	v.SetDefault("checkpoint.ttl", defaultCheckpointTTL)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) || errors.Is(err, fs.ErrNotExist) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return ErrEmptyKafkaBrokers
	}
	if cfg.Kafka.InputTopic == "" || cfg.Kafka.OutputTopic == "" {
		return ErrEmptyKafkaTopic
	}
	if cfg.Kafka.GroupID == "" {
		return ErrEmptyKafkaGroupID
	}
	if cfg.Pipeline.BufferSize <= 0 {
		return ErrInvalidPipelineBufferSize
	}
	if cfg.Pipeline.IdleTimeout < 0 {
		return ErrInvalidIdleTimeout
	}
	if cfg.Pipeline.IdleTimeout > 0 && cfg.Pipeline.SweepInterval <= 0 {
		return ErrInvalidSweepInterval
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		return ErrEmptyMetricsListenAddr
	}
	if cfg.Checkpoint.Enabled && cfg.Checkpoint.RedisAddr == "" {
		return ErrEmptyCheckpointAddr
	}
	return validateTargets(cfg.Targets)
}

func validateTargets(targets []TargetConfig) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}
	seen := make(map[string]struct{}, len(targets))
	for i, t := range targets {
		if t.Name == "" {
			return fmt.Errorf("%w: target #%d", ErrEmptyTargetName, i+1)
		}
		key := strings.ToLower(t.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateTargetName, t.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}
