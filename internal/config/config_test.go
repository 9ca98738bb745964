package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const validYAML = `
kafka:
  brokers: ["localhost:9092"]
  inputTopic: collectd-values
  outputTopic: collectd-values-sma
targets:
  - name: sma-load
    match:
      plugin: load
    options:
      - key: Window
        values: [5]
      - key: DataSource
        values: [shortterm, midterm]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(err)

	require.Equal([]string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.Equal(defaultKafkaGroupID, cfg.Kafka.GroupID)
	require.Equal(defaultPipelineBufferSize, cfg.Pipeline.BufferSize)
	require.Equal(30*time.Minute, cfg.Pipeline.IdleTimeout)
	require.Equal(time.Minute, cfg.Pipeline.SweepInterval)
	require.True(cfg.Metrics.Enabled)
	require.Equal(defaultMetricsListenAddr, cfg.Metrics.ListenAddr)
	require.False(cfg.Checkpoint.Enabled)
	require.Equal(24*time.Hour, cfg.Checkpoint.TTL)
	require.Equal(defaultLogLevel, cfg.Log.Level)
}

func TestLoadDecodesTargetBlock(t *testing.T) {
	require := require.New(t)

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(err)
	require.Len(cfg.Targets, 1)

	target := cfg.Targets[0]
	require.Equal("sma-load", target.Name)
	require.Equal("load", target.Match.Plugin)
	require.Len(target.Options, 2)

	window := target.Options[0]
	require.True(window.Is("window"))
	require.Equal(TypeNumber, window.TypeAt(0))
	n, ok := window.NumberAt(0)
	require.True(ok)
	require.Equal(5.0, n)

	sources := target.Options[1]
	require.True(sources.Is("DATASOURCE"))
	s, ok := sources.StringAt(1)
	require.True(ok)
	require.Equal("midterm", s)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SMAFILTER_KAFKA_GROUPID", "from-env")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Kafka.GroupID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, ErrConfigFileMissing)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		return &Config{
			Kafka: KafkaConfig{
				Brokers:     []string{"b:9092"},
				InputTopic:  "in",
				OutputTopic: "out",
				GroupID:     "g",
			},
			Pipeline: PipelineConfig{BufferSize: 10, IdleTimeout: time.Hour, SweepInterval: time.Minute},
			Metrics:  MetricsConfig{Enabled: true, ListenAddr: ":0"},
			Targets:  []TargetConfig{{Name: "a"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no brokers", mutate: func(c *Config) { c.Kafka.Brokers = nil }, wantErr: ErrEmptyKafkaBrokers},
		{name: "no output topic", mutate: func(c *Config) { c.Kafka.OutputTopic = "" }, wantErr: ErrEmptyKafkaTopic},
		{name: "no group", mutate: func(c *Config) { c.Kafka.GroupID = "" }, wantErr: ErrEmptyKafkaGroupID},
		{name: "zero buffer", mutate: func(c *Config) { c.Pipeline.BufferSize = 0 }, wantErr: ErrInvalidPipelineBufferSize},
		{name: "negative idle timeout", mutate: func(c *Config) { c.Pipeline.IdleTimeout = -time.Second }, wantErr: ErrInvalidIdleTimeout},
		{name: "eviction without sweep", mutate: func(c *Config) { c.Pipeline.SweepInterval = 0 }, wantErr: ErrInvalidSweepInterval},
		{
			name:   "eviction disabled",
			mutate: func(c *Config) { c.Pipeline.IdleTimeout, c.Pipeline.SweepInterval = 0, 0 },
		},
		{name: "metrics without addr", mutate: func(c *Config) { c.Metrics.ListenAddr = "" }, wantErr: ErrEmptyMetricsListenAddr},
		{name: "checkpoint without addr", mutate: func(c *Config) { c.Checkpoint.Enabled = true }, wantErr: ErrEmptyCheckpointAddr},
		{name: "no targets", mutate: func(c *Config) { c.Targets = nil }, wantErr: ErrNoTargets},
		{name: "unnamed target", mutate: func(c *Config) { c.Targets[0].Name = "" }, wantErr: ErrEmptyTargetName},
		{
			name:    "duplicate target",
			mutate:  func(c *Config) { c.Targets = append(c.Targets, TargetConfig{Name: "A"}) },
			wantErr: ErrDuplicateTargetName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestItemAccessors(t *testing.T) {
	require := require.New(t)

	it := Item{Key: "Window", Values: []interface{}{int64(3), "x", true, 2.5}}
	require.Equal(TypeNumber, it.TypeAt(0))
	require.Equal(TypeString, it.TypeAt(1))
	require.Equal(TypeBoolean, it.TypeAt(2))
	require.Equal(TypeOther, it.TypeAt(9))

	_, ok := it.NumberAt(1)
	require.False(ok)
	_, ok = it.StringAt(0)
	require.False(ok)
	require.Equal(`Window 3 "x" true 2.5`, it.String())
}
