// Package checkpoint persists sma window state in Redis so a restarted filter keeps
// averaging where it left off instead of starting cold.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanspareilsmyn/smafilter/internal/config"
	"github.com/sanspareilsmyn/smafilter/internal/sma"
)

// RedisStore keeps one JSON snapshot per key.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(cfg config.CheckpointConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

func (s *RedisStore) Check(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load returns the snapshot stored under key, or nil when there is none.
func (s *RedisStore) Load(ctx context.Context, key string) (*sma.Snapshot, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveAll writes every snapshot in a single pipeline.
func (s *RedisStore) SaveAll(ctx context.Context, snapshots map[string]sma.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for key, snap := range snapshots {
		payload, err := encodeSnapshot(snap)
		if err != nil {
			return fmt.Errorf("snapshot %q: %w", key, err)
		}
		pipe.Set(ctx, s.prefix+key, payload, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

type wireSnapshot struct {
	Window   int        `json:"window"`
	Channels []string   `json:"channels"`
	Buffers  [][]sample `json:"buffers"`
	Cursors  []int      `json:"cursors"`
}

// sample is one buffered value. JSON has no NaN or infinities, so NaN is written as
// null and the infinities as the strings "+Inf" and "-Inf".
type sample float64

func (s sample) MarshalJSON() ([]byte, error) {
	f := float64(s)
	switch {
	case math.IsNaN(f):
		return []byte("null"), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

func (s *sample) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*s = sample(math.NaN())
		return nil
	case `"+Inf"`:
		*s = sample(math.Inf(1))
		return nil
	case `"-Inf"`:
		*s = sample(math.Inf(-1))
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = sample(f)
	return nil
}

func encodeSnapshot(s sma.Snapshot) ([]byte, error) {
	w := wireSnapshot{
		Window:   s.Window,
		Channels: s.Channels,
		Buffers:  make([][]sample, len(s.Buffers)),
		Cursors:  s.Cursors,
	}
	for ch, buf := range s.Buffers {
		w.Buffers[ch] = make([]sample, len(buf))
		for i, v := range buf {
			w.Buffers[ch][i] = sample(v)
		}
	}

	payload, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return payload, nil
}

func decodeSnapshot(data []byte) (sma.Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return sma.Snapshot{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	s := sma.Snapshot{
		Window:   w.Window,
		Channels: w.Channels,
		Buffers:  make([][]float64, len(w.Buffers)),
		Cursors:  w.Cursors,
	}
	for ch, buf := range w.Buffers {
		s.Buffers[ch] = make([]float64, len(buf))
		for i, v := range buf {
			s.Buffers[ch][i] = float64(v)
		}
	}
	return s, nil
}
