package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/smafilter/internal/config"
	"github.com/sanspareilsmyn/smafilter/internal/record"
	"github.com/sanspareilsmyn/smafilter/internal/sma"
)

// SnapshotStore persists window state between runs. A nil store disables checkpointing.
type SnapshotStore interface {
	Load(ctx context.Context, key string) (*sma.Snapshot, error)
	SaveAll(ctx context.Context, snapshots map[string]sma.Snapshot) error
}

// rule is one configured target. Window state is kept per series, so every series
// identifier gets its own sma.Target built from the same options.
type rule struct {
	name    string
	match   config.MatchConfig
	options sma.Options
	series  map[string]*series
}

type series struct {
	target   *sma.Target
	lastSeen time.Time
}

func (r *rule) matches(vl *record.ValueList) bool {
	return matchField(r.match.Host, vl.Host) &&
		matchField(r.match.Plugin, vl.Plugin) &&
		matchField(r.match.Type, vl.Type)
}

func matchField(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}

// Chain runs every value list through the configured targets in order.
type Chain struct {
	rules       []*rule
	store       SnapshotStore
	logger      *zap.Logger
	idleTimeout time.Duration
	now         func() time.Time

	mu sync.Mutex
}

// ChainOption customizes a Chain built by NewChain.
type ChainOption func(*Chain)

// WithIdleTimeout makes EvictIdle release series not seen for longer than d.
// Zero, the default, keeps every series until Close.
func WithIdleTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.idleTimeout = d }
}

// WithClock replaces time.Now for last-seen tracking.
func WithClock(now func() time.Time) ChainOption {
	return func(c *Chain) { c.now = now }
}

// NewChain validates every target option block up front; a single invalid block fails
// the whole chain.
func NewChain(targets []config.TargetConfig, store SnapshotStore, logger *zap.Logger, opts ...ChainOption) (*Chain, error) {
	rules := make([]*rule, 0, len(targets))
	for _, t := range targets {
		opts, err := sma.ParseOptions(t.Options, logger.With(zap.String("target", t.Name)))
		if err != nil {
			return nil, fmt.Errorf("%w: target %q: %w", ErrChainCreationFailed, t.Name, err)
		}
		rules = append(rules, &rule{
			name:    t.Name,
			match:   t.Match,
			options: opts,
			series:  make(map[string]*series),
		})
		logger.Info("Target configured",
			zap.String("target", t.Name),
			zap.Int("window", opts.Window),
			zap.Strings("data_sources", opts.DataSources),
		)
	}

	c := &Chain{
		rules:  rules,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Process applies all matching targets to vl in place. A failing target leaves vl as it
// was for that target and the remaining targets still run; the failures are returned joined.
func (c *Chain) Process(ctx context.Context, vl *record.ValueList) error {
	id := vl.Identifier()

	var errs []error
	for _, r := range c.rules {
		if !r.matches(vl) {
			continue
		}
		target := c.getOrCreateTarget(ctx, r, id)
		if _, err := target.Apply(vl); err != nil {
			chainErrors.WithLabelValues(r.name).Inc()
			errs = append(errs, fmt.Errorf("target %q, series %q: %w", r.name, id, err))
		}
	}
	return errors.Join(errs...)
}

// getOrCreateTarget retrieves or initializes the target for a given rule/series and
// marks the series as seen. The checkpoint of a new series is loaded without holding
// the lock.
func (c *Chain) getOrCreateTarget(ctx context.Context, r *rule, id string) *sma.Target {
	if target := c.touch(r, id); target != nil {
		return target
	}

	target := sma.NewWithOptions(r.name, r.options, c.logger.With(zap.String("series", id)))
	c.restore(ctx, r.name, id, target)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, exists := r.series[id]; exists {
		// Created by a concurrent caller while the checkpoint was loading.
		target.Destroy()
		s.lastSeen = c.now()
		return s.target
	}
	r.series[id] = &series{target: target, lastSeen: c.now()}
	c.logger.Debug("Created target for series", zap.String("target", r.name), zap.String("series", id))
	return target
}

func (c *Chain) touch(r *rule, id string) *sma.Target {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, exists := r.series[id]
	if !exists {
		return nil
	}
	s.lastSeen = c.now()
	return s.target
}

func (c *Chain) restore(ctx context.Context, ruleName, id string, target *sma.Target) {
	if c.store == nil {
		return
	}

	key := checkpointKey(ruleName, id)
	snap, err := c.store.Load(ctx, key)
	switch {
	case err != nil:
		checkpointOps.WithLabelValues("load", "error").Inc()
		c.logger.Warn("Failed to load checkpoint, starting cold", zap.String("key", key), zap.Error(err))
	case snap == nil:
		checkpointOps.WithLabelValues("load", "miss").Inc()
	default:
		if err := target.Restore(*snap); err != nil {
			checkpointOps.WithLabelValues("load", "error").Inc()
			c.logger.Warn("Discarding checkpoint that does not fit the target", zap.String("key", key), zap.Error(err))
			return
		}
		checkpointOps.WithLabelValues("load", "hit").Inc()
	}
}

// EvictIdle checkpoints and releases the targets of series that have not been seen
// for longer than the idle timeout. It returns how many series were evicted.
func (c *Chain) EvictIdle(ctx context.Context) (int, error) {
	if c.idleTimeout <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.idleTimeout)

	c.mu.Lock()
	idle := make(map[string]*sma.Target)
	for _, r := range c.rules {
		for id, s := range r.series {
			if s.lastSeen.Before(cutoff) {
				idle[checkpointKey(r.name, id)] = s.target
				delete(r.series, id)
			}
		}
	}
	c.mu.Unlock()

	if len(idle) == 0 {
		return 0, nil
	}
	evictedSeries.Add(float64(len(idle)))
	return len(idle), c.release(ctx, idle)
}

// Close saves the window state of every initialized target, if a store is configured,
// and destroys all targets. It is safe to call more than once.
func (c *Chain) Close(ctx context.Context) error {
	c.mu.Lock()
	all := make(map[string]*sma.Target)
	for _, r := range c.rules {
		for id, s := range r.series {
			all[checkpointKey(r.name, id)] = s.target
		}
		r.series = make(map[string]*series)
	}
	c.mu.Unlock()

	return c.release(ctx, all)
}

// release destroys targets after saving the snapshots of the initialized ones.
func (c *Chain) release(ctx context.Context, targets map[string]*sma.Target) error {
	snapshots := make(map[string]sma.Snapshot, len(targets))
	for key, target := range targets {
		if snap, ok := target.Snapshot(); ok {
			snapshots[key] = snap
		}
		target.Destroy()
	}

	if c.store == nil || len(snapshots) == 0 {
		return nil
	}
	if err := c.store.SaveAll(ctx, snapshots); err != nil {
		checkpointOps.WithLabelValues("save", "error").Inc()
		return err
	}
	checkpointOps.WithLabelValues("save", "ok").Inc()
	c.logger.Info("Window state checkpointed", zap.Int("series", len(snapshots)))
	return nil
}

// SeriesCount returns how many series have a target, across all rules.
func (c *Chain) SeriesCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, r := range c.rules {
		n += len(r.series)
	}
	return n
}

func checkpointKey(ruleName, id string) string {
	return ruleName + ":" + id
}
