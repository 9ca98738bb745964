// Package sma implements the simple moving average target: every selected gauge channel
// of a value list is replaced by the mean of its last Window samples.
//
// A Target owns the window state of exactly one series. Its buffers are sized lazily by the
// first value list it sees, and every later value list must carry the same channels in the
// same order. Apply is meant to be called from one goroutine at a time; the internal mutex
// only makes Snapshot safe to call concurrently with it.
package sma

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/smafilter/internal/config"
	"github.com/sanspareilsmyn/smafilter/internal/record"
)

// Status tells the caller how to proceed with a value list after Apply.
type Status int

const (
	StatusError    Status = -1
	StatusContinue Status = 0
)

type lifecycle int

const (
	stateUninitialized lifecycle = iota
	stateInitialized
	stateDestroyed
)

func (l lifecycle) String() string {
	switch l {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	default:
		return "destroyed"
	}
}

// Target averages the selected gauge channels of one series.
type Target struct {
	name     string
	opts     Options
	selector Selector
	logger   *zap.Logger

	mu       sync.Mutex
	state    lifecycle
	store    *windowStore
	channels []string
}

// New parses the option block and returns a target ready for its first value list.
// On ErrConfig no target is returned.
func New(name string, block config.Block, logger *zap.Logger) (*Target, error) {
	opts, err := ParseOptions(block, logger)
	if err != nil {
		logger.Error("Failed to create target", zap.String("target", name), zap.Error(err))
		return nil, err
	}
	return NewWithOptions(name, opts, logger), nil
}

// NewWithOptions creates a target from already validated options.
func NewWithOptions(name string, opts Options, logger *zap.Logger) *Target {
	return &Target{
		name:     name,
		opts:     opts,
		selector: NewSelector(opts.DataSources),
		logger:   logger,
	}
}

func (t *Target) Name() string {
	return t.name
}

func (t *Target) Options() Options {
	return Options{Window: t.opts.Window, DataSources: t.selector.Names()}
}

// Initialized reports whether window state has been allocated.
func (t *Target) Initialized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateInitialized
}

// Apply replaces every selected gauge value of vl with its moving average.
// Selected channels of other kinds are left untouched and reported, without failing the call.
// The first call allocates the window state from the channel count of vl.
func (t *Target) Apply(vl *record.ValueList) (Status, error) {
	if t == nil || vl == nil {
		return StatusError, ErrInvalidArgument
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateDestroyed:
		rejectedLists.WithLabelValues(t.name, reasonDestroyed).Inc()
		t.logger.Error("Apply called on destroyed target", zap.String("target", t.name))
		return StatusError, fmt.Errorf("%w: target %q is destroyed", ErrInvalidArgument, t.name)
	case stateUninitialized:
		if err := t.initialize(vl); err != nil {
			return StatusError, err
		}
	}

	if err := t.checkChannels(vl); err != nil {
		return StatusError, err
	}

	for i := range vl.Values {
		v := &vl.Values[i]
		if !t.selector.IsSelected(v.Name) {
			continue
		}
		if v.Kind != record.KindGauge {
			unsupportedKinds.WithLabelValues(t.name, v.Kind.String()).Inc()
			t.logger.Warn("Ignoring channel with unsupported data source type",
				zap.String("target", t.name),
				zap.String("channel", v.Name),
				zap.Stringer("kind", v.Kind),
				zap.Error(ErrUnsupportedKind),
			)
			continue
		}
		v.Gauge = t.store.update(i, v.Gauge)
		valuesAveraged.WithLabelValues(t.name).Inc()
	}

	return StatusContinue, nil
}

// initialize performs the one-shot Uninitialized -> Initialized transition.
// On failure the target stays uninitialized, so the next call retries and fails the same way.
func (t *Target) initialize(vl *record.ValueList) error {
	store, err := newWindowStore(len(vl.Values), t.opts.Window)
	if err != nil {
		rejectedLists.WithLabelValues(t.name, reasonAllocation).Inc()
		t.logger.Error("Failed to allocate window buffers",
			zap.String("target", t.name),
			zap.Int("channels", len(vl.Values)),
			zap.Int("window", t.opts.Window),
			zap.Error(err),
		)
		return err
	}

	t.store = store
	t.channels = vl.Names()
	t.state = stateInitialized
	activeWindows.WithLabelValues(t.name).Inc()

	t.logger.Debug("Window buffers allocated",
		zap.String("target", t.name),
		zap.Strings("channels", t.channels),
		zap.Int("window", t.opts.Window),
	)
	return nil
}

func (t *Target) checkChannels(vl *record.ValueList) error {
	mismatch := len(vl.Values) != len(t.channels)
	for i := 0; !mismatch && i < len(vl.Values); i++ {
		mismatch = !strings.EqualFold(vl.Values[i].Name, t.channels[i])
	}
	if !mismatch {
		return nil
	}

	rejectedLists.WithLabelValues(t.name, reasonChannelMismatch).Inc()
	t.logger.Warn("Value list channels differ from the first value list, leaving it unmodified",
		zap.String("target", t.name),
		zap.Strings("expected", t.channels),
		zap.Strings("got", vl.Names()),
	)
	return fmt.Errorf("%w: expected %v, got %v", ErrChannelMismatch, t.channels, vl.Names())
}

// Destroy releases the window state. Calling it more than once, or on a nil target, is a no-op.
func (t *Target) Destroy() {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == stateDestroyed {
		return
	}
	if t.state == stateInitialized {
		activeWindows.WithLabelValues(t.name).Dec()
	}
	t.state = stateDestroyed
	t.store = nil
	t.channels = nil
	t.selector = Selector{}
	t.logger.Debug("Target destroyed", zap.String("target", t.name))
}
