package sma

import (
	"fmt"

	"go.uber.org/zap"
)

// Snapshot is a copy of the window state of an initialized target.
type Snapshot struct {
	Window   int
	Channels []string
	Buffers  [][]float64
	Cursors  []int
}

// Snapshot copies the current window state. It returns false while the target is
// not initialized.
func (t *Target) Snapshot() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateInitialized {
		return Snapshot{}, false
	}

	s := Snapshot{
		Window:   t.store.window,
		Channels: append([]string(nil), t.channels...),
		Buffers:  make([][]float64, t.store.channels()),
		Cursors:  append([]int(nil), t.store.cursors...),
	}
	for ch := range s.Buffers {
		s.Buffers[ch] = append([]float64(nil), t.store.slots(ch)...)
	}
	return s, true
}

// Restore initializes an uninitialized target from a snapshot instead of from its first
// value list. The snapshot window must equal the configured window.
func (t *Target) Restore(s Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateUninitialized {
		return fmt.Errorf("%w: target %q is %s", ErrInvalidSnapshot, t.name, t.state)
	}
	if err := t.validateSnapshot(s); err != nil {
		return err
	}

	store, err := newWindowStore(len(s.Channels), s.Window)
	if err != nil {
		return err
	}
	for ch, buf := range s.Buffers {
		copy(store.slots(ch), buf)
	}
	copy(store.cursors, s.Cursors)

	t.store = store
	t.channels = append([]string(nil), s.Channels...)
	t.state = stateInitialized
	activeWindows.WithLabelValues(t.name).Inc()

	t.logger.Debug("Window state restored",
		zap.String("target", t.name),
		zap.Strings("channels", t.channels),
	)
	return nil
}

func (t *Target) validateSnapshot(s Snapshot) error {
	if s.Window != t.opts.Window {
		return fmt.Errorf("%w: window %d, configured %d", ErrInvalidSnapshot, s.Window, t.opts.Window)
	}
	if len(s.Buffers) != len(s.Channels) || len(s.Cursors) != len(s.Channels) {
		return fmt.Errorf("%w: %d channels, %d buffers, %d cursors",
			ErrInvalidSnapshot, len(s.Channels), len(s.Buffers), len(s.Cursors))
	}
	for ch := range s.Channels {
		if len(s.Buffers[ch]) != s.Window {
			return fmt.Errorf("%w: buffer of %q holds %d values", ErrInvalidSnapshot, s.Channels[ch], len(s.Buffers[ch]))
		}
		if s.Cursors[ch] < 0 || s.Cursors[ch] >= s.Window {
			return fmt.Errorf("%w: cursor of %q is %d", ErrInvalidSnapshot, s.Channels[ch], s.Cursors[ch])
		}
	}
	return nil
}
