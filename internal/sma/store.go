package sma

import "fmt"

// maxBufferedValues caps channels*window for a single target.
const maxBufferedValues = 1 << 24

// windowStore holds one circular buffer per channel in a single channel-major slice:
// channel i owns buffer[i*window : (i+1)*window]. cursors[i] is the slot holding the
// oldest sample of channel i, which is also the next slot to be overwritten.
type windowStore struct {
	window  int
	buffer  []float64
	cursors []int
}

func newWindowStore(channels, window int) (*windowStore, error) {
	if channels < 0 || window < 1 || (channels > 0 && window > maxBufferedValues/channels) {
		return nil, fmt.Errorf("%w: %d channels with window %d", ErrAllocation, channels, window)
	}
	return &windowStore{
		window:  window,
		buffer:  make([]float64, channels*window),
		cursors: make([]int, channels),
	}, nil
}

func (s *windowStore) channels() int {
	return len(s.cursors)
}

func (s *windowStore) slots(ch int) []float64 {
	off := ch * s.window
	return s.buffer[off : off+s.window]
}

// update stores v over the oldest sample of channel ch and returns the mean of the window.
// Slots never written count as zero.
func (s *windowStore) update(ch int, v float64) float64 {
	w := s.slots(ch)
	w[s.cursors[ch]] = v
	s.cursors[ch] = (s.cursors[ch] + 1) % s.window

	var sum float64
	for _, x := range w {
		sum += x
	}
	return sum / float64(s.window)
}
