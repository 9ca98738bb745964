package sma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowStoreWrapsCursor(t *testing.T) {
	require := require.New(t)

	s, err := newWindowStore(2, 3)
	require.NoError(err)
	require.Equal(2, s.channels())
	require.Len(s.buffer, 6)

	for i := 0; i < 4; i++ {
		s.update(1, float64(i+1))
	}
	require.Equal([]int{0, 1}, s.cursors)
	require.Equal([]float64{0, 0, 0}, s.slots(0))
	require.Equal([]float64{4, 2, 3}, s.slots(1))
}

func TestWindowStoreLimits(t *testing.T) {
	_, err := newWindowStore(-1, 1)
	require.ErrorIs(t, err, ErrAllocation)

	_, err = newWindowStore(1, 0)
	require.ErrorIs(t, err, ErrAllocation)

	_, err = newWindowStore(4, maxBufferedValues/4+1)
	require.ErrorIs(t, err, ErrAllocation)

	s, err := newWindowStore(0, 5)
	require.NoError(t, err)
	require.Zero(t, s.channels())
}

func TestSelectorNames(t *testing.T) {
	names := []string{"a"}
	s := NewSelector(names)
	names[0] = "b"

	require.True(t, s.IsSelected("A"))
	require.False(t, s.IsSelected("b"))
	require.True(t, Selector{}.IsSelected("anything"))
}
