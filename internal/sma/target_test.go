package sma

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sanspareilsmyn/smafilter/internal/config"
	"github.com/sanspareilsmyn/smafilter/internal/record"
)

func gaugeList(names []string, values ...float64) *record.ValueList {
	vl := &record.ValueList{Host: "h", Plugin: "p", Type: "t"}
	for i, n := range names {
		vl.Values = append(vl.Values, record.GaugeValue(n, values[i]))
	}
	return vl
}

func newTarget(t *testing.T, name string, opts Options) *Target {
	t.Helper()
	return NewWithOptions(name, opts, zaptest.NewLogger(t))
}

func TestColdStartMean(t *testing.T) {
	require := require.New(t)
	target := newTarget(t, "cold-start", Options{Window: 4})

	vl := gaugeList([]string{"value"}, 10)
	status, err := target.Apply(vl)
	require.NoError(err)
	require.Equal(StatusContinue, status)
	require.Equal(2.5, vl.Values[0].Gauge)

	vl = gaugeList([]string{"value"}, 20)
	_, err = target.Apply(vl)
	require.NoError(err)
	require.Equal(7.5, vl.Values[0].Gauge)
}

func TestSteadyStateMean(t *testing.T) {
	require := require.New(t)
	target := newTarget(t, "steady-state", Options{Window: 3})

	want := []float64{1.0 / 3, 1, 2, 3, 4}
	for i, in := range []float64{1, 2, 3, 4, 5} {
		vl := gaugeList([]string{"value"}, in)
		_, err := target.Apply(vl)
		require.NoError(err)
		require.InDelta(want[i], vl.Values[0].Gauge, 1e-12, "update %d", i+1)
	}
}

func TestWindowOneIsPassThrough(t *testing.T) {
	require := require.New(t)
	target := newTarget(t, "pass-through", Options{Window: 1})

	for _, in := range []float64{3.25, -7, 0, 1e9} {
		vl := gaugeList([]string{"value"}, in)
		_, err := target.Apply(vl)
		require.NoError(err)
		require.Equal(in, vl.Values[0].Gauge)
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	require := require.New(t)
	target := newTarget(t, "independent", Options{Window: 2})

	vl := gaugeList([]string{"a", "b"}, 2, 100)
	_, err := target.Apply(vl)
	require.NoError(err)
	require.Equal([]float64{1, 50}, []float64{vl.Values[0].Gauge, vl.Values[1].Gauge})

	vl = gaugeList([]string{"a", "b"}, 4, 0)
	_, err = target.Apply(vl)
	require.NoError(err)
	require.Equal([]float64{3, 50}, []float64{vl.Values[0].Gauge, vl.Values[1].Gauge})
}

func TestSelectorFiltering(t *testing.T) {
	t.Run("allow-list", func(t *testing.T) {
		require := require.New(t)
		target := newTarget(t, "selector-list", Options{Window: 2, DataSources: []string{"temp"}})

		vl := gaugeList([]string{"temp", "humidity"}, 30, 50)
		_, err := target.Apply(vl)
		require.NoError(err)
		require.Equal(15.0, vl.Values[0].Gauge)
		require.Equal(50.0, vl.Values[1].Gauge)
	})

	t.Run("case-insensitive", func(t *testing.T) {
		require := require.New(t)
		target := newTarget(t, "selector-case", Options{Window: 2, DataSources: []string{"TEMP"}})

		vl := gaugeList([]string{"temp", "humidity"}, 30, 50)
		_, err := target.Apply(vl)
		require.NoError(err)
		require.Equal(15.0, vl.Values[0].Gauge)
		require.Equal(50.0, vl.Values[1].Gauge)
	})

	t.Run("empty list selects all", func(t *testing.T) {
		require := require.New(t)
		target := newTarget(t, "selector-empty", Options{Window: 2})

		vl := gaugeList([]string{"temp", "humidity"}, 30, 50)
		_, err := target.Apply(vl)
		require.NoError(err)
		require.Equal(15.0, vl.Values[0].Gauge)
		require.Equal(25.0, vl.Values[1].Gauge)
	})
}

func TestNonGaugePassThrough(t *testing.T) {
	require := require.New(t)

	core, logs := observer.New(zapcore.WarnLevel)
	target := NewWithOptions("non-gauge", Options{Window: 2}, zap.New(core))

	for i := 0; i < 3; i++ {
		vl := &record.ValueList{Values: []record.Value{
			record.GaugeValue("g", 4),
			{Name: "rx", Kind: record.KindDerive, Derive: 1234},
		}}
		status, err := target.Apply(vl)
		require.NoError(err)
		require.Equal(StatusContinue, status)
		require.Equal(int64(1234), vl.Values[1].Derive)
	}

	snap, ok := target.Snapshot()
	require.True(ok)
	require.Equal([]float64{0, 0}, snap.Buffers[1])
	require.Equal(0, snap.Cursors[1])
	require.Equal([]float64{4, 4}, snap.Buffers[0])

	require.Equal(3, logs.FilterMessage("Ignoring channel with unsupported data source type").Len())
	require.Equal(3.0, testutil.ToFloat64(unsupportedKinds.WithLabelValues("non-gauge", "derive")))
	require.Equal(3.0, testutil.ToFloat64(valuesAveraged.WithLabelValues("non-gauge")))
}

func TestUnselectedNonGaugeIsSilent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	target := NewWithOptions("unselected", Options{Window: 2, DataSources: []string{"g"}}, zap.New(core))

	vl := &record.ValueList{Values: []record.Value{
		record.GaugeValue("g", 4),
		{Name: "rx", Kind: record.KindCounter, Counter: 7},
	}}
	_, err := target.Apply(vl)
	require.NoError(t, err)
	require.Zero(t, logs.Len())
}

func TestDestroyIsIdempotent(t *testing.T) {
	require := require.New(t)
	target := newTarget(t, "destroy", Options{Window: 3})

	_, err := target.Apply(gaugeList([]string{"v"}, 1))
	require.NoError(err)
	require.Equal(1.0, testutil.ToFloat64(activeWindows.WithLabelValues("destroy")))

	target.Destroy()
	target.Destroy()
	require.False(target.Initialized())
	require.Equal(0.0, testutil.ToFloat64(activeWindows.WithLabelValues("destroy")))

	vl := gaugeList([]string{"v"}, 9)
	status, err := target.Apply(vl)
	require.ErrorIs(err, ErrInvalidArgument)
	require.Equal(StatusError, status)
	require.Equal(9.0, vl.Values[0].Gauge)

	var nilTarget *Target
	nilTarget.Destroy()
}

func TestApplyInvalidArguments(t *testing.T) {
	require := require.New(t)

	var nilTarget *Target
	status, err := nilTarget.Apply(gaugeList([]string{"v"}, 1))
	require.ErrorIs(err, ErrInvalidArgument)
	require.Equal(StatusError, status)

	target := newTarget(t, "nil-list", Options{Window: 2})
	_, err = target.Apply(nil)
	require.ErrorIs(err, ErrInvalidArgument)
	require.False(target.Initialized())
}

func TestChannelMismatch(t *testing.T) {
	tests := []struct {
		name string
		next *record.ValueList
	}{
		{name: "fewer channels", next: gaugeList([]string{"a"}, 5)},
		{name: "more channels", next: gaugeList([]string{"a", "b", "c"}, 5, 5, 5)},
		{name: "reordered", next: gaugeList([]string{"b", "a"}, 5, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			target := newTarget(t, "mismatch", Options{Window: 2})

			_, err := target.Apply(gaugeList([]string{"a", "b"}, 2, 2))
			require.NoError(err)

			before, _ := target.Snapshot()
			status, err := target.Apply(tt.next)
			require.ErrorIs(err, ErrChannelMismatch)
			require.Equal(StatusError, status)
			require.Equal(5.0, tt.next.Values[0].Gauge)

			after, _ := target.Snapshot()
			require.Equal(before, after)
		})
	}
}

func TestChannelNamesMatchIgnoringCase(t *testing.T) {
	target := newTarget(t, "mismatch-case", Options{Window: 2})

	_, err := target.Apply(gaugeList([]string{"Value"}, 2))
	require.NoError(t, err)
	_, err = target.Apply(gaugeList([]string{"value"}, 2))
	require.NoError(t, err)
}

func TestAllocationFailureIsSticky(t *testing.T) {
	require := require.New(t)
	target := newTarget(t, "allocation", Options{Window: maxBufferedValues})

	for i := 0; i < 2; i++ {
		vl := gaugeList([]string{"a", "b"}, 1, 2)
		status, err := target.Apply(vl)
		require.ErrorIs(err, ErrAllocation)
		require.Equal(StatusError, status)
		require.False(target.Initialized())
		require.Equal(1.0, vl.Values[0].Gauge)
	}
	require.Equal(2.0, testutil.ToFloat64(rejectedLists.WithLabelValues("allocation", reasonAllocation)))
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name    string
		block   config.Block
		want    Options
		wantErr error
	}{
		{
			name: "defaults",
			want: Options{Window: 1},
		},
		{
			name: "window and sources",
			block: config.Block{
				{Key: "window", Values: []interface{}{5}},
				{Key: "DataSource", Values: []interface{}{"a", "b"}},
				{Key: "DATASOURCE", Values: []interface{}{"c"}},
			},
			want: Options{Window: 5, DataSources: []string{"a", "b", "c"}},
		},
		{
			name:  "float window",
			block: config.Block{{Key: "Window", Values: []interface{}{3.0}}},
			want:  Options{Window: 3},
		},
		{
			name:  "unknown option is ignored",
			block: config.Block{{Key: "Color", Values: []interface{}{"blue"}}},
			want:  Options{Window: 1},
		},
		{
			name:    "window with two arguments",
			block:   config.Block{{Key: "Window", Values: []interface{}{3, 4}}},
			wantErr: ErrConfig,
		},
		{
			name:    "window with string argument",
			block:   config.Block{{Key: "Window", Values: []interface{}{"3"}}},
			wantErr: ErrConfig,
		},
		{
			name:    "window without argument",
			block:   config.Block{{Key: "Window"}},
			wantErr: ErrConfig,
		},
		{
			name:    "zero window",
			block:   config.Block{{Key: "Window", Values: []interface{}{0}}},
			wantErr: ErrConfig,
		},
		{
			name:    "fractional window",
			block:   config.Block{{Key: "Window", Values: []interface{}{2.5}}},
			wantErr: ErrConfig,
		},
		{
			name:    "data source without argument",
			block:   config.Block{{Key: "DataSource"}},
			wantErr: ErrConfig,
		},
		{
			name:    "data source with number",
			block:   config.Block{{Key: "DataSource", Values: []interface{}{"a", 2}}},
			wantErr: ErrConfig,
		},
		{
			name:    "data source with truth value",
			block:   config.Block{{Key: "DataSource", Values: []interface{}{true}}},
			wantErr: ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			target, err := New("options", tt.block, zaptest.NewLogger(t))
			if tt.wantErr != nil {
				require.ErrorIs(err, tt.wantErr)
				require.Nil(target)
				return
			}
			require.NoError(err)
			require.Equal(tt.want, target.Options())
		})
	}
}

func TestUnknownOptionIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	_, err := New("unknown", config.Block{{Key: "Colour", Values: []interface{}{"red"}}}, zap.New(core))
	require.NoError(t, err)

	entries := logs.FilterMessage("Option is not understood and will be ignored").All()
	require.Len(t, entries, 1)
	require.Equal(t, "Colour", entries[0].ContextMap()["option"])
}
