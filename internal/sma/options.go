package sma

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/smafilter/internal/config"
)

const (
	optionWindow     = "Window"
	optionDataSource = "DataSource"

	defaultWindow = 1
)

// Options is the validated, immutable configuration of a target.
type Options struct {
	Window      int
	DataSources []string
}

// ParseOptions validates an option block. Unknown options are logged and ignored;
// a malformed Window or DataSource option fails with ErrConfig.
func ParseOptions(block config.Block, logger *zap.Logger) (Options, error) {
	opts := Options{Window: defaultWindow}

	for _, item := range block {
		var err error
		switch {
		case item.Is(optionWindow):
			err = setWindow(&opts, item)
		case item.Is(optionDataSource):
			err = addDataSources(&opts, item)
		default:
			logger.Warn("Option is not understood and will be ignored",
				zap.String("option", item.Key),
			)
		}
		if err != nil {
			return Options{}, err
		}
	}

	logger.Debug("Target options parsed",
		zap.Int("window", opts.Window),
		zap.Strings("data_sources", opts.DataSources),
	)
	return opts, nil
}

func setWindow(opts *Options, item config.Item) error {
	n, ok := item.NumberAt(0)
	if len(item.Values) != 1 || !ok {
		return fmt.Errorf("%w: the %q option needs exactly one numeric argument", ErrConfig, item.Key)
	}
	if n < 1 || n != math.Trunc(n) || n > maxBufferedValues {
		return fmt.Errorf("%w: the %q option must be a positive integer up to %d, got %g",
			ErrConfig, item.Key, maxBufferedValues, n)
	}
	opts.Window = int(n)
	return nil
}

func addDataSources(opts *Options, item config.Item) error {
	if len(item.Values) < 1 {
		return fmt.Errorf("%w: the %q option needs at least one argument", ErrConfig, item.Key)
	}
	for i := range item.Values {
		if t := item.TypeAt(i); t != config.TypeString {
			return fmt.Errorf("%w: the %q option accepts only string arguments (argument %d is a %s)",
				ErrConfig, item.Key, i+1, t)
		}
	}
	for i := range item.Values {
		s, _ := item.StringAt(i)
		opts.DataSources = append(opts.DataSources, s)
	}
	return nil
}
