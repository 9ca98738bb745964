package sma

import "errors"

var (
	ErrConfig          = errors.New("sma: invalid target configuration")
	ErrAllocation      = errors.New("sma: failed to allocate window buffers")
	ErrUnsupportedKind = errors.New("sma: unsupported data source type")
	ErrInvalidArgument = errors.New("sma: invalid argument")
	ErrChannelMismatch = errors.New("sma: channel set differs from the first value list")
	ErrInvalidSnapshot = errors.New("sma: snapshot does not fit target")
)
