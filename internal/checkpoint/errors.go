package checkpoint

import "errors"

var (
	ErrRedisUnavailable = errors.New("checkpoint redis is unavailable")
	ErrCorruptSnapshot  = errors.New("stored snapshot cannot be decoded")
)
