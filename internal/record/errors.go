package record

import "errors"

var (
	ErrJSONUnmarshalFailed = errors.New("failed to unmarshal value list JSON")
	ErrLengthMismatch      = errors.New("values, dstypes and dsnames differ in length")
	ErrUnknownKind         = errors.New("unknown data source type")
	ErrInvalidValue        = errors.New("value does not match its data source type")
)
