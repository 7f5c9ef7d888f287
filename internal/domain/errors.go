package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrStoreUnavailable = errors.New("log store unavailable")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrUnknownBand      = errors.New("unknown band")
	ErrNoStreams        = errors.New("no matching streams")
)
