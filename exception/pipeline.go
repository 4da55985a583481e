package exception

import "errors"

// Pipeline errors. Every stage wraps its underlying cause with one of these
// so callers can classify a failed run with errors.Is.
var (
	ErrNetwork        = errors.New("network error")
	ErrResponseFormat = errors.New("response format error")
	ErrSchema         = errors.New("schema error")
	ErrConnection     = errors.New("warehouse connection error")
	ErrWrite          = errors.New("warehouse write error")
	ErrDelivery       = errors.New("delivery error")
)

// Configuration errors
var (
	ErrConfig = errors.New("invalid configuration")
)
