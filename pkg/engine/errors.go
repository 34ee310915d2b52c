package engine

import "errors"

// ErrInvalidInput reports scoring input that is empty after normalization or
// carries an unknown channel. The transport layer pre-validates, but the core
// still rejects cleanly rather than scoring empty text.
var ErrInvalidInput = errors.New("invalid scoring input")
