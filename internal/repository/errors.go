package repository

import "errors"

// ErrNotFound is returned when a requested record does not exist. Handlers
// map it to HTTP 404; everything else propagates unmodified.
var ErrNotFound = errors.New("record not found")
