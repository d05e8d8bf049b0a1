package storage

import "errors"

// ErrNotFound is returned when a remote path does not exist.
var ErrNotFound = errors.New("remote path not found")
