package runstore

import "errors"

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = errors.New("runstore: run not found")
