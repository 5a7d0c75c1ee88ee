package database

import "errors"

// ErrNotFound is returned when a requested row does not exist (or only an
// archived version of it does).
var ErrNotFound = errors.New("database: not found")
