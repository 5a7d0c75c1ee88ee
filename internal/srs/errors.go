package srs

import (
	"errors"

	"github.com/example/lexibot/internal/database"
)

var (
	// ErrInvalidArgument is returned for malformed ratings or a card side
	// the card's direction does not track.
	ErrInvalidArgument = errors.New("srs: invalid argument")

	// ErrAccessDenied is returned for ownership, visibility and level-lock
	// violations.
	ErrAccessDenied = errors.New("srs: access denied")

	// ErrInvalidState is returned when grading is attempted on a card that
	// cannot be graded (informational direction, or missing content).
	ErrInvalidState = errors.New("srs: invalid state")

	// ErrNotFound aliases the storage-level sentinel so callers can match
	// missing cards and progress with a single errors.Is check.
	ErrNotFound = database.ErrNotFound
)

// errInvalidMemoryState marks a stored memory state the scheduler cannot use;
// it triggers the fixed fallback schedule and is never returned to callers.
var errInvalidMemoryState = errors.New("srs: invalid memory state")
