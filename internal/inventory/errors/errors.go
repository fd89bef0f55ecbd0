package errors

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")

	ErrOverrideNotFound = errors.New("availability override not found")

	ErrLockNotFound = errors.New("availability lock not found")

	// ErrLockNotActive is returned by conditional lock writes that found the
	// lock but not in the active state.
	ErrLockNotActive = errors.New("availability lock is not active")

	// ErrVersionConflict means a compare-and-swap on a room token lost.
	ErrVersionConflict = errors.New("room version conflict")

	ErrDuplicateRoom = errors.New("room already exists")
)
