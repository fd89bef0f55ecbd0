package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrDuplicateReservation = errors.New("reservation already exists")

	// ErrVersionConflict means the stored Version moved since the read.
	ErrVersionConflict = errors.New("reservation version conflict")
)
