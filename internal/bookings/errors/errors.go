package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrDuplicateBooking = errors.New("booking already exists for reservation")

	ErrVersionConflict = errors.New("booking was modified concurrently")
)
