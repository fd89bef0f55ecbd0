package errors

import "errors"

var (
	ErrPolicyNotFound = errors.New("refund policy not found")

	ErrDuplicatePolicy = errors.New("refund policy already exists")

	ErrRequestNotFound = errors.New("refund request not found")

	// ErrStatusConflict means the request left the expected status.
	ErrStatusConflict = errors.New("refund request status changed concurrently")
)
