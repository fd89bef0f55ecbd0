package errors

import "errors"

var (
	ErrEntryNotFound = errors.New("price cache entry not found")
)
