package errors

import "errors"

var (
	ErrRuleNotFound = errors.New("pricing rule not found")

	ErrDuplicateRule = errors.New("pricing rule already exists")
)
