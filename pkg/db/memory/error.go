package memory

import "errors"

var ErrDuplicateKey = errors.New("duplicate key")
