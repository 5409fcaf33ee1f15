package docsource

import "errors"

var (
	ErrInvalidConfig = errors.New("docsource: invalid store configuration")
	ErrEmptyName     = errors.New("docsource: content name is required")
	ErrStoreFailed   = errors.New("docsource: failed to store content")
	ErrBlobTooLarge  = errors.New("docsource: content exceeds the maximum blob size")
)
