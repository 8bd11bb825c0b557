package domain

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownKind       = errors.New("unknown task kind")
	ErrUnknownResult     = errors.New("unknown result code")
)
