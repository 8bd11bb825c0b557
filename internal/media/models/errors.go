package models

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidArgument  = errors.New("invalid arguments")
	ErrQueueUnavailable = errors.New("queue unavailable")
)
