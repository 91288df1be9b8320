package store

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrActivityNotFound = errors.New("activity not found")
)
