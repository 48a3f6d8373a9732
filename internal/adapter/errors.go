package adapter

import (
	"errors"
)

var (
	// ErrNotFound is returned when the target folder does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrQuotaExceeded is returned when the account has no room for the upload.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)
