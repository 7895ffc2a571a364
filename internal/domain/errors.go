package domain

import "errors"

var (
	// ErrNotFound is returned when a session, occurrence, call session or record does not
	// exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange is returned when a coordinate lies outside the center's radius.
	ErrOutOfRange = errors.New("location outside center radius")
	// ErrWindowClosed is returned outside the marking window around an occurrence start.
	ErrWindowClosed = errors.New("attendance window closed")
	// ErrDuplicate is returned when a qualifying attendance record already exists.
	ErrDuplicate = errors.New("attendance already recorded")
	// ErrValidation wraps malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrStorageUnavailable marks transient persistence failures. Retrying the request is safe.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrBackupConsumed is returned when a deletion backup was already restored.
	ErrBackupConsumed = errors.New("backup already restored")
)
