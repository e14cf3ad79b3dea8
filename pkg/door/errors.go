package door

import "errors"

// Package-level errors.
var (
	// ErrMemoryRequired is returned when Config.Memory is nil.
	ErrMemoryRequired = errors.New("door: memory is required")

	// ErrCodecRequired is returned when Config.Codec is nil.
	ErrCodecRequired = errors.New("door: codec is required")

	// ErrAlreadyStarted is returned when Run is called twice.
	ErrAlreadyStarted = errors.New("door: already started")

	// ErrNotStarted is returned when Stop is called on a door that is not running.
	ErrNotStarted = errors.New("door: not started")

	// ErrAlreadyStopped is returned when Run or Stop is called after the loop exited.
	ErrAlreadyStopped = errors.New("door: already stopped")

	// ErrReaderFailed wraps a codec error that ended the loop.
	ErrReaderFailed = errors.New("door: reader failed")
)
