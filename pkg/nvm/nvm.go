// Package nvm provides byte-addressable non-volatile memory.
//
// Memory models an EEPROM-like device: a fixed number of byte cells that
// keep their value across power cycles. Cells that were never written read
// as zero. Every Write is durable when it returns; implementations flush to
// their backing medium on each call and never cache writes.
//
// Three implementations are provided:
//
//   - RAM: volatile, for tests and the simulator
//   - File: a flat image file, locked for exclusive use and synced per write
//   - SQLite: one row per written cell in a SQLite database
package nvm

import (
	"errors"
	"fmt"
)

// Errors returned by the nvm package.
var (
	// ErrOutOfBounds is returned when an access falls outside the memory.
	ErrOutOfBounds = errors.New("nvm: access out of bounds")

	// ErrInvalidSize is returned when a memory is created with a bad size.
	ErrInvalidSize = errors.New("nvm: invalid size")

	// ErrLocked is returned when an image is already in use by another process.
	ErrLocked = errors.New("nvm: image locked by another process")

	// ErrClosed is returned when using a closed memory.
	ErrClosed = errors.New("nvm: memory closed")
)

// Memory is byte-addressable non-volatile storage.
type Memory interface {
	// Len returns the number of addressable bytes.
	Len() int

	// Read fills p with the bytes starting at addr.
	Read(addr int, p []byte) error

	// Write stores p starting at addr. The data is durable on return.
	Write(addr int, p []byte) error

	// Close releases the backing medium.
	Close() error
}

// checkBounds validates an access of n bytes at addr against size.
func checkBounds(addr, n, size int) error {
	if addr < 0 || n < 0 || addr+n > size {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfBounds, addr, addr+n, size)
	}
	return nil
}
