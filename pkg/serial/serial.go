// Package serial opens a tty for a serial RFID reader in raw 8N1 mode.
package serial

import (
	"errors"
	"io"
)

// DefaultBaud is the rate used by EM4100 serial readers.
const DefaultBaud = 9600

// Errors returned by the serial package.
var (
	// ErrUnsupported is returned on platforms without termios support.
	ErrUnsupported = errors.New("serial: unsupported platform")

	// ErrInvalidBaud is returned for a rate with no termios constant.
	ErrInvalidBaud = errors.New("serial: unsupported baud rate")
)

// Port is an open serial device.
type Port interface {
	io.ReadWriteCloser
}
