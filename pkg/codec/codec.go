// Package codec turns raw reader input into credential frames.
//
// Two backends are provided: Serial decodes the EM4100 ASCII framing used by
// 125 kHz serial readers (RDM6300 and similar), and Wiegand assembles
// 26- or 34-bit Wiegand pulse trains. Both implement Codec, so the door loop
// is written once against the interface.
package codec

import (
	"errors"

	"github.com/backkem/rfidlock/pkg/credential"
)

// Errors returned by the codec package.
var (
	// ErrMalformedFrame is returned for a frame that cannot be decoded.
	// The caller drops it and keeps reading.
	ErrMalformedFrame = errors.New("codec: malformed frame")

	// ErrInvalidBits is returned for an unsupported Wiegand frame length.
	ErrInvalidBits = errors.New("codec: wiegand bits must be 26 or 34")

	// ErrSourceRequired is returned when no pulse source is given.
	ErrSourceRequired = errors.New("codec: pulse source is required")
)

// Frame is one decoded reader frame.
//
// Checksum is the value carried by (or computed for) the frame. It is not
// verified here; the access machine recomputes it.
type Frame struct {
	ID       credential.ID
	Checksum byte
}

// Credential converts the frame to a credential.
func (f Frame) Credential() credential.Credential {
	return credential.Credential{ID: f.ID, Checksum: f.Checksum}
}

// Codec reads frames from a reader backend.
type Codec interface {
	// ReadFrame blocks until one complete frame is available.
	// A malformed frame returns an error wrapping ErrMalformedFrame; any
	// other error means the underlying source failed or was closed.
	ReadFrame() (Frame, error)
}
