package codec

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/backkem/rfidlock/pkg/credential"
)

// EM4100 ASCII framing.
const (
	STX = 0x02
	ETX = 0x03

	// hexLen is the number of hex digits between STX and ETX (ID + checksum).
	hexLen = 2 * (credential.IDSize + 1)

	// maxFrameLen bounds a frame body including an optional CR LF.
	maxFrameLen = hexLen + 2
)

// Serial decodes EM4100 ASCII frames:
//
//	STX | 10 hex digits ID | 2 hex digits checksum | [CR LF] | ETX
//
// Bytes outside a frame are skipped. A new STX inside a frame restarts it.
type Serial struct {
	r *bufio.Reader
}

// NewSerial creates a serial codec reading from r.
func NewSerial(r io.Reader) *Serial {
	return &Serial{r: bufio.NewReader(r)}
}

// ReadFrame implements Codec.
func (s *Serial) ReadFrame() (Frame, error) {
	// Hunt for the start byte.
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if b == STX {
			break
		}
	}

	body := make([]byte, 0, maxFrameLen)
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		switch b {
		case STX:
			body = body[:0]
			continue
		case ETX:
			return parseSerialBody(body)
		}
		if len(body) == maxFrameLen {
			// Overlong: drop it and let the next call resynchronise.
			return Frame{}, fmt.Errorf("%w: frame longer than %d bytes", ErrMalformedFrame, maxFrameLen)
		}
		body = append(body, b)
	}
}

func parseSerialBody(body []byte) (Frame, error) {
	if n := len(body); n >= 2 && body[n-2] == '\r' && body[n-1] == '\n' {
		body = body[:n-2]
	}
	if len(body) != hexLen {
		return Frame{}, fmt.Errorf("%w: %d hex digits, want %d", ErrMalformedFrame, len(body), hexLen)
	}

	var raw [credential.IDSize + 1]byte
	if _, err := hex.Decode(raw[:], body); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var f Frame
	copy(f.ID[:], raw[:credential.IDSize])
	f.Checksum = raw[credential.IDSize]
	return f, nil
}

// EncodeSerial returns the EM4100 ASCII frame for c, as emitted by a reader.
func EncodeSerial(c credential.Credential) []byte {
	var raw [credential.IDSize + 1]byte
	copy(raw[:], c.ID[:])
	raw[credential.IDSize] = c.Checksum

	out := make([]byte, 0, hexLen+2)
	out = append(out, STX)
	out = append(out, []byte(fmt.Sprintf("%X", raw[:]))...)
	out = append(out, ETX)
	return out
}

// Verify Serial implements Codec.
var _ Codec = (*Serial)(nil)
