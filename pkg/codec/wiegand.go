package codec

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/backkem/rfidlock/pkg/credential"
	"github.com/pion/logging"
)

// DefaultFrameGap is the idle time after which a partial Wiegand frame is
// discarded.
const DefaultFrameGap = 25 * time.Millisecond

// Pulse is one Wiegand bit: a pulse on D0 (0) or D1 (1).
type Pulse struct {
	Bit byte
	At  time.Time
}

// PulseSource yields Wiegand pulses in arrival order.
type PulseSource interface {
	// NextPulse blocks until the next pulse arrives.
	NextPulse() (Pulse, error)
}

// WiegandConfig configures a Wiegand codec.
type WiegandConfig struct {
	// Bits is the frame length: 26 or 34. Default: 26.
	Bits int

	// FrameGap is the inter-pulse gap that resynchronises the decoder.
	// Default: 25ms.
	FrameGap time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *WiegandConfig) Validate() error {
	if c.Bits != 26 && c.Bits != 34 {
		return ErrInvalidBits
	}
	return nil
}

func (c *WiegandConfig) applyDefaults() {
	if c.Bits == 0 {
		c.Bits = 26
	}
	if c.FrameGap == 0 {
		c.FrameGap = DefaultFrameGap
	}
}

// Wiegand assembles pulses into frames.
//
// Frame layout: one leading even-parity bit over the first half of the
// payload, the payload (24 or 32 bits, MSB first), one trailing odd-parity
// bit over the second half. The payload is right-aligned into the 5-byte ID
// and the checksum is computed.
type Wiegand struct {
	src    PulseSource
	config WiegandConfig
	log    logging.LeveledLogger

	bits []byte
	last time.Time
}

// NewWiegand creates a Wiegand codec reading pulses from src.
func NewWiegand(src PulseSource, config WiegandConfig) (*Wiegand, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	w := &Wiegand{
		src:    src,
		config: config,
		bits:   make([]byte, 0, config.Bits),
	}
	if config.LoggerFactory != nil {
		w.log = config.LoggerFactory.NewLogger("codec")
	}
	return w, nil
}

// ReadFrame implements Codec.
func (w *Wiegand) ReadFrame() (Frame, error) {
	for {
		p, err := w.src.NextPulse()
		if err != nil {
			return Frame{}, err
		}

		if len(w.bits) > 0 && p.At.Sub(w.last) > w.config.FrameGap {
			if w.log != nil {
				w.log.Debugf("discarding %d-bit partial frame after gap", len(w.bits))
			}
			w.bits = w.bits[:0]
		}
		w.last = p.At
		w.bits = append(w.bits, p.Bit&1)

		if len(w.bits) < w.config.Bits {
			continue
		}

		frame, err := decodeWiegand(w.bits)
		w.bits = w.bits[:0]
		return frame, err
	}
}

func decodeWiegand(bits []byte) (Frame, error) {
	n := len(bits)
	payload := bits[1 : n-1]
	half := len(payload) / 2

	// Leading bit makes the first half even; trailing bit makes the second
	// half odd.
	if (bits[0]+ones(payload[:half]))%2 != 0 {
		return Frame{}, fmt.Errorf("%w: leading parity", ErrMalformedFrame)
	}
	if (bits[n-1]+ones(payload[half:]))%2 != 1 {
		return Frame{}, fmt.Errorf("%w: trailing parity", ErrMalformedFrame)
	}

	var id credential.ID
	offset := credential.IDSize - len(payload)/8
	for i, b := range payload {
		id[offset+i/8] |= b << (7 - uint(i%8))
	}
	return Frame{ID: id, Checksum: id.Checksum()}, nil
}

func ones(bits []byte) byte {
	var n byte
	for _, b := range bits {
		n += b
	}
	return n
}

// EncodeWiegand returns the pulse bits for the low payload bytes of id.
// bits must be 26 or 34.
func EncodeWiegand(id credential.ID, bits int) []byte {
	payloadBytes := (bits - 2) / 8
	payload := make([]byte, 0, bits-2)
	for _, b := range id[credential.IDSize-payloadBytes:] {
		for i := 7; i >= 0; i-- {
			payload = append(payload, (b>>uint(i))&1)
		}
	}
	half := len(payload) / 2

	out := make([]byte, 0, bits)
	out = append(out, ones(payload[:half])%2)
	out = append(out, payload...)
	out = append(out, 1-ones(payload[half:])%2)
	return out
}

// BitStream is a PulseSource reading ASCII '0' and '1' characters, one per
// pulse, as emitted by a Wiegand-to-serial bridge. Other bytes are ignored.
// Each pulse is stamped with the time it was read.
type BitStream struct {
	r   *bufio.Reader
	now func() time.Time
}

// NewBitStream creates a BitStream over r.
func NewBitStream(r io.Reader) *BitStream {
	return &BitStream{r: bufio.NewReader(r), now: time.Now}
}

// NextPulse implements PulseSource.
func (s *BitStream) NextPulse() (Pulse, error) {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return Pulse{}, err
		}
		switch b {
		case '0', '1':
			return Pulse{Bit: b - '0', At: s.now()}, nil
		}
	}
}

// Verify implementations.
var (
	_ Codec       = (*Wiegand)(nil)
	_ PulseSource = (*BitStream)(nil)
)
