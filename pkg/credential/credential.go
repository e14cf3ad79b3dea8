// Package credential defines the RFID credential value type.
//
// A Credential is the decoded form of a tag presented to the reader: a
// fixed-width 5-byte identifier plus a one-byte checksum computed over the
// identifier. Two credentials are equal when their identifiers are equal;
// the checksum only tells whether the frame survived transport intact.
//
// The checksum is the XOR of the identifier bytes, which is what EM4100
// serial readers (RDM6300 and compatibles) transmit.
package credential

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// IDSize is the identifier length in bytes.
const IDSize = 5

// Errors returned by the credential package.
var (
	// ErrChecksum is returned when the checksum does not match the identifier.
	ErrChecksum = errors.New("credential: checksum mismatch")

	// ErrInvalidID is returned when a textual identifier cannot be parsed.
	ErrInvalidID = errors.New("credential: invalid identifier")
)

// ID is a tag identifier.
type ID [IDSize]byte

// String returns the identifier as upper-case hex.
func (id ID) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// IsZero returns true if every byte of the identifier is zero.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Checksum returns the XOR of the identifier bytes.
func (id ID) Checksum() byte {
	var sum byte
	for _, b := range id {
		sum ^= b
	}
	return sum
}

// ParseID parses a 10 character hex identifier. Separators (':', '-', ' ')
// are ignored.
func ParseID(s string) (ID, error) {
	var id ID
	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(strings.TrimSpace(s))
	if len(clean) != IDSize*2 {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	if _, err := hex.Decode(id[:], []byte(clean)); err != nil {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// Credential is a decoded tag: identifier plus the checksum that arrived
// with it.
type Credential struct {
	ID       ID
	Checksum byte
}

// New returns a credential with a correct checksum for id.
func New(id ID) Credential {
	return Credential{ID: id, Checksum: id.Checksum()}
}

// Valid returns true if the checksum matches the identifier.
func (c Credential) Valid() bool {
	return c.Checksum == c.ID.Checksum()
}

// Verify returns ErrChecksum if the checksum does not match.
func (c Credential) Verify() error {
	if !c.Valid() {
		return fmt.Errorf("%w: id %s sum %02X want %02X", ErrChecksum, c.ID, c.Checksum, c.ID.Checksum())
	}
	return nil
}

// Equal compares identifiers only.
func (c Credential) Equal(other Credential) bool {
	return c.ID == other.ID
}

// String returns the identifier in hex.
func (c Credential) String() string {
	return c.ID.String()
}
