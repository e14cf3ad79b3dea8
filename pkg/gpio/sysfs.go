package gpio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultSysfsRoot is the Linux sysfs GPIO class directory.
const DefaultSysfsRoot = "/sys/class/gpio"

// Direction is a pin direction.
type Direction int

const (
	// DirectionIn configures an input.
	DirectionIn Direction = iota

	// DirectionOut configures an output.
	DirectionOut
)

// String returns the sysfs name for the direction.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	default:
		return "Unknown"
	}
}

// Sysfs is a pin driven through the legacy sysfs interface.
type Sysfs struct {
	num   int
	value string
}

// OpenSysfs exports pin num under root (DefaultSysfsRoot when empty) and
// sets its direction. An already exported pin is reused.
func OpenSysfs(root string, num int, dir Direction) (*Sysfs, error) {
	if num < 0 {
		return nil, ErrInvalidPin
	}
	if root == "" {
		root = DefaultSysfsRoot
	}

	pinDir := filepath.Join(root, "gpio"+strconv.Itoa(num))
	if _, err := os.Stat(pinDir); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(num)), 0o644); err != nil {
			return nil, fmt.Errorf("gpio: export %d: %w", num, err)
		}
	}

	if err := os.WriteFile(filepath.Join(pinDir, "direction"), []byte(dir.String()), 0o644); err != nil {
		return nil, fmt.Errorf("gpio: set direction of %d: %w", num, err)
	}

	return &Sysfs{
		num:   num,
		value: filepath.Join(pinDir, "value"),
	}, nil
}

// Read implements InputPin.
func (p *Sysfs) Read() (bool, error) {
	b, err := os.ReadFile(p.value)
	if err != nil {
		return false, fmt.Errorf("gpio: read %d: %w", p.num, err)
	}
	switch string(bytes.TrimSpace(b)) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("%w: pin %d: %q", ErrInvalidValue, p.num, b)
	}
}

// Write implements OutputPin.
func (p *Sysfs) Write(level bool) error {
	v := []byte("0")
	if level {
		v = []byte("1")
	}
	if err := os.WriteFile(p.value, v, 0o644); err != nil {
		return fmt.Errorf("gpio: write %d: %w", p.num, err)
	}
	return nil
}

// Num returns the pin number.
func (p *Sysfs) Num() int {
	return p.num
}

// Verify Sysfs implements the pin interfaces.
var (
	_ InputPin  = (*Sysfs)(nil)
	_ OutputPin = (*Sysfs)(nil)
)
