// Package gpio provides digital input and output pins.
//
// The door only needs three kinds of line: a button input, a relay output
// and LED outputs. Pins report and accept electrical levels (true = high);
// ActiveLow wrappers translate to logical levels where the wiring is
// inverted. Sysfs pins drive real hardware, Fake pins serve tests and the
// simulator.
package gpio

import "errors"

// Errors returned by the gpio package.
var (
	// ErrInvalidPin is returned for a negative pin number.
	ErrInvalidPin = errors.New("gpio: invalid pin number")

	// ErrInvalidValue is returned when a value file holds neither 0 nor 1.
	ErrInvalidValue = errors.New("gpio: invalid value")
)

// InputPin is a readable line.
type InputPin interface {
	// Read returns the current level.
	Read() (bool, error)
}

// OutputPin is a writable line.
type OutputPin interface {
	// Write drives the line to level.
	Write(level bool) error
}

// ActiveLowInput inverts an input.
type ActiveLowInput struct {
	Pin InputPin
}

// Read implements InputPin.
func (p ActiveLowInput) Read() (bool, error) {
	v, err := p.Pin.Read()
	return !v, err
}

// ActiveLowOutput inverts an output.
type ActiveLowOutput struct {
	Pin OutputPin
}

// Write implements OutputPin.
func (p ActiveLowOutput) Write(level bool) error {
	return p.Pin.Write(!level)
}

// Verify wrappers implement the pin interfaces.
var (
	_ InputPin  = ActiveLowInput{}
	_ OutputPin = ActiveLowOutput{}
)
