// Package lock drives the door lock relay.
//
// Energized means unlocked: the relay powers an electric strike for the
// hold time and drops out afterwards, so the door stays locked on power loss.
package lock

import (
	"errors"
	"sync"

	"github.com/backkem/rfidlock/pkg/gpio"
	"github.com/pion/logging"
)

// ErrOutputRequired is returned when Config.Output is nil.
var ErrOutputRequired = errors.New("lock: output pin is required")

// StateChangeCallback is called when the relay changes state.
type StateChangeCallback func(energized bool)

// Config configures a Relay.
type Config struct {
	// Output drives the relay coil. Required.
	Output gpio.OutputPin

	// OnStateChange is called after each state change (optional).
	OnStateChange StateChangeCallback

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Relay is a lock actuator over a GPIO output.
type Relay struct {
	config Config
	log    logging.LeveledLogger

	mu        sync.RWMutex
	energized bool
}

// New creates a Relay and drives it de-energized.
func New(config Config) (*Relay, error) {
	if config.Output == nil {
		return nil, ErrOutputRequired
	}

	r := &Relay{config: config}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("lock")
	}

	if err := config.Output.Write(false); err != nil {
		return nil, err
	}
	return r, nil
}

// Energize implements access.Actuator.
func (r *Relay) Energize() error {
	return r.set(true)
}

// DeEnergize implements access.Actuator.
func (r *Relay) DeEnergize() error {
	return r.set(false)
}

// Energized returns the current state.
func (r *Relay) Energized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.energized
}

func (r *Relay) set(on bool) error {
	r.mu.Lock()
	if r.energized == on {
		r.mu.Unlock()
		return nil
	}
	if err := r.config.Output.Write(on); err != nil {
		r.mu.Unlock()
		return err
	}
	r.energized = on
	r.mu.Unlock()

	if r.log != nil {
		if on {
			r.log.Info("unlocked")
		} else {
			r.log.Info("locked")
		}
	}
	if r.config.OnStateChange != nil {
		r.config.OnStateChange(on)
	}
	return nil
}
