package door

import (
	"time"

	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/codec"
	"github.com/backkem/rfidlock/pkg/debounce"
	"github.com/backkem/rfidlock/pkg/gpio"
	"github.com/backkem/rfidlock/pkg/nvm"
	"github.com/pion/logging"
)

// DefaultPollInterval is the loop period.
const DefaultPollInterval = 10 * time.Millisecond

// Config holds all configuration for a Door.
type Config struct {
	// Storage - Required
	Memory   nvm.Memory // Non-volatile image holding the record store
	Capacity int        // Record slots, including the master (0: as many as fit)

	// Reader - Required
	Codec codec.Codec

	// Hardware - Optional
	Button    gpio.InputPin    // Raw button line, sampled every iteration
	Actuator  access.Actuator  // Lock output
	Indicator access.Indicator // Intent renderer

	// Timing - Optional (uses defaults if zero)
	DoorDelay     time.Duration   // Lock hold after an unlock (default: 3s)
	PendingWindow time.Duration   // Second master swipe window (default: DoorDelay)
	AdminTimeout  time.Duration   // Admin inactivity timeout (default: 10s)
	PollInterval  time.Duration   // Loop period (default: 10ms)
	Debounce      debounce.Config // Button filter and hold tiers

	// Callbacks - Optional
	OnStateChanged func(state State)
	OnModeChanged  func(from, to access.Mode)

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Memory == nil {
		return ErrMemoryRequired
	}
	if c.Codec == nil {
		return ErrCodecRequired
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Debounce == (debounce.Config{}) {
		c.Debounce = debounce.DefaultConfig()
	}
	if c.Debounce.LoggerFactory == nil {
		c.Debounce.LoggerFactory = c.LoggerFactory
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
