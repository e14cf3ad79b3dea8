// Package debounce filters a noisy button line into stable edges and
// classifies sustained presses into duration tiers.
//
// The raw line is sampled once per loop iteration. A raw change restarts
// the settle timer; the level only becomes stable after it has been constant
// for Interval. While the stable level is "pressed", the hold duration is
// compared against two ascending thresholds:
//
//	hold >= FactoryResetHold  -> TierFactoryReset
//	hold >= MasterSwapHold    -> TierMasterSwap
//
// Each tier fires at most once per press. The latches clear on release.
// A press released before MasterSwapHold produces only edges.
package debounce

import (
	"errors"
	"time"

	"github.com/pion/logging"
)

// Default timings.
const (
	DefaultInterval         = 50 * time.Millisecond
	DefaultMasterSwapHold   = 5 * time.Second
	DefaultFactoryResetHold = 10 * time.Second
)

// ErrInvalidThresholds is returned when FactoryResetHold <= MasterSwapHold.
var ErrInvalidThresholds = errors.New("debounce: factory reset hold must exceed master swap hold")

// Edge is a change of the stable level.
type Edge int

const (
	// EdgeNone means the stable level did not change.
	EdgeNone Edge = iota

	// EdgePressed means the button became stably pressed.
	EdgePressed

	// EdgeReleased means the button became stably released.
	EdgeReleased
)

// String returns a human-readable name for the edge.
func (e Edge) String() string {
	switch e {
	case EdgeNone:
		return "None"
	case EdgePressed:
		return "Pressed"
	case EdgeReleased:
		return "Released"
	default:
		return "Unknown"
	}
}

// Tier is the classification of a sustained press.
type Tier int

const (
	// TierNone means no threshold was crossed this sample.
	TierNone Tier = iota

	// TierMasterSwap requests that the next credential becomes master.
	TierMasterSwap

	// TierFactoryReset requests clearing the whole store.
	TierFactoryReset
)

// String returns a human-readable name for the tier.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "None"
	case TierMasterSwap:
		return "MasterSwap"
	case TierFactoryReset:
		return "FactoryReset"
	default:
		return "Unknown"
	}
}

// Event is the outcome of one sample.
type Event struct {
	Edge Edge
	Tier Tier
}

// Config configures a Guard.
type Config struct {
	// Interval is how long the raw level must be constant to become stable.
	// Default: 50ms.
	Interval time.Duration

	// MasterSwapHold is the shorter hold threshold. Default: 5s.
	MasterSwapHold time.Duration

	// FactoryResetHold is the longer hold threshold. Default: 10s.
	FactoryResetHold time.Duration

	// ActiveLow means a low level (false) is "pressed".
	ActiveLow bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns the default configuration for an active-low button.
func DefaultConfig() Config {
	return Config{
		Interval:         DefaultInterval,
		MasterSwapHold:   DefaultMasterSwapHold,
		FactoryResetHold: DefaultFactoryResetHold,
		ActiveLow:        true,
	}
}

// Guard is the debounce state for one input line.
//
// A Guard is not safe for concurrent use; it belongs to the polling loop.
type Guard struct {
	config Config
	log    logging.LeveledLogger

	started    bool
	lastRaw    bool
	lastChange time.Time
	stable     bool // pressed
	pressStart time.Time
	swapFired  bool
	resetFired bool
}

// New creates a Guard. Zero durations take their defaults.
func New(config Config) (*Guard, error) {
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.MasterSwapHold == 0 {
		config.MasterSwapHold = DefaultMasterSwapHold
	}
	if config.FactoryResetHold == 0 {
		config.FactoryResetHold = DefaultFactoryResetHold
	}
	if config.FactoryResetHold <= config.MasterSwapHold {
		return nil, ErrInvalidThresholds
	}

	g := &Guard{config: config}
	if config.LoggerFactory != nil {
		g.log = config.LoggerFactory.NewLogger("debounce")
	}
	return g, nil
}

// Pressed returns the stable level.
func (g *Guard) Pressed() bool {
	return g.stable
}

// Sample feeds one raw reading of the line taken at now.
func (g *Guard) Sample(level bool, now time.Time) Event {
	pressed := level != g.config.ActiveLow

	if !g.started {
		// The first sample only seeds the filter; the button counts as
		// released until the level has settled.
		g.started = true
		g.lastRaw = pressed
		g.lastChange = now
	}

	if pressed != g.lastRaw {
		g.lastRaw = pressed
		g.lastChange = now
	}

	var ev Event

	if g.lastRaw != g.stable && now.Sub(g.lastChange) >= g.config.Interval {
		g.stable = g.lastRaw
		if g.stable {
			ev.Edge = EdgePressed
			// The press began when the raw level last changed.
			g.pressStart = g.lastChange
		} else {
			ev.Edge = EdgeReleased
			g.swapFired = false
			g.resetFired = false
		}
		if g.log != nil {
			g.log.Debugf("button %s", ev.Edge)
		}
	}

	if !g.stable {
		return ev
	}

	held := now.Sub(g.pressStart)
	switch {
	case held >= g.config.FactoryResetHold && !g.resetFired:
		g.resetFired = true
		g.swapFired = true
		ev.Tier = TierFactoryReset
	case held >= g.config.MasterSwapHold && !g.swapFired:
		g.swapFired = true
		ev.Tier = TierMasterSwap
	}

	if ev.Tier != TierNone && g.log != nil {
		g.log.Infof("button held %s: %s", held, ev.Tier)
	}
	return ev
}
