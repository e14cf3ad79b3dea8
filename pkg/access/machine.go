// Package access implements the door access-control state machine.
//
// A Machine consumes decoded credentials, debounced button tiers and the
// current time, queries and mutates the credential store, and emits intents
// to an Indicator and energize/de-energize calls to an Actuator.
//
// Modes:
//
//	Uninitialized --any valid credential (becomes master)--> Armed
//	Armed         --master--> AdminPending
//	AdminPending  --master within PendingWindow--> AdminMode
//	AdminPending  --member / unknown / window elapsed--> Armed
//	AdminMode     --master--> Armed
//	AdminMode     --member--> remove, stay
//	AdminMode     --unknown--> add, stay
//	AdminMode     --AdminTimeout without activity--> Armed
//	any           --button tier--> Uninitialized
//
// Every unlock refreshes a single door timestamp; Tick de-energizes the
// actuator once DoorDelay has elapsed, whatever the mode. Timeouts are all
// "elapsed >= threshold" and are evaluated when Tick (or Step) is called.
//
// A Machine is owned by one loop and is not safe for concurrent use.
package access

import (
	"errors"
	"time"

	"github.com/backkem/rfidlock/pkg/credential"
	"github.com/backkem/rfidlock/pkg/debounce"
	"github.com/backkem/rfidlock/pkg/store"
	"github.com/pion/logging"
)

// Default timings.
const (
	DefaultDoorDelay    = 3 * time.Second
	DefaultAdminTimeout = 10 * time.Second
)

// Errors returned by the access package.
var (
	// ErrStoreRequired is returned when Config.Store is nil.
	ErrStoreRequired = errors.New("access: store is required")

	// ErrInvalidTiming is returned for negative durations.
	ErrInvalidTiming = errors.New("access: timings must not be negative")
)

// Store is the credential store used by the machine.
// *store.Store implements it.
type Store interface {
	Count() int
	Find(id credential.ID) (int, error)
	IsMaster(id credential.ID) bool
	Append(id credential.ID) error
	Remove(slot int) error
	SetMaster(id credential.ID) error
	FactoryReset() error
}

// Indicator renders intents. Calls must not block the loop.
type Indicator interface {
	Indicate(intent Intent)
}

// Actuator drives the lock output.
type Actuator interface {
	Energize() error
	DeEnergize() error
}

// Config configures a Machine.
type Config struct {
	// Store is the credential store. Required.
	Store Store

	// Indicator receives intents. Optional.
	Indicator Indicator

	// Actuator drives the lock. Optional.
	Actuator Actuator

	// DoorDelay is how long the lock stays energized after an unlock.
	// Default: 3s.
	DoorDelay time.Duration

	// PendingWindow is how long after a first master swipe a second one
	// enters admin mode. Default: DoorDelay.
	PendingWindow time.Duration

	// AdminTimeout is the admin-mode inactivity timeout. Default: 10s.
	AdminTimeout time.Duration

	// OnModeChanged is called after every mode change. Optional.
	OnModeChanged func(from, to Mode)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Store == nil {
		return ErrStoreRequired
	}
	if c.DoorDelay < 0 || c.PendingWindow < 0 || c.AdminTimeout < 0 {
		return ErrInvalidTiming
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.DoorDelay == 0 {
		c.DoorDelay = DefaultDoorDelay
	}
	if c.PendingWindow == 0 {
		c.PendingWindow = c.DoorDelay
	}
	if c.AdminTimeout == 0 {
		c.AdminTimeout = DefaultAdminTimeout
	}
}

// Input is what one loop iteration feeds the machine.
type Input struct {
	// Credential is a newly decoded credential, or nil.
	Credential *credential.Credential

	// Tier is the button classification for this iteration.
	Tier debounce.Tier
}

// Machine is the access-control state machine.
type Machine struct {
	config Config
	log    logging.LeveledLogger

	mode         Mode
	pendingSince time.Time
	lastActivity time.Time

	unlockedAt time.Time
	energized  bool
}

// New creates a Machine. The initial mode is Uninitialized when the store
// is empty and Armed otherwise.
func New(config Config) (*Machine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	m := &Machine{
		config: config,
		mode:   ModeArmed,
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("access")
	}
	if config.Store.Count() == 0 {
		m.mode = ModeUninitialized
	}

	if m.log != nil {
		m.log.Infof("starting in mode %s", m.mode)
	}
	return m, nil
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// DoorOpen returns true while the lock is held energized.
func (m *Machine) DoorOpen(now time.Time) bool {
	return m.energized && now.Sub(m.unlockedAt) < m.config.DoorDelay
}

// Step runs one loop iteration: timeouts first, then the button tier, then
// the credential.
func (m *Machine) Step(now time.Time, in Input) {
	m.Tick(now)
	if in.Tier != debounce.TierNone {
		m.HandleTier(now, in.Tier)
	}
	if in.Credential != nil {
		m.HandleCredential(now, *in.Credential)
	}
}

// Tick evaluates the door hold, the pending window and the admin timeout.
func (m *Machine) Tick(now time.Time) {
	if m.energized && now.Sub(m.unlockedAt) >= m.config.DoorDelay {
		m.relock()
	}

	switch m.mode {
	case ModeAdminPending:
		if now.Sub(m.pendingSince) >= m.config.PendingWindow {
			m.setMode(ModeArmed)
		}
	case ModeAdminMode:
		if now.Sub(m.lastActivity) >= m.config.AdminTimeout {
			if m.log != nil {
				m.log.Info("admin mode timed out")
			}
			m.setMode(ModeArmed)
			m.indicate(IntentArmed)
		}
	}
}

// HandleTier applies a button classification.
func (m *Machine) HandleTier(now time.Time, tier debounce.Tier) {
	switch tier {
	case debounce.TierMasterSwap:
		if m.log != nil {
			m.log.Warn("master swap requested: next credential becomes master")
		}
		m.setMode(ModeUninitialized)
		m.indicate(IntentReset)
	case debounce.TierFactoryReset:
		if err := m.config.Store.FactoryReset(); err != nil {
			if m.log != nil {
				m.log.Errorf("factory reset failed: %v", err)
			}
			m.indicate(IntentDeny)
			return
		}
		m.setMode(ModeUninitialized)
		m.indicate(IntentReset)
	}
}

// HandleCredential processes a decoded credential. Credentials with a bad
// checksum are dropped without any state change.
func (m *Machine) HandleCredential(now time.Time, c credential.Credential) {
	if !c.Valid() {
		if m.log != nil {
			m.log.Debugf("dropping %s: checksum mismatch", c)
		}
		return
	}

	switch m.mode {
	case ModeUninitialized:
		m.enroll(now, c.ID)
	case ModeArmed, ModeAdminPending:
		m.authenticate(now, c.ID)
	case ModeAdminMode:
		m.administer(now, c.ID)
	}
}

// enroll makes id the master.
func (m *Machine) enroll(now time.Time, id credential.ID) {
	s := m.config.Store

	// A member promoted to master must not stay in the member slots.
	if slot, err := s.Find(id); err == nil && slot > store.MasterSlot {
		if err := s.Remove(slot); err != nil {
			m.storeFailed("remove promoted member", err)
			return
		}
	}

	if err := s.SetMaster(id); err != nil {
		m.storeFailed("set master", err)
		return
	}
	if s.Count() < 1 {
		return
	}

	if m.log != nil {
		m.log.Infof("enrolled master %s", id)
	}
	m.setMode(ModeArmed)
	m.unlock(now)
	m.indicate(IntentArmed)
}

// authenticate handles a swipe in Armed or AdminPending.
func (m *Machine) authenticate(now time.Time, id credential.ID) {
	s := m.config.Store

	if s.IsMaster(id) {
		m.unlock(now)
		if m.mode == ModeAdminPending {
			m.lastActivity = now
			m.setMode(ModeAdminMode)
			m.indicate(IntentAdminMode)
			return
		}
		m.pendingSince = now
		m.setMode(ModeAdminPending)
		m.indicate(IntentGrant)
		return
	}

	// Any non-master swipe clears a pending admin entry.
	m.setMode(ModeArmed)

	if _, err := s.Find(id); err != nil {
		if m.log != nil {
			m.log.Infof("denied %s", id)
		}
		m.indicate(IntentDeny)
		return
	}

	if m.log != nil {
		m.log.Infof("granted %s", id)
	}
	m.unlock(now)
	m.indicate(IntentGrant)
}

// administer handles a swipe in AdminMode.
func (m *Machine) administer(now time.Time, id credential.ID) {
	s := m.config.Store

	if s.IsMaster(id) {
		m.unlock(now)
		m.setMode(ModeArmed)
		m.indicate(IntentGrant)
		m.indicate(IntentArmed)
		return
	}

	m.lastActivity = now

	slot, err := s.Find(id)
	switch {
	case err == nil:
		if err := s.Remove(slot); err != nil {
			m.storeFailed("remove", err)
			return
		}
		if m.log != nil {
			m.log.Infof("removed %s from slot %d", id, slot)
		}
		m.indicate(IntentRemoved)
	case errors.Is(err, store.ErrNotFound):
		if err := s.Append(id); err != nil {
			m.storeFailed("add", err)
			return
		}
		if m.log != nil {
			m.log.Infof("added %s", id)
		}
		m.indicate(IntentAdded)
	default:
		m.storeFailed("find", err)
	}
}

// unlock energizes the lock or refreshes its hold timer.
func (m *Machine) unlock(now time.Time) {
	m.unlockedAt = now
	if m.energized {
		return
	}
	m.energized = true
	if m.config.Actuator != nil {
		if err := m.config.Actuator.Energize(); err != nil && m.log != nil {
			m.log.Errorf("energize failed: %v", err)
		}
	}
}

func (m *Machine) relock() {
	m.energized = false
	if m.config.Actuator != nil {
		if err := m.config.Actuator.DeEnergize(); err != nil && m.log != nil {
			m.log.Errorf("de-energize failed: %v", err)
		}
	}
}

func (m *Machine) setMode(to Mode) {
	from := m.mode
	if from == to {
		return
	}
	m.mode = to
	if m.log != nil {
		m.log.Debugf("mode %s -> %s", from, to)
	}
	if m.config.OnModeChanged != nil {
		m.config.OnModeChanged(from, to)
	}
}

func (m *Machine) indicate(intent Intent) {
	if m.config.Indicator != nil {
		m.config.Indicator.Indicate(intent)
	}
}

// storeFailed reports a store error through the indicator. The loop keeps
// running.
func (m *Machine) storeFailed(op string, err error) {
	if m.log != nil {
		if errors.Is(err, store.ErrFull) {
			m.log.Warnf("%s: %v", op, err)
		} else {
			m.log.Errorf("%s: %v", op, err)
		}
	}
	m.indicate(IntentDeny)
}
