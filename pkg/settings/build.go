package settings

import (
	"fmt"
	"time"

	"github.com/backkem/rfidlock/pkg/debounce"
	"github.com/backkem/rfidlock/pkg/door"
	"github.com/backkem/rfidlock/pkg/gpio"
	"github.com/backkem/rfidlock/pkg/nvm"
	"github.com/backkem/rfidlock/pkg/store"
	"github.com/pion/logging"
)

// OpenMemory opens the configured store backend, sized for the configured
// capacity.
func (s *Settings) OpenMemory(factory logging.LoggerFactory) (nvm.Memory, error) {
	size := store.SizeFor(s.Store.Capacity)
	switch s.Store.Backend {
	case BackendFile:
		return nvm.OpenFile(nvm.FileConfig{Path: s.Store.Path, Size: size, LoggerFactory: factory})
	case BackendSQLite:
		return nvm.OpenSQLite(nvm.SQLiteConfig{Path: s.Store.Path, Size: size, LoggerFactory: factory})
	case BackendMemory:
		return nvm.NewRAM(size), nil
	default:
		return nil, fmt.Errorf("settings: invalid backend %q", s.Store.Backend)
	}
}

// Apply copies capacity and timings into cfg.
func (s *Settings) Apply(cfg *door.Config) {
	t := s.Timing
	cfg.Capacity = s.Store.Capacity
	cfg.DoorDelay = time.Duration(t.DoorDelay)
	cfg.PendingWindow = time.Duration(t.PendingWindow)
	cfg.AdminTimeout = time.Duration(t.AdminTimeout)
	cfg.PollInterval = time.Duration(t.PollInterval)
	cfg.Debounce = debounce.Config{
		Interval:         time.Duration(t.Debounce),
		MasterSwapHold:   time.Duration(t.MasterSwapHold),
		FactoryResetHold: time.Duration(t.FactoryResetHold),
		ActiveLow:        s.GPIO.ButtonActiveLow,
	}
}

// Pins are the opened hardware lines. Unwired lines are nil.
type Pins struct {
	Button gpio.InputPin
	Relay  gpio.OutputPin
	Red    gpio.OutputPin
	Green  gpio.OutputPin
	Blue   gpio.OutputPin
}

// OpenPins exports and configures the wired sysfs pins. The button is
// returned raw; the debounce guard applies its polarity.
func (s *Settings) OpenPins() (Pins, error) {
	var p Pins
	g := s.GPIO

	if g.Button != Unused {
		pin, err := gpio.OpenSysfs(g.SysfsRoot, g.Button, gpio.DirectionIn)
		if err != nil {
			return Pins{}, err
		}
		p.Button = pin
	}

	outputs := []struct {
		num int
		dst *gpio.OutputPin
	}{
		{g.Relay, &p.Relay},
		{g.LEDRed, &p.Red},
		{g.LEDGreen, &p.Green},
		{g.LEDBlue, &p.Blue},
	}
	for _, o := range outputs {
		if o.num == Unused {
			continue
		}
		pin, err := gpio.OpenSysfs(g.SysfsRoot, o.num, gpio.DirectionOut)
		if err != nil {
			return Pins{}, err
		}
		*o.dst = pin
	}

	if p.Relay != nil && g.RelayActiveLow {
		p.Relay = gpio.ActiveLowOutput{Pin: p.Relay}
	}
	return p, nil
}
