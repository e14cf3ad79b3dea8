// Package settings loads the device configuration.
//
// Settings come from a TOML file, then RFIDLOCK_* environment variables,
// then command-line flags (applied by the binary). Durations are Go duration
// strings ("3s", "250ms").
package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/backkem/rfidlock/pkg/store"
	"github.com/pion/logging"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Reader kinds.
const (
	ReaderSerial  = "serial"
	ReaderWiegand = "wiegand"
)

// Unused marks a GPIO pin that is not wired.
const Unused = -1

// Duration is a time.Duration that reads and writes duration strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Settings is the complete device configuration.
type Settings struct {
	Store  StoreSettings  `toml:"store"`
	Reader ReaderSettings `toml:"reader"`
	Timing TimingSettings `toml:"timing"`
	GPIO   GPIOSettings   `toml:"gpio"`
	Log    LogSettings    `toml:"log"`
}

// StoreSettings selects where credentials are persisted.
type StoreSettings struct {
	// Backend is "file", "sqlite" or "memory".
	Backend string `toml:"backend"`
	// Path is the image file or SQLite database.
	Path string `toml:"path"`
	// Capacity is the number of slots, master included (1-254).
	Capacity int `toml:"capacity"`
}

// ReaderSettings selects the credential reader.
type ReaderSettings struct {
	// Kind is "serial" (EM4100 ASCII) or "wiegand" (bit stream).
	Kind string `toml:"kind"`
	// Device is the tty or character device.
	Device string `toml:"device"`
	// Baud is the serial rate.
	Baud int `toml:"baud"`
	// Bits is the Wiegand frame length (26 or 34).
	Bits int `toml:"bits"`
}

// TimingSettings holds the access and button timings.
type TimingSettings struct {
	DoorDelay        Duration `toml:"door_delay"`
	PendingWindow    Duration `toml:"pending_window"`
	AdminTimeout     Duration `toml:"admin_timeout"`
	Debounce         Duration `toml:"debounce"`
	MasterSwapHold   Duration `toml:"master_swap_hold"`
	FactoryResetHold Duration `toml:"factory_reset_hold"`
	PollInterval     Duration `toml:"poll_interval"`
}

// GPIOSettings maps the hardware lines to sysfs pin numbers.
type GPIOSettings struct {
	// SysfsRoot overrides /sys/class/gpio.
	SysfsRoot string `toml:"sysfs_root"`

	Button   int `toml:"button"`
	Relay    int `toml:"relay"`
	LEDRed   int `toml:"led_red"`
	LEDGreen int `toml:"led_green"`
	LEDBlue  int `toml:"led_blue"`

	// ButtonActiveLow means the button pulls the line low when pressed.
	ButtonActiveLow bool `toml:"button_active_low"`
	// RelayActiveLow means the relay board energizes on a low level.
	RelayActiveLow bool `toml:"relay_active_low"`
}

// LogSettings configures logging.
type LogSettings struct {
	// Level is trace, debug, info, warn, error or disabled.
	Level string `toml:"level"`
}

// Default returns the default settings.
func Default() *Settings {
	return &Settings{
		Store: StoreSettings{
			Backend:  BackendFile,
			Path:     "/var/lib/rfidlock/store.img",
			Capacity: 32,
		},
		Reader: ReaderSettings{
			Kind:   ReaderSerial,
			Device: "/dev/ttyS0",
			Baud:   9600,
			Bits:   26,
		},
		Timing: TimingSettings{
			DoorDelay:        Duration(3 * time.Second),
			AdminTimeout:     Duration(10 * time.Second),
			Debounce:         Duration(50 * time.Millisecond),
			MasterSwapHold:   Duration(5 * time.Second),
			FactoryResetHold: Duration(10 * time.Second),
			PollInterval:     Duration(10 * time.Millisecond),
		},
		GPIO: GPIOSettings{
			Button:          Unused,
			Relay:           Unused,
			LEDRed:          Unused,
			LEDGreen:        Unused,
			LEDBlue:         Unused,
			ButtonActiveLow: true,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Settings, error) {
	s := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, s); err != nil {
			return nil, fmt.Errorf("settings: decode %s: %w", path, err)
		}
	}
	if err := s.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes s to path as TOML.
func (s *Settings) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("settings: create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	return f.Sync()
}

// ApplyEnv applies RFIDLOCK_* environment overrides.
func (s *Settings) ApplyEnv() error {
	if v := os.Getenv("RFIDLOCK_STORE_BACKEND"); v != "" {
		s.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("RFIDLOCK_STORE_PATH"); v != "" {
		s.Store.Path = v
	}
	if v := os.Getenv("RFIDLOCK_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("settings: RFIDLOCK_CAPACITY: %w", err)
		}
		s.Store.Capacity = n
	}
	if v := os.Getenv("RFIDLOCK_READER"); v != "" {
		s.Reader.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("RFIDLOCK_DEVICE"); v != "" {
		s.Reader.Device = v
	}
	if v := os.Getenv("RFIDLOCK_BAUD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("settings: RFIDLOCK_BAUD: %w", err)
		}
		s.Reader.Baud = n
	}
	if v := os.Getenv("RFIDLOCK_DOOR_DELAY"); v != "" {
		if err := s.Timing.DoorDelay.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("settings: RFIDLOCK_DOOR_DELAY: %w", err)
		}
	}
	if v := os.Getenv("RFIDLOCK_LOG_LEVEL"); v != "" {
		s.Log.Level = strings.ToLower(v)
	}
	return nil
}

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "settings: " + strings.Join(msgs, "; ")
}

// Validate checks the settings and returns ValidateErrors listing every
// problem.
func (s *Settings) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch s.Store.Backend {
	case BackendFile, BackendSQLite:
		if s.Store.Path == "" {
			add("store.path", "required for backend %q", s.Store.Backend)
		}
	case BackendMemory:
	default:
		add("store.backend", "invalid backend %q, must be one of: file, sqlite, memory", s.Store.Backend)
	}
	if s.Store.Capacity < 1 || s.Store.Capacity > store.MaxCapacity {
		add("store.capacity", "must be 1-%d, got %d", store.MaxCapacity, s.Store.Capacity)
	}

	switch s.Reader.Kind {
	case ReaderSerial, ReaderWiegand:
	default:
		add("reader.kind", "invalid kind %q, must be one of: serial, wiegand", s.Reader.Kind)
	}
	if s.Reader.Kind == ReaderWiegand && s.Reader.Bits != 26 && s.Reader.Bits != 34 {
		add("reader.bits", "must be 26 or 34, got %d", s.Reader.Bits)
	}
	if s.Reader.Baud < 0 {
		add("reader.baud", "must not be negative")
	}

	t := s.Timing
	for _, d := range []struct {
		field string
		v     Duration
	}{
		{"timing.door_delay", t.DoorDelay},
		{"timing.pending_window", t.PendingWindow},
		{"timing.admin_timeout", t.AdminTimeout},
		{"timing.debounce", t.Debounce},
		{"timing.master_swap_hold", t.MasterSwapHold},
		{"timing.factory_reset_hold", t.FactoryResetHold},
		{"timing.poll_interval", t.PollInterval},
	} {
		if d.v < 0 {
			add(d.field, "must not be negative")
		}
	}
	if t.FactoryResetHold <= t.MasterSwapHold {
		add("timing.factory_reset_hold", "must exceed master_swap_hold")
	}

	if _, err := ParseLevel(s.Log.Level); err != nil {
		add("log.level", "%v", err)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ParseLevel maps a level name to a pion log level.
func ParseLevel(name string) (logging.LogLevel, error) {
	switch strings.ToLower(name) {
	case "disabled", "off":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("unknown log level %q", name)
	}
}

// LoggerFactory returns a pion logger factory at the configured level.
func (s *Settings) LoggerFactory() logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	if level, err := ParseLevel(s.Log.Level); err == nil {
		f.DefaultLogLevel = level
	}
	return f
}
