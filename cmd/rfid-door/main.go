// Command rfid-door runs a single-door RFID access controller.
//
// Usage:
//
//	rfid-door [options]
//
// Options:
//
//	-config        TOML settings file (default: $RFIDLOCK_CONFIG)
//	-store         Store image or database path
//	-backend       Store backend: file, sqlite, memory
//	-capacity      Store capacity in slots, master included (1-254)
//	-reader        Reader kind: serial, wiegand
//	-device        Reader device path
//	-log-level     trace, debug, info, warn, error, disabled
//	-dump          Print stored credentials and exit
//	-print-config  Print effective settings and exit
//
// Example:
//
//	rfid-door -config /etc/rfidlock.toml
//	rfid-door -backend sqlite -store /var/lib/rfidlock/store.db -device /dev/ttyUSB0
//	rfid-door -store /var/lib/rfidlock/store.img -dump
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/backkem/rfidlock/examples/common"
	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/codec"
	"github.com/backkem/rfidlock/pkg/door"
	"github.com/backkem/rfidlock/pkg/indicator"
	"github.com/backkem/rfidlock/pkg/lock"
	"github.com/backkem/rfidlock/pkg/nvm"
	"github.com/backkem/rfidlock/pkg/serial"
	"github.com/backkem/rfidlock/pkg/settings"
	"github.com/pion/logging"
)

func main() {
	opts := common.ParseFlags()

	s, err := common.LoadSettings(opts)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	if opts.PrintConfig {
		if err := toml.NewEncoder(os.Stdout).Encode(s); err != nil {
			log.Fatalf("Failed to print settings: %v", err)
		}
		return
	}

	factory := s.LoggerFactory()

	mem, err := s.OpenMemory(factory)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeMemory(mem)

	if opts.Dump {
		if err := common.DumpStore(os.Stdout, mem, s.Store.Capacity, factory); err != nil {
			log.Fatalf("Failed to dump store: %v", err)
		}
		return
	}

	if err := run(s, mem, factory); err != nil {
		log.Fatalf("Door failed: %v", err)
	}
}

func run(s *settings.Settings, mem nvm.Memory, factory logging.LoggerFactory) error {
	reader, port, err := openReader(s, factory)
	if err != nil {
		return err
	}
	defer port.Close()

	pins, err := s.OpenPins()
	if err != nil {
		return fmt.Errorf("open pins: %w", err)
	}

	config := door.Config{
		Memory:        mem,
		Codec:         reader,
		Button:        pins.Button,
		LoggerFactory: factory,
	}
	s.Apply(&config)

	if pins.Relay != nil {
		relay, err := lock.New(lock.Config{Output: pins.Relay, LoggerFactory: factory})
		if err != nil {
			return fmt.Errorf("open relay: %w", err)
		}
		config.Actuator = relay
	} else {
		log.Println("No relay pin configured, running without a lock")
	}

	indicators := indicator.Multi{indicator.NewLog(factory)}
	if pins.Red != nil || pins.Green != nil || pins.Blue != nil {
		led := indicator.NewLED(indicator.LEDConfig{
			Red:           pins.Red,
			Green:         pins.Green,
			Blue:          pins.Blue,
			LoggerFactory: factory,
		})
		defer led.Close()
		indicators = append(indicators, led)
	}
	config.Indicator = indicators

	config.OnModeChanged = func(from, to access.Mode) {
		log.Printf("Mode: %s -> %s", from, to)
	}

	d, err := door.New(config)
	if err != nil {
		return err
	}
	return common.RunDoor(d)
}

// openReader opens the reader device and wraps it in the configured codec.
func openReader(s *settings.Settings, factory logging.LoggerFactory) (codec.Codec, io.Closer, error) {
	r := s.Reader
	switch r.Kind {
	case settings.ReaderSerial:
		port, err := serial.Open(r.Device, r.Baud)
		if err != nil {
			return nil, nil, fmt.Errorf("open reader: %w", err)
		}
		return codec.NewSerial(port), port, nil

	case settings.ReaderWiegand:
		f, err := os.Open(r.Device)
		if err != nil {
			return nil, nil, fmt.Errorf("open reader: %w", err)
		}
		w, err := codec.NewWiegand(codec.NewBitStream(f), codec.WiegandConfig{
			Bits:          r.Bits,
			LoggerFactory: factory,
		})
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		return w, f, nil

	default:
		return nil, nil, fmt.Errorf("unknown reader %q", r.Kind)
	}
}

func closeMemory(mem nvm.Memory) {
	if c, ok := mem.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}
}
