package indicator

import (
	"sync"
	"time"

	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/gpio"
	"github.com/pion/logging"
)

// Defaults for LED.
const (
	DefaultQueueSize = 8
	DefaultStep      = 200 * time.Millisecond
)

// Color is a combination of the three LED channels.
type Color uint8

// Colors.
const (
	Off   Color = 0
	Red   Color = 1 << 0
	Green Color = 1 << 1
	Blue  Color = 1 << 2
	Amber       = Red | Green
)

// String returns a human-readable name for the color.
func (c Color) String() string {
	switch c {
	case Off:
		return "Off"
	case Red:
		return "Red"
	case Green:
		return "Green"
	case Blue:
		return "Blue"
	case Amber:
		return "Amber"
	default:
		return "Unknown"
	}
}

// frame is one step of a pattern: a color held for a number of steps.
type frame struct {
	color Color
	steps int
}

// pattern returns the frames played for an intent. The LED returns to the
// idle color afterwards.
func pattern(intent access.Intent) []frame {
	switch intent {
	case access.IntentAdminMode:
		return []frame{{Red, 1}, {Green, 1}, {Blue, 1}}
	case access.IntentGrant:
		return []frame{{Green, 5}}
	case access.IntentDeny:
		return []frame{{Red, 5}}
	case access.IntentAdded:
		return []frame{{Green, 1}, {Off, 1}, {Green, 1}, {Off, 1}, {Green, 1}}
	case access.IntentRemoved:
		return []frame{{Blue, 1}, {Off, 1}, {Blue, 1}, {Off, 1}, {Blue, 1}}
	case access.IntentReset:
		return []frame{{Red, 1}, {Blue, 1}, {Red, 1}, {Blue, 1}}
	default:
		return nil
	}
}

// LEDConfig configures an LED indicator.
type LEDConfig struct {
	// Red, Green and Blue are the channel outputs. Any may be nil.
	Red   gpio.OutputPin
	Green gpio.OutputPin
	Blue  gpio.OutputPin

	// QueueSize bounds pending intents; further intents are dropped.
	// Default: 8.
	QueueSize int

	// Step is the pattern time unit. Default: 200ms.
	Step time.Duration

	// OnPlayed is called by the worker after each intent has been played
	// (optional).
	OnPlayed func(intent access.Intent)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// LED plays intent patterns on an RGB LED.
//
// Armed, Reset and AdminMode also set the idle color: blue while armed or
// waiting for a master, amber in admin mode.
type LED struct {
	config LEDConfig
	log    logging.LeveledLogger

	queue chan access.Intent
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	idle Color
}

// NewLED creates an LED indicator and starts its worker. The LED starts
// blue.
func NewLED(config LEDConfig) *LED {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Step <= 0 {
		config.Step = DefaultStep
	}

	l := &LED{
		config: config,
		queue:  make(chan access.Intent, config.QueueSize),
		stop:   make(chan struct{}),
		idle:   Blue,
	}
	if config.LoggerFactory != nil {
		l.log = config.LoggerFactory.NewLogger("indicator")
	}

	l.show(l.idle)

	l.wg.Add(1)
	go l.run()
	return l
}

// Indicate implements access.Indicator. It never blocks; when the queue is
// full the intent is dropped.
func (l *LED) Indicate(intent access.Intent) {
	select {
	case <-l.stop:
		return
	default:
	}

	select {
	case l.queue <- intent:
	default:
		if l.log != nil {
			l.log.Debugf("queue full, dropping %s", intent)
		}
	}
}

// Close stops the worker and turns the LED off.
func (l *LED) Close() error {
	l.once.Do(func() {
		close(l.stop)
		l.wg.Wait()
		l.show(Off)
	})
	return nil
}

func (l *LED) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stop:
			return
		case intent := <-l.queue:
			if !l.play(intent) {
				return
			}
			if l.config.OnPlayed != nil {
				l.config.OnPlayed(intent)
			}
		}
	}
}

// play shows the pattern for intent. It returns false if stopped midway.
func (l *LED) play(intent access.Intent) bool {
	switch intent {
	case access.IntentArmed, access.IntentReset:
		l.idle = Blue
	case access.IntentAdminMode:
		l.idle = Amber
	}

	for _, f := range pattern(intent) {
		l.show(f.color)
		select {
		case <-l.stop:
			return false
		case <-time.After(time.Duration(f.steps) * l.config.Step):
		}
	}
	l.show(l.idle)
	return true
}

func (l *LED) show(c Color) {
	l.write(l.config.Red, c&Red != 0)
	l.write(l.config.Green, c&Green != 0)
	l.write(l.config.Blue, c&Blue != 0)
}

func (l *LED) write(pin gpio.OutputPin, on bool) {
	if pin == nil {
		return
	}
	if err := pin.Write(on); err != nil && l.log != nil {
		l.log.Warnf("led write failed: %v", err)
	}
}
