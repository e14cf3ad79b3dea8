// Package line provides an in-memory reader line: a virtual serial link
// between a simulated tag reader and the device.
//
// It wraps pion's test.Bridge. Everything written on one end is queued and
// delivered to the other end on Tick. By default a background goroutine ticks
// continuously; SetAutoProcess(false) gives the caller control over delivery
// for deterministic tests.
package line

import (
	"net"
	"sync"
	"time"

	"github.com/backkem/rfidlock/pkg/codec"
	"github.com/backkem/rfidlock/pkg/credential"
	"github.com/pion/transport/v3/test"
)

// Config configures a Line.
type Config struct {
	// AutoProcess enables automatic delivery in a background goroutine.
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultConfig returns the default line configuration.
func DefaultConfig() Config {
	return Config{
		AutoProcess:     true,
		ProcessInterval: time.Millisecond,
	}
}

// Line is a bidirectional in-memory reader link.
type Line struct {
	bridge *test.Bridge

	mu              sync.Mutex
	closed          bool
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// New creates a line with auto-processing enabled.
func New() *Line {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a line with the given configuration.
func NewWithConfig(config Config) *Line {
	l := &Line{
		bridge:          test.NewBridge(),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if l.processInterval == 0 {
		l.processInterval = time.Millisecond
	}
	if l.autoProcess {
		l.startAutoProcess()
	}
	return l
}

func (l *Line) startAutoProcess() {
	l.wg.Add(1)
	go func(stop <-chan struct{}) {
		defer l.wg.Done()
		ticker := time.NewTicker(l.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.bridge.Tick()
			}
		}
	}(l.stopCh)
}

// SetAutoProcess enables or disables automatic delivery.
// When disabled, Tick or Process must be called manually.
func (l *Line) SetAutoProcess(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || l.autoProcess == enabled {
		return
	}
	l.autoProcess = enabled

	if enabled {
		l.stopCh = make(chan struct{})
		l.startAutoProcess()
	} else {
		close(l.stopCh)
		l.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (l *Line) AutoProcess() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.autoProcess
}

// Reader returns the device end. The serial codec reads from it.
func (l *Line) Reader() net.Conn {
	return l.bridge.GetConn0()
}

// Tag returns the simulated reader end.
func (l *Line) Tag() net.Conn {
	return l.bridge.GetConn1()
}

// Present writes a correctly framed EM4100 frame for id on the tag end,
// as a reader does when a tag enters its field.
func (l *Line) Present(id credential.ID) error {
	return l.PresentCredential(credential.New(id))
}

// PresentCredential writes the frame for c, including its checksum as given.
func (l *Line) PresentCredential(c credential.Credential) error {
	return l.PresentRaw(codec.EncodeSerial(c))
}

// PresentRaw writes arbitrary bytes on the tag end.
func (l *Line) PresentRaw(b []byte) error {
	_, err := l.Tag().Write(b)
	return err
}

// Tick delivers one queued write in each direction.
// Returns the number of writes delivered.
func (l *Line) Tick() int {
	return l.bridge.Tick()
}

// Process delivers all queued writes.
func (l *Line) Process() int {
	count := 0
	for {
		n := l.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both ends and stops auto-processing.
func (l *Line) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	if l.autoProcess {
		close(l.stopCh)
	}
	l.mu.Unlock()

	l.wg.Wait()

	err0 := l.bridge.GetConn0().Close()
	err1 := l.bridge.GetConn1().Close()
	if err0 != nil {
		return err0
	}
	return err1
}
