package door

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/codec"
	"github.com/backkem/rfidlock/pkg/credential"
	"github.com/backkem/rfidlock/pkg/debounce"
	"github.com/backkem/rfidlock/pkg/store"
	"github.com/pion/logging"
)

// Door is a running access controller for one door.
type Door struct {
	config Config
	log    logging.LeveledLogger

	store   *store.Store
	machine *access.Machine
	guard   *debounce.Guard

	// mode mirrors machine.Mode() for readers outside the loop.
	mode atomic.Int32

	mu     sync.RWMutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Door: it opens the store and builds the machine and the
// button guard. The door is not running until Run is called.
func New(config Config) (*Door, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	d := &Door{
		config: config,
		state:  StateInitialized,
		done:   make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("door")
	}

	s, err := store.Open(store.Config{
		Memory:        config.Memory,
		Capacity:      config.Capacity,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	d.store = s

	if config.Button != nil {
		g, err := debounce.New(config.Debounce)
		if err != nil {
			return nil, err
		}
		d.guard = g
	}

	m, err := access.New(access.Config{
		Store:         s,
		Indicator:     config.Indicator,
		Actuator:      config.Actuator,
		DoorDelay:     config.DoorDelay,
		PendingWindow: config.PendingWindow,
		AdminTimeout:  config.AdminTimeout,
		OnModeChanged: d.onModeChanged,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	d.machine = m
	d.mode.Store(int32(m.Mode()))

	return d, nil
}

// Store returns the credential store.
func (d *Door) Store() *store.Store {
	return d.store
}

// Mode returns the access mode as last published by the loop.
func (d *Door) Mode() access.Mode {
	return access.Mode(d.mode.Load())
}

// State returns the lifecycle state.
func (d *Door) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Run runs the loop until ctx is done, Stop is called or the reader fails.
// It returns nil on a requested shutdown and an error wrapping
// ErrReaderFailed when the codec reports anything but a malformed frame.
func (d *Door) Run(ctx context.Context) error {
	d.mu.Lock()
	if !d.state.CanStart() {
		d.mu.Unlock()
		if d.state == StateStopped {
			return ErrAlreadyStopped
		}
		return ErrAlreadyStarted
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.state = StateRunning
	d.mu.Unlock()
	d.notifyState(StateRunning)

	defer close(d.done)

	frames := make(chan codec.Frame)
	readErr := make(chan error, 1)
	go d.pump(ctx, frames, readErr)

	if d.log != nil {
		d.log.Infof("running in mode %s", d.machine.Mode())
	}

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-readErr:
			runErr = fmt.Errorf("%w: %v", ErrReaderFailed, err)
			break loop
		case f := <-frames:
			c := f.Credential()
			d.step(&c)
		case <-ticker.C:
			d.step(nil)
		}
	}

	d.shutdown()
	return runErr
}

// Stop ends the loop and waits for Run to return.
func (d *Door) Stop() error {
	d.mu.Lock()
	if !d.state.CanStop() {
		d.mu.Unlock()
		if d.state == StateStopped || d.state == StateStopping {
			return ErrAlreadyStopped
		}
		return ErrNotStarted
	}
	d.state = StateStopping
	cancel := d.cancel
	d.mu.Unlock()
	d.notifyState(StateStopping)

	cancel()
	<-d.done
	return nil
}

// step runs one loop iteration.
func (d *Door) step(c *credential.Credential) {
	now := d.config.Now()
	in := access.Input{Credential: c}

	if d.guard != nil {
		level, err := d.config.Button.Read()
		if err != nil {
			if d.log != nil {
				d.log.Warnf("button read failed: %v", err)
			}
		} else {
			in.Tier = d.guard.Sample(level, now).Tier
		}
	}

	d.machine.Step(now, in)
}

// pump forwards frames from the codec to the loop. It exits on the first
// non-malformed error or when ctx ends.
func (d *Door) pump(ctx context.Context, frames chan<- codec.Frame, readErr chan<- error) {
	for {
		f, err := d.config.Codec.ReadFrame()
		if err != nil {
			if errors.Is(err, codec.ErrMalformedFrame) {
				if d.log != nil {
					d.log.Debugf("dropping frame: %v", err)
				}
				continue
			}
			select {
			case readErr <- err:
			case <-ctx.Done():
			}
			return
		}

		select {
		case frames <- f:
		case <-ctx.Done():
			return
		}
	}
}

// shutdown leaves the lock de-energized and marks the door stopped.
func (d *Door) shutdown() {
	d.mu.Lock()
	requested := d.state == StateStopping
	d.state = StateStopping
	cancel := d.cancel
	d.mu.Unlock()
	if !requested {
		d.notifyState(StateStopping)
	}
	cancel()

	if d.config.Actuator != nil {
		if err := d.config.Actuator.DeEnergize(); err != nil && d.log != nil {
			d.log.Errorf("de-energize on shutdown failed: %v", err)
		}
	}

	d.mu.Lock()
	d.state = StateStopped
	d.mu.Unlock()
	d.notifyState(StateStopped)

	if d.log != nil {
		d.log.Info("door stopped")
	}
}

func (d *Door) notifyState(s State) {
	if d.config.OnStateChanged != nil {
		d.config.OnStateChanged(s)
	}
}

func (d *Door) onModeChanged(from, to access.Mode) {
	d.mode.Store(int32(to))
	if d.log != nil {
		d.log.Infof("mode %s -> %s", from, to)
	}
	if d.config.OnModeChanged != nil {
		d.config.OnModeChanged(from, to)
	}
}
