package gpio

import "sync"

// FakeInput is an input whose level is set by the caller.
type FakeInput struct {
	mu    sync.Mutex
	level bool
	err   error
}

// NewFakeInput creates a fake input at level.
func NewFakeInput(level bool) *FakeInput {
	return &FakeInput{level: level}
}

// Set changes the level.
func (p *FakeInput) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

// SetError makes subsequent reads fail with err (nil clears it).
func (p *FakeInput) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// Read implements InputPin.
func (p *FakeInput) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, p.err
}

// FakeOutput records writes.
type FakeOutput struct {
	mu      sync.Mutex
	level   bool
	history []bool

	// OnWrite is called after every write. Optional.
	OnWrite func(level bool)
}

// Write implements OutputPin.
func (p *FakeOutput) Write(level bool) error {
	p.mu.Lock()
	p.level = level
	p.history = append(p.history, level)
	cb := p.OnWrite
	p.mu.Unlock()

	if cb != nil {
		cb(level)
	}
	return nil
}

// Level returns the last written level.
func (p *FakeOutput) Level() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// History returns a copy of all written levels.
func (p *FakeOutput) History() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bool, len(p.history))
	copy(out, p.history)
	return out
}

// Verify fakes implement the pin interfaces.
var (
	_ InputPin  = (*FakeInput)(nil)
	_ OutputPin = (*FakeOutput)(nil)
)
