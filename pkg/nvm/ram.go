package nvm

import "sync"

// RAM is an in-memory Memory implementation.
// Useful for testing and simulation. Data is lost when the process exits.
//
// All methods are safe for concurrent use.
type RAM struct {
	mu     sync.RWMutex
	cells  []byte
	writes int
}

// NewRAM creates a zero-filled memory of size bytes.
func NewRAM(size int) *RAM {
	if size < 0 {
		size = 0
	}
	return &RAM{cells: make([]byte, size)}
}

// Len implements Memory.
func (m *RAM) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cells)
}

// Read implements Memory.
func (m *RAM) Read(addr int, p []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := checkBounds(addr, len(p), len(m.cells)); err != nil {
		return err
	}
	copy(p, m.cells[addr:])
	return nil
}

// Write implements Memory.
func (m *RAM) Write(addr int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := checkBounds(addr, len(p), len(m.cells)); err != nil {
		return err
	}
	copy(m.cells[addr:], p)
	m.writes++
	return nil
}

// Close implements Memory. It is a no-op.
func (m *RAM) Close() error { return nil }

// Bytes returns a copy of the whole memory.
func (m *RAM) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]byte, len(m.cells))
	copy(out, m.cells)
	return out
}

// Fill sets every cell to v, e.g. 0xFF to model an erased EEPROM.
func (m *RAM) Fill(v byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.cells {
		m.cells[i] = v
	}
}

// Writes returns the number of Write calls so far.
func (m *RAM) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Verify RAM implements Memory.
var _ Memory = (*RAM)(nil)
