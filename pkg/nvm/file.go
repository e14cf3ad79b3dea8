package nvm

import (
	"fmt"
	"os"
	"sync"

	"github.com/pion/logging"
)

// FileConfig configures a file-backed memory image.
type FileConfig struct {
	// Path is the image file. It is created zero-filled if missing.
	Path string

	// Size is the number of addressable bytes. An existing shorter image
	// is extended with zeros; a longer one keeps its extra bytes untouched.
	Size int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// File is a Memory backed by a flat image file.
//
// The image is locked for exclusive use while open so two controller
// processes can never write the same store. Every Write is followed by
// fsync.
type File struct {
	mu     sync.Mutex
	f      *os.File
	size   int
	closed bool
	log    logging.LeveledLogger
}

// OpenFile opens or creates the image described by config.
func OpenFile(config FileConfig) (*File, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, config.Size)
	}

	f, err := os.OpenFile(config.Path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("nvm: open image: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close() //nolint:errcheck
		return nil, err
	}

	m := &File{f: f, size: config.Size}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("nvm")
	}

	info, err := f.Stat()
	if err != nil {
		m.Close() //nolint:errcheck
		return nil, fmt.Errorf("nvm: stat image: %w", err)
	}
	if info.Size() < int64(config.Size) {
		if m.log != nil {
			m.log.Infof("extending image %s from %d to %d bytes", config.Path, info.Size(), config.Size)
		}
		if err := f.Truncate(int64(config.Size)); err != nil {
			m.Close() //nolint:errcheck
			return nil, fmt.Errorf("nvm: extend image: %w", err)
		}
		if err := f.Sync(); err != nil {
			m.Close() //nolint:errcheck
			return nil, fmt.Errorf("nvm: sync image: %w", err)
		}
	}

	return m, nil
}

// Len implements Memory.
func (m *File) Len() int { return m.size }

// Read implements Memory.
func (m *File) Read(addr int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := checkBounds(addr, len(p), m.size); err != nil {
		return err
	}
	if _, err := m.f.ReadAt(p, int64(addr)); err != nil {
		return fmt.Errorf("nvm: read image: %w", err)
	}
	return nil
}

// Write implements Memory.
func (m *File) Write(addr int, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if err := checkBounds(addr, len(p), m.size); err != nil {
		return err
	}
	if _, err := m.f.WriteAt(p, int64(addr)); err != nil {
		return fmt.Errorf("nvm: write image: %w", err)
	}
	if err := m.f.Sync(); err != nil {
		return fmt.Errorf("nvm: sync image: %w", err)
	}
	return nil
}

// Close unlocks and closes the image.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	unlockFile(m.f)
	return m.f.Close()
}

// Verify File implements Memory.
var _ Memory = (*File)(nil)
