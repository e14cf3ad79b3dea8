// Package store implements the persistent credential allow-list.
//
// The store is a fixed-slot array of 5-byte credential identifiers kept in
// byte-addressable non-volatile memory, preceded by a one-byte occupancy
// count:
//
//	byte 0                 occupancy count n
//	bytes [1+5(k-1), 1+5k) slot k, for k = 1..capacity
//
// Slots 1..n are valid and contiguous. Slot 1 holds the master credential
// once n >= 1. Removing a slot compacts the tail left by one record so
// there are never holes; capacity is a hard ceiling and never grows.
//
// Every mutation is written through to memory before returning. Records are
// written before the count on append, and shifted before the count is
// decremented on removal, so a power cut can lose the record being written
// but never exposes an invalid slot below the count.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/rfidlock/pkg/credential"
	"github.com/backkem/rfidlock/pkg/nvm"
	"github.com/pion/logging"
)

// Layout constants.
const (
	// CountAddr is the address of the occupancy count byte.
	CountAddr = 0

	// RecordSize is the size of one slot in bytes.
	RecordSize = credential.IDSize

	// MasterSlot is the slot reserved for the master credential.
	MasterSlot = 1

	// MaxCapacity is the largest capacity the count byte can describe.
	// 0xFF is left for ErasedCount.
	MaxCapacity = 254

	// ErasedCount is the count byte of an erased EEPROM image.
	ErasedCount = 0xFF
)

// Store errors.
var (
	// ErrNotFound is returned when a credential is not in the store.
	ErrNotFound = errors.New("store: credential not found")

	// ErrFull is returned when appending to a store at capacity.
	ErrFull = errors.New("store: full")

	// ErrAlreadyPresent is returned when appending a credential already stored.
	ErrAlreadyPresent = errors.New("store: credential already present")

	// ErrOutOfRange is returned when reading a slot outside 1..Count().
	ErrOutOfRange = errors.New("store: slot out of range")

	// ErrInvalidCapacity is returned when the capacity does not fit the memory.
	ErrInvalidCapacity = errors.New("store: invalid capacity")

	// ErrMemoryRequired is returned when Config.Memory is nil.
	ErrMemoryRequired = errors.New("store: memory is required")

	// ErrReadOnly is returned by mutations on a store opened read-only.
	ErrReadOnly = errors.New("store: read-only")
)

// Config configures the record store.
type Config struct {
	// Memory is the non-volatile memory holding the store. Required.
	Memory nvm.Memory

	// Capacity is the number of slots, master included.
	// Default: as many slots as fit in Memory, up to MaxCapacity.
	Capacity int

	// ReadOnly opens the store without writing to Memory. Mutations
	// return ErrReadOnly.
	ReadOnly bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// SizeFor returns the number of memory bytes needed for capacity slots.
func SizeFor(capacity int) int {
	return 1 + RecordSize*capacity
}

// SlotAddr returns the memory address of slot k (1-based).
func SlotAddr(k int) int {
	return 1 + RecordSize*(k-1)
}

// Store is the persistent record store.
//
// Thread Safety: All methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	mem      nvm.Memory
	capacity int
	count    int
	master   credential.ID
	readOnly bool
	log      logging.LeveledLogger
}

// Open loads a store from config.Memory.
//
// An erased image (count byte ErasedCount) is treated as factory condition
// and its count rewritten to zero. Any other count above the capacity is
// rejected with ErrInvalidCapacity and the memory is left untouched.
func Open(config Config) (*Store, error) {
	if config.Memory == nil {
		return nil, ErrMemoryRequired
	}

	fit := (config.Memory.Len() - 1) / RecordSize
	if fit > MaxCapacity {
		fit = MaxCapacity
	}
	capacity := config.Capacity
	if capacity == 0 {
		capacity = fit
	}
	if capacity < 1 || capacity > fit {
		return nil, fmt.Errorf("%w: %d slots, memory of %d bytes fits %d",
			ErrInvalidCapacity, capacity, config.Memory.Len(), fit)
	}

	s := &Store{
		mem:      config.Memory,
		capacity: capacity,
		readOnly: config.ReadOnly,
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("store")
	}

	var n [1]byte
	if err := s.mem.Read(CountAddr, n[:]); err != nil {
		return nil, fmt.Errorf("store: read count: %w", err)
	}
	s.count = int(n[0])

	switch {
	case s.count == ErasedCount:
		if s.log != nil {
			s.log.Warn("erased image, treating store as empty")
		}
		s.count = 0
		if !s.readOnly {
			if err := s.writeCount(0); err != nil {
				return nil, err
			}
		}
	case s.count > s.capacity:
		return nil, fmt.Errorf("%w: store holds %d, capacity %d",
			ErrInvalidCapacity, s.count, s.capacity)
	}

	if s.count >= MasterSlot {
		id, err := s.readSlot(MasterSlot)
		if err != nil {
			return nil, err
		}
		s.master = id
	}

	if s.log != nil {
		s.log.Infof("opened store: %d of %d slots used", s.count, s.capacity)
	}
	return s, nil
}

// Count returns the number of stored credentials, master included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Capacity returns the number of slots.
func (s *Store) Capacity() int {
	return s.capacity
}

// Master returns the master credential, or false if the store is empty.
func (s *Store) Master() (credential.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count < MasterSlot {
		return credential.ID{}, false
	}
	return s.master, true
}

// IsMaster returns true if id is the master credential.
func (s *Store) IsMaster(id credential.ID) bool {
	master, ok := s.Master()
	return ok && master == id
}

// Read returns the identifier in slot (1-based).
//
// Returns ErrOutOfRange if slot is not in 1..Count().
func (s *Store) Read(slot int) (credential.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if slot < 1 || slot > s.count {
		return credential.ID{}, fmt.Errorf("%w: %d of %d", ErrOutOfRange, slot, s.count)
	}
	return s.readSlot(slot)
}

// Find returns the first slot holding id.
//
// Returns ErrNotFound if id is not stored.
func (s *Store) Find(id credential.ID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(id)
}

// List returns the identifiers in slots 1..Count(), master first.
func (s *Store) List() ([]credential.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]credential.ID, 0, s.count)
	for k := 1; k <= s.count; k++ {
		id, err := s.readSlot(k)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Append stores id in the next free slot.
//
// Returns ErrFull if the store is at capacity and ErrAlreadyPresent if id
// is already stored. Append must not be used for the master credential;
// use SetMaster.
func (s *Store) Append(id credential.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}

	if s.count >= s.capacity {
		return ErrFull
	}
	if _, err := s.find(id); err == nil {
		return ErrAlreadyPresent
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	slot := s.count + 1
	if err := s.writeSlot(slot, id); err != nil {
		return err
	}
	if err := s.writeCount(slot); err != nil {
		return err
	}
	if slot == MasterSlot {
		s.master = id
	}

	if s.log != nil {
		s.log.Debugf("appended %s at slot %d", id, slot)
	}
	return nil
}

// Remove deletes the credential in slot and compacts the tail.
//
// Out-of-range slots are ignored.
func (s *Store) Remove(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}

	if slot < 1 || slot > s.count {
		return nil
	}

	for k := slot; k < s.count; k++ {
		next, err := s.readSlot(k + 1)
		if err != nil {
			return err
		}
		if err := s.writeSlot(k, next); err != nil {
			return err
		}
	}

	if err := s.writeCount(s.count - 1); err != nil {
		return err
	}

	if slot == MasterSlot {
		s.master = credential.ID{}
		if s.count >= MasterSlot {
			id, err := s.readSlot(MasterSlot)
			if err != nil {
				return err
			}
			s.master = id
		}
	}

	if s.log != nil {
		s.log.Debugf("removed slot %d, %d remaining", slot, s.count)
	}
	return nil
}

// SetMaster overwrites slot 1 with id.
//
// If the store is empty the count becomes 1; otherwise the count and all
// other slots are unchanged.
func (s *Store) SetMaster(id credential.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}

	if err := s.writeSlot(MasterSlot, id); err != nil {
		return err
	}
	s.master = id

	if s.count == 0 {
		if err := s.writeCount(1); err != nil {
			return err
		}
	}

	if s.log != nil {
		s.log.Infof("master set to %s", id)
	}
	return nil
}

// FactoryReset empties the store. Slot bytes are left in place but become
// unreachable.
func (s *Store) FactoryReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}

	if err := s.writeCount(0); err != nil {
		return err
	}
	s.master = credential.ID{}

	if s.log != nil {
		s.log.Warn("factory reset: store cleared")
	}
	return nil
}

func (s *Store) find(id credential.ID) (int, error) {
	for k := 1; k <= s.count; k++ {
		stored, err := s.readSlot(k)
		if err != nil {
			return 0, err
		}
		if stored == id {
			return k, nil
		}
	}
	return 0, ErrNotFound
}

func (s *Store) readSlot(k int) (credential.ID, error) {
	var id credential.ID
	if err := s.mem.Read(SlotAddr(k), id[:]); err != nil {
		return id, fmt.Errorf("store: read slot %d: %w", k, err)
	}
	return id, nil
}

func (s *Store) writeSlot(k int, id credential.ID) error {
	if err := s.mem.Write(SlotAddr(k), id[:]); err != nil {
		return fmt.Errorf("store: write slot %d: %w", k, err)
	}
	return nil
}

func (s *Store) writeCount(n int) error {
	if err := s.mem.Write(CountAddr, []byte{byte(n)}); err != nil {
		return fmt.Errorf("store: write count: %w", err)
	}
	s.count = n
	return nil
}
