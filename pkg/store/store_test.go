package store

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/backkem/rfidlock/pkg/credential"
	"github.com/backkem/rfidlock/pkg/nvm"
)

// testID returns a distinct identifier for n.
func testID(n int) credential.ID {
	return credential.ID{0xC0, byte(n >> 16), byte(n >> 8), byte(n), 0x01}
}

// newTestStore opens a store with capacity slots over fresh RAM.
func newTestStore(t *testing.T, capacity int) (*Store, *nvm.RAM) {
	t.Helper()

	mem := nvm.NewRAM(SizeFor(capacity))
	s, err := Open(Config{Memory: mem, Capacity: capacity})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, mem
}

// mustList returns the stored identifiers or fails the test.
func mustList(t *testing.T, s *Store) []credential.ID {
	t.Helper()

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	return ids
}

func TestOpen(t *testing.T) {
	t.Run("empty memory", func(t *testing.T) {
		s, _ := newTestStore(t, 10)
		if s.Count() != 0 {
			t.Errorf("Count() = %d, want 0", s.Count())
		}
		if s.Capacity() != 10 {
			t.Errorf("Capacity() = %d, want 10", s.Capacity())
		}
		if _, ok := s.Master(); ok {
			t.Error("empty store should have no master")
		}
	})

	t.Run("default capacity fills memory", func(t *testing.T) {
		s, err := Open(Config{Memory: nvm.NewRAM(SizeFor(30) + 3)})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Capacity() != 30 {
			t.Errorf("Capacity() = %d, want 30", s.Capacity())
		}
	})

	t.Run("default capacity clamps to count byte", func(t *testing.T) {
		s, err := Open(Config{Memory: nvm.NewRAM(4096)})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Capacity() != MaxCapacity {
			t.Errorf("Capacity() = %d, want %d", s.Capacity(), MaxCapacity)
		}
	})

	t.Run("capacity too large for memory", func(t *testing.T) {
		_, err := Open(Config{Memory: nvm.NewRAM(SizeFor(5)), Capacity: 6})
		if !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("Open = %v, want ErrInvalidCapacity", err)
		}
	})

	t.Run("nil memory", func(t *testing.T) {
		if _, err := Open(Config{}); !errors.Is(err, ErrMemoryRequired) {
			t.Errorf("Open = %v, want ErrMemoryRequired", err)
		}
	})

	t.Run("erased image treated as empty", func(t *testing.T) {
		mem := nvm.NewRAM(SizeFor(10))
		mem.Fill(0xFF)
		s, err := Open(Config{Memory: mem, Capacity: 10})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Count() != 0 {
			t.Errorf("Count() = %d, want 0", s.Count())
		}
		if mem.Bytes()[CountAddr] != 0 {
			t.Errorf("count byte = %d, want rewritten to 0", mem.Bytes()[CountAddr])
		}
	})

	t.Run("erased image at max capacity", func(t *testing.T) {
		mem := nvm.NewRAM(SizeFor(MaxCapacity))
		mem.Fill(ErasedCount)
		s, err := Open(Config{Memory: mem, Capacity: MaxCapacity})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Count() != 0 {
			t.Errorf("Count() = %d, want 0", s.Count())
		}
		if _, ok := s.Master(); ok {
			t.Error("erased store should have no master")
		}
	})

	t.Run("smaller capacity leaves image intact", func(t *testing.T) {
		mem := nvm.NewRAM(SizeFor(10))
		s, err := Open(Config{Memory: mem, Capacity: 10})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := s.SetMaster(testID(1)); err != nil {
			t.Fatalf("SetMaster failed: %v", err)
		}
		for i := 2; i <= 6; i++ {
			if err := s.Append(testID(i)); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}
		before := append([]byte(nil), mem.Bytes()...)

		if _, err := Open(Config{Memory: mem, Capacity: 4}); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("Open with capacity 4 = %v, want ErrInvalidCapacity", err)
		}
		if !bytes.Equal(mem.Bytes(), before) {
			t.Error("Open with a smaller capacity modified memory")
		}

		reopened, err := Open(Config{Memory: mem, Capacity: 10})
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		if reopened.Count() != 6 {
			t.Errorf("Count() = %d, want 6", reopened.Count())
		}
	})

	t.Run("read-only", func(t *testing.T) {
		mem := nvm.NewRAM(SizeFor(4))
		mem.Fill(ErasedCount)
		writes := mem.Writes()

		s, err := Open(Config{Memory: mem, Capacity: 4, ReadOnly: true})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if s.Count() != 0 {
			t.Errorf("Count() = %d, want 0", s.Count())
		}
		if mem.Writes() != writes || mem.Bytes()[CountAddr] != ErasedCount {
			t.Error("read-only Open wrote to memory")
		}

		mutations := map[string]func() error{
			"SetMaster":    func() error { return s.SetMaster(testID(1)) },
			"Append":       func() error { return s.Append(testID(2)) },
			"Remove":       func() error { return s.Remove(1) },
			"FactoryReset": s.FactoryReset,
		}
		for name, fn := range mutations {
			if err := fn(); !errors.Is(err, ErrReadOnly) {
				t.Errorf("%s = %v, want ErrReadOnly", name, err)
			}
		}
	})

	t.Run("reopen restores master and members", func(t *testing.T) {
		s, mem := newTestStore(t, 10)
		master := testID(1)
		if err := s.SetMaster(master); err != nil {
			t.Fatalf("SetMaster failed: %v", err)
		}
		if err := s.Append(testID(2)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		reopened, err := Open(Config{Memory: mem, Capacity: 10})
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		if reopened.Count() != 2 {
			t.Errorf("Count() = %d, want 2", reopened.Count())
		}
		if got, ok := reopened.Master(); !ok || got != master {
			t.Errorf("Master() = %v, %v; want %v", got, ok, master)
		}
	})
}

func TestLayout(t *testing.T) {
	s, mem := newTestStore(t, 4)

	master := credential.ID{0x11, 0x12, 0x13, 0x14, 0x15}
	member := credential.ID{0x21, 0x22, 0x23, 0x24, 0x25}
	if err := s.SetMaster(master); err != nil {
		t.Fatalf("SetMaster failed: %v", err)
	}
	if err := s.Append(member); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	want := []byte{
		0x02,
		0x11, 0x12, 0x13, 0x14, 0x15,
		0x21, 0x22, 0x23, 0x24, 0x25,
		0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00,
	}
	if got := mem.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("image =\n%x\nwant\n%x", got, want)
	}

	if SlotAddr(1) != 1 || SlotAddr(2) != 6 || SlotAddr(4) != 16 {
		t.Errorf("SlotAddr mismatch: %d %d %d", SlotAddr(1), SlotAddr(2), SlotAddr(4))
	}
}

func TestRead(t *testing.T) {
	s, _ := newTestStore(t, 4)
	_ = s.SetMaster(testID(1))
	_ = s.Append(testID(2))

	got, err := s.Read(2)
	if err != nil {
		t.Fatalf("Read(2) failed: %v", err)
	}
	if got != testID(2) {
		t.Errorf("Read(2) = %v, want %v", got, testID(2))
	}

	for _, slot := range []int{0, -1, 3, 4} {
		if _, err := s.Read(slot); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Read(%d) = %v, want ErrOutOfRange", slot, err)
		}
	}
}

func TestFind(t *testing.T) {
	s, _ := newTestStore(t, 4)
	_ = s.SetMaster(testID(1))
	_ = s.Append(testID(2))
	_ = s.Append(testID(3))

	slot, err := s.Find(testID(3))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if slot != 3 {
		t.Errorf("Find = %d, want 3", slot)
	}

	if _, err := s.Find(testID(9)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(absent) = %v, want ErrNotFound", err)
	}
}

func TestFind_IgnoresBytesBeyondCount(t *testing.T) {
	s, _ := newTestStore(t, 4)
	_ = s.SetMaster(testID(1))
	_ = s.Append(testID(2))
	_ = s.Remove(2)

	// Slot 2 still physically holds testID(2) but is beyond the count.
	if _, err := s.Find(testID(2)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(removed) = %v, want ErrNotFound", err)
	}
}

func TestAppend(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		s, _ := newTestStore(t, 3)
		_ = s.SetMaster(testID(1))
		if err := s.Append(testID(2)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := s.Append(testID(3)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := s.Append(testID(4)); !errors.Is(err, ErrFull) {
			t.Errorf("Append to full store = %v, want ErrFull", err)
		}
		if s.Count() != 3 {
			t.Errorf("Count() = %d, want 3", s.Count())
		}
	})

	t.Run("already present", func(t *testing.T) {
		s, _ := newTestStore(t, 3)
		_ = s.SetMaster(testID(1))
		_ = s.Append(testID(2))
		if err := s.Append(testID(2)); !errors.Is(err, ErrAlreadyPresent) {
			t.Errorf("Append duplicate = %v, want ErrAlreadyPresent", err)
		}
		if err := s.Append(testID(1)); !errors.Is(err, ErrAlreadyPresent) {
			t.Errorf("Append master = %v, want ErrAlreadyPresent", err)
		}
		if s.Count() != 2 {
			t.Errorf("Count() = %d, want 2", s.Count())
		}
	})
}

func TestRemove_Compaction(t *testing.T) {
	for remove := 1; remove <= 5; remove++ {
		s, _ := newTestStore(t, 8)
		_ = s.SetMaster(testID(1))
		for i := 2; i <= 5; i++ {
			if err := s.Append(testID(i)); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}
		before := mustList(t, s)

		if err := s.Remove(remove); err != nil {
			t.Fatalf("Remove(%d) failed: %v", remove, err)
		}

		after := mustList(t, s)
		if len(after) != 4 {
			t.Fatalf("Remove(%d): %d left, want 4", remove, len(after))
		}
		for i := 0; i < remove-1; i++ {
			if after[i] != before[i] {
				t.Errorf("Remove(%d): slot %d changed from %v to %v", remove, i+1, before[i], after[i])
			}
		}
		for i := remove - 1; i < 4; i++ {
			if after[i] != before[i+1] {
				t.Errorf("Remove(%d): slot %d = %v, want %v", remove, i+1, after[i], before[i+1])
			}
		}
		if _, err := s.Find(before[remove-1]); !errors.Is(err, ErrNotFound) {
			t.Errorf("Remove(%d): removed credential still found", remove)
		}
	}
}

func TestRemove_OutOfRangeIsNoop(t *testing.T) {
	s, mem := newTestStore(t, 4)
	_ = s.SetMaster(testID(1))
	_ = s.Append(testID(2))
	writes := mem.Writes()

	for _, slot := range []int{0, -3, 3, 100} {
		if err := s.Remove(slot); err != nil {
			t.Errorf("Remove(%d) = %v, want nil", slot, err)
		}
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
	if mem.Writes() != writes {
		t.Errorf("out-of-range Remove wrote to memory")
	}
}

func TestSetMaster(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		s, _ := newTestStore(t, 4)
		if err := s.SetMaster(testID(7)); err != nil {
			t.Fatalf("SetMaster failed: %v", err)
		}
		if s.Count() != 1 {
			t.Errorf("Count() = %d, want 1", s.Count())
		}
		if !s.IsMaster(testID(7)) {
			t.Error("IsMaster(new master) = false")
		}
	})

	t.Run("replacing keeps members", func(t *testing.T) {
		s, _ := newTestStore(t, 4)
		_ = s.SetMaster(testID(1))
		_ = s.Append(testID(2))
		_ = s.Append(testID(3))

		if err := s.SetMaster(testID(9)); err != nil {
			t.Fatalf("SetMaster failed: %v", err)
		}
		if s.Count() != 3 {
			t.Errorf("Count() = %d, want 3", s.Count())
		}
		ids := mustList(t, s)
		want := []credential.ID{testID(9), testID(2), testID(3)}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("slot %d = %v, want %v", i+1, ids[i], want[i])
			}
		}
		if s.IsMaster(testID(1)) {
			t.Error("old master still reported as master")
		}
	})
}

func TestFactoryReset(t *testing.T) {
	s, mem := newTestStore(t, 4)
	_ = s.SetMaster(testID(1))
	_ = s.Append(testID(2))

	if err := s.FactoryReset(); err != nil {
		t.Fatalf("FactoryReset failed: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
	if _, ok := s.Master(); ok {
		t.Error("master survived factory reset")
	}

	// Truncation, not erase: slot bytes remain.
	img := mem.Bytes()
	var slot2 credential.ID
	copy(slot2[:], img[SlotAddr(2):])
	if slot2 != testID(2) {
		t.Errorf("slot 2 bytes = %v, want untouched %v", slot2, testID(2))
	}
}

// TestContiguity applies random append/remove sequences and checks after
// every operation that the stored set matches a reference model.
func TestContiguity(t *testing.T) {
	const capacity = 12
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		s, mem := newTestStore(t, capacity)
		_ = s.SetMaster(testID(0))
		model := []credential.ID{testID(0)}

		for op := 0; op < 200; op++ {
			if rng.Intn(2) == 0 && len(model) < capacity {
				id := testID(1 + rng.Intn(30))
				err := s.Append(id)
				present := false
				for _, m := range model {
					if m == id {
						present = true
					}
				}
				switch {
				case present && !errors.Is(err, ErrAlreadyPresent):
					t.Fatalf("Append(present) = %v", err)
				case !present && err != nil:
					t.Fatalf("Append = %v", err)
				case !present:
					model = append(model, id)
				}
			} else if len(model) > 1 {
				slot := 2 + rng.Intn(len(model)-1)
				if err := s.Remove(slot); err != nil {
					t.Fatalf("Remove(%d) = %v", slot, err)
				}
				model = append(model[:slot-1], model[slot:]...)
			}

			ids := mustList(t, s)
			if s.Count() != len(model) || len(ids) != len(model) {
				t.Fatalf("round %d op %d: count %d, want %d", round, op, s.Count(), len(model))
			}
			seen := make(map[credential.ID]bool)
			for i, id := range ids {
				if id != model[i] {
					t.Fatalf("round %d op %d: slot %d = %v, want %v", round, op, i+1, id, model[i])
				}
				if seen[id] {
					t.Fatalf("round %d op %d: duplicate %v", round, op, id)
				}
				seen[id] = true
			}
			if int(mem.Bytes()[CountAddr]) != len(model) {
				t.Fatalf("persisted count %d, want %d", mem.Bytes()[CountAddr], len(model))
			}
		}
	}
}
