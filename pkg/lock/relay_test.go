package lock

import (
	"errors"
	"testing"

	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/gpio"
)

// Verify Relay implements access.Actuator.
var _ access.Actuator = (*Relay)(nil)

// failingOutput fails every write.
type failingOutput struct{}

func (failingOutput) Write(bool) error { return errors.New("coil open") }

func TestNew(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrOutputRequired) {
		t.Errorf("New = %v, want ErrOutputRequired", err)
	}

	out := &gpio.FakeOutput{}
	r, err := New(Config{Output: out})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if r.Energized() {
		t.Error("new relay is energized")
	}
	if h := out.History(); len(h) != 1 || h[0] {
		t.Errorf("initial writes = %v, want [false]", h)
	}
}

func TestRelay_StateChanges(t *testing.T) {
	out := &gpio.FakeOutput{}
	var changes []bool
	r, _ := New(Config{
		Output:        out,
		OnStateChange: func(on bool) { changes = append(changes, on) },
	})

	steps := []struct {
		name string
		op   func() error
		want bool
	}{
		{"energize", r.Energize, true},
		{"energize again", r.Energize, true},
		{"de-energize", r.DeEnergize, false},
		{"de-energize again", r.DeEnergize, false},
	}
	for _, s := range steps {
		if err := s.op(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if r.Energized() != s.want || out.Level() != s.want {
			t.Errorf("%s: energized=%v level=%v, want %v", s.name, r.Energized(), out.Level(), s.want)
		}
	}

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("callbacks = %v, want [true false]", changes)
	}
	// Initial write plus one per real transition.
	if n := len(out.History()); n != 3 {
		t.Errorf("writes = %d, want 3", n)
	}
}

func TestRelay_ActiveLow(t *testing.T) {
	out := &gpio.FakeOutput{}
	r, _ := New(Config{Output: gpio.ActiveLowOutput{Pin: out}})
	if !out.Level() {
		t.Error("active-low relay should idle high")
	}
	r.Energize()
	if out.Level() {
		t.Error("active-low relay should drive low when energized")
	}
}

func TestRelay_WriteError(t *testing.T) {
	if _, err := New(Config{Output: failingOutput{}}); err == nil {
		t.Error("New succeeded with failing output")
	}
}
