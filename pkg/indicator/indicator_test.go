package indicator

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/backkem/rfidlock/pkg/access"
	"github.com/backkem/rfidlock/pkg/gpio"
	"github.com/pion/logging"
)

type rgb struct {
	r, g, b *gpio.FakeOutput
}

func newRGB() rgb {
	return rgb{&gpio.FakeOutput{}, &gpio.FakeOutput{}, &gpio.FakeOutput{}}
}

func (c rgb) color() Color {
	var out Color
	if c.r.Level() {
		out |= Red
	}
	if c.g.Level() {
		out |= Green
	}
	if c.b.Level() {
		out |= Blue
	}
	return out
}

// newTestLED returns an LED with a 1ms step and a channel of played intents.
func newTestLED(t *testing.T, pins rgb, queue int) (*LED, <-chan access.Intent) {
	t.Helper()
	played := make(chan access.Intent, 16)
	l := NewLED(LEDConfig{
		Red:       pins.r,
		Green:     pins.g,
		Blue:      pins.b,
		QueueSize: queue,
		Step:      time.Millisecond,
		OnPlayed:  func(i access.Intent) { played <- i },
	})
	t.Cleanup(func() { l.Close() })
	return l, played
}

func waitPlayed(t *testing.T, played <-chan access.Intent, want access.Intent) {
	t.Helper()
	select {
	case got := <-played:
		if got != want {
			t.Fatalf("played %s, want %s", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", want)
	}
}

func TestLED_IdleColors(t *testing.T) {
	pins := newRGB()
	l, played := newTestLED(t, pins, 4)

	if c := pins.color(); c != Blue {
		t.Errorf("initial color = %s, want Blue", c)
	}

	l.Indicate(access.IntentAdminMode)
	waitPlayed(t, played, access.IntentAdminMode)
	if c := pins.color(); c != Amber {
		t.Errorf("admin idle = %s, want Amber", c)
	}

	l.Indicate(access.IntentAdded)
	waitPlayed(t, played, access.IntentAdded)
	if c := pins.color(); c != Amber {
		t.Errorf("idle after Added = %s, want Amber", c)
	}

	l.Indicate(access.IntentArmed)
	waitPlayed(t, played, access.IntentArmed)
	if c := pins.color(); c != Blue {
		t.Errorf("armed idle = %s, want Blue", c)
	}

	// A button reset out of admin mode drops the admin color.
	l.Indicate(access.IntentAdminMode)
	waitPlayed(t, played, access.IntentAdminMode)
	l.Indicate(access.IntentReset)
	waitPlayed(t, played, access.IntentReset)
	if c := pins.color(); c != Blue {
		t.Errorf("idle after Reset = %s, want Blue", c)
	}
}

func TestLED_GrantShowsGreen(t *testing.T) {
	pins := newRGB()
	l, played := newTestLED(t, pins, 4)

	l.Indicate(access.IntentGrant)
	waitPlayed(t, played, access.IntentGrant)

	sawGreenOnly := false
	h := pins.g.History()
	for i, on := range h {
		if on && !pins.r.History()[i] {
			sawGreenOnly = true
		}
	}
	if !sawGreenOnly {
		t.Errorf("green history %v never lit alone", h)
	}
}

func TestLED_DropsWhenFull(t *testing.T) {
	pins := newRGB()
	played := make(chan access.Intent, 64)
	l := NewLED(LEDConfig{
		Green:     pins.g,
		QueueSize: 1,
		Step:      20 * time.Millisecond,
		OnPlayed:  func(i access.Intent) { played <- i },
	})
	defer l.Close()

	start := time.Now()
	for i := 0; i < 20; i++ {
		l.Indicate(access.IntentGrant)
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("Indicate blocked for %s", d)
	}

	time.Sleep(400 * time.Millisecond)
	l.Close()
	close(played)
	n := 0
	for range played {
		n++
	}
	if n == 0 || n >= 20 {
		t.Errorf("played %d intents, want some dropped", n)
	}
}

func TestLED_CloseTurnsOff(t *testing.T) {
	pins := newRGB()
	l := NewLED(LEDConfig{Red: pins.r, Green: pins.g, Blue: pins.b})
	l.Indicate(access.IntentDeny)
	l.Close()
	l.Close()

	if c := pins.color(); c != Off {
		t.Errorf("color after Close = %s, want Off", c)
	}
	l.Indicate(access.IntentGrant)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	factory := logging.NewDefaultLoggerFactory()
	factory.Writer = &buf
	factory.DefaultLogLevel = logging.LogLevelInfo

	Multi{NewLog(factory), nil, NewLog(nil)}.Indicate(access.IntentDeny)

	if !strings.Contains(buf.String(), "intent Deny") {
		t.Errorf("log output %q missing intent", buf.String())
	}
}

func TestColorString(t *testing.T) {
	if Amber.String() != "Amber" || Color(7).String() != "Unknown" {
		t.Error("Color.String mismatch")
	}
}
