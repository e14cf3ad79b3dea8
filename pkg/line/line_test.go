package line

import (
	"errors"
	"testing"
	"time"

	"github.com/backkem/rfidlock/pkg/codec"
	"github.com/backkem/rfidlock/pkg/credential"
)

var tagID = credential.ID{0x0A, 0x0B, 0x0C, 0x0D, 0x0E}

type result struct {
	f   codec.Frame
	err error
}

// startRead reads one frame from c in the background. The bridge only
// delivers to a blocked reader, so callers give it time to block.
func startRead(c codec.Codec) <-chan result {
	done := make(chan result, 1)
	go func() {
		f, err := c.ReadFrame()
		done <- result{f, err}
	}()
	time.Sleep(10 * time.Millisecond)
	return done
}

func wait(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return result{}
	}
}

func TestLine_AutoProcess(t *testing.T) {
	l := New()
	defer l.Close()

	if !l.AutoProcess() {
		t.Fatal("AutoProcess should be true by default")
	}

	done := startRead(codec.NewSerial(l.Reader()))
	if err := l.Present(tagID); err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	r := wait(t, done)
	if r.err != nil {
		t.Fatalf("ReadFrame failed: %v", r.err)
	}
	if r.f.ID != tagID || !r.f.Credential().Valid() {
		t.Errorf("frame = %+v, want valid %s", r.f, tagID)
	}
}

func TestLine_ManualProcess(t *testing.T) {
	l := NewWithConfig(Config{AutoProcess: false})
	defer l.Close()

	if l.AutoProcess() {
		t.Fatal("AutoProcess should be false")
	}

	s := codec.NewSerial(l.Reader())
	done := startRead(s)
	if err := l.Present(tagID); err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	select {
	case <-done:
		t.Fatal("frame delivered without Process()")
	case <-time.After(50 * time.Millisecond):
	}

	if n := l.Process(); n != 1 {
		t.Errorf("Process() = %d, want 1", n)
	}
	if r := wait(t, done); r.err != nil || r.f.ID != tagID {
		t.Errorf("frame = %+v, %v", r.f, r.err)
	}

	done = startRead(s)
	if err := l.PresentRaw([]byte("\x02BAD\x03")); err != nil {
		t.Fatalf("PresentRaw failed: %v", err)
	}
	l.Process()
	if r := wait(t, done); !errors.Is(r.err, codec.ErrMalformedFrame) {
		t.Errorf("err = %v, want ErrMalformedFrame", r.err)
	}
}

func TestLine_ToggleAutoProcess(t *testing.T) {
	l := New()
	defer l.Close()

	l.SetAutoProcess(false)
	if l.AutoProcess() {
		t.Fatal("AutoProcess should be false")
	}

	s := codec.NewSerial(l.Reader())
	done := startRead(s)
	_ = l.PresentCredential(credential.Credential{ID: tagID, Checksum: 0})
	if n := l.Tick(); n != 1 {
		t.Errorf("Tick() = %d, want 1", n)
	}
	r := wait(t, done)
	if r.err != nil {
		t.Fatalf("ReadFrame failed: %v", r.err)
	}
	if r.f.Credential().Valid() {
		t.Error("zero checksum frame should not validate")
	}

	l.SetAutoProcess(true)
	done = startRead(s)
	_ = l.Present(tagID)
	if r := wait(t, done); r.err != nil || r.f.ID != tagID {
		t.Errorf("auto-delivered frame = %+v, %v", r.f, r.err)
	}
}

func TestLine_CloseUnblocksReader(t *testing.T) {
	l := New()
	done := startRead(codec.NewSerial(l.Reader()))

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	if r := wait(t, done); r.err == nil {
		t.Error("ReadFrame after Close returned nil error")
	}
}
