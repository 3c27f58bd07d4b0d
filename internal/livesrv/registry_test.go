package livesrv

import (
	"testing"
	"time"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	c := &Conn{SessionID: "s1", StudentID: 9, Subject: "reading", StartedAt: time.Now()}
	reg.Add(c)
	if reg.Count() != 1 {
		t.Fatalf("count = %d; want 1", reg.Count())
	}
	if c.State() != StateActive {
		t.Fatalf("state = %q; want %q", c.State(), StateActive)
	}

	c.setState(StateDraining)
	snap := reg.Snapshot()
	if len(snap) != 1 || snap[0].SessionID != "s1" || snap[0].State != StateDraining {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	reg.Remove("s1")
	if reg.Count() != 0 {
		t.Fatalf("count after remove = %d; want 0", reg.Count())
	}
}

func TestRegistryWaitForZero(t *testing.T) {
	reg := NewRegistry()
	c := &Conn{SessionID: "s1"}
	reg.Add(c)

	done := make(chan struct{})
	go func() {
		time.Sleep(150 * time.Millisecond)
		reg.Remove("s1")
	}()
	if !reg.WaitForZero(done) {
		t.Fatal("WaitForZero = false; want true after registry empties")
	}

	reg.Add(c)
	stop := make(chan struct{})
	close(stop)
	if reg.WaitForZero(stop) {
		t.Fatal("WaitForZero = true with a session still registered")
	}
}
