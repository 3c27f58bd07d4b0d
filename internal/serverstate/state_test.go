package serverstate

import "testing"

func TestMemoryStoreStateTransitions(t *testing.T) {
	prev := active
	UseStore(NewMemoryStore())
	defer UseStore(prev)

	if got := GetState(); got != "ready" {
		t.Fatalf("initial state = %q; want %q", got, "ready")
	}
	if IsDraining() {
		t.Fatal("new store should not be draining")
	}

	SetState("not_ready")
	if got := GetState(); got != "not_ready" {
		t.Fatalf("state = %q; want %q", got, "not_ready")
	}

	StartDrain()
	if got := GetState(); got != "draining" {
		t.Fatalf("state after StartDrain = %q; want %q", got, "draining")
	}
	if !IsDraining() {
		t.Fatal("IsDraining = false; want true")
	}
}
