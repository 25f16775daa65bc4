package semacache

import (
	"testing"

	"github.com/veezhang/godispatch/internal/ksema"
)

func TestGetPutRoundTrip(t *testing.T) {
	h := Get()
	h.Signal()
	if got := h.Wait(ksema.Immediate); got != ksema.Ok {
		t.Fatalf("Wait(Immediate) after Signal = %v, want Ok", got)
	}
	Put(h)

	h2 := Get()
	defer Put(h2)
	if got := h2.Wait(ksema.Immediate); got != ksema.TimedOut {
		t.Fatalf("fresh/reused handle should start with no pending signal, got %v", got)
	}
}
