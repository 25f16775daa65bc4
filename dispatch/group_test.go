package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veezhang/godispatch/internal/ksema"
)

func TestGroupEnterLeaveNoOp(t *testing.T) {
	g := NewGroup()
	g.Enter()
	g.Leave()
	require.NoError(t, g.Wait(ksema.Immediate))
}

func TestGroupJoin(t *testing.T) {
	g := NewGroup()
	const n = 5
	for i := 0; i < n; i++ {
		g.Enter()
	}
	for i := 0; i < n; i++ {
		go func() {
			time.Sleep(time.Millisecond)
			g.Leave()
		}()
	}
	require.NoError(t, g.Wait(ksema.After(2*time.Second)))
	require.NoError(t, g.Wait(ksema.Immediate))
}

func TestGroupWaitImmediateOnBusyGroup(t *testing.T) {
	g := NewGroup()
	g.Enter()
	require.ErrorIs(t, g.Wait(ksema.Immediate), ErrTimeout)
	g.Leave()
}

func TestGroupDoubleLeaveAborts(t *testing.T) {
	invariant := withAbortCapture(t)
	g := NewGroup()
	g.Enter()
	g.Leave()
	require.PanicsWithValue(t, "test-abort: unbalanced leave", func() {
		g.Leave()
	})
	require.Equal(t, "unbalanced leave", *invariant)
}

func TestGroupOverEnterAborts(t *testing.T) {
	invariant := withAbortCapture(t)
	g := NewGroup()
	g.sem.value.StoreRelaxed(0)
	require.PanicsWithValue(t, "test-abort: over-entered group", func() {
		g.Enter()
	})
	require.Equal(t, "over-entered group", *invariant)
}

func TestGroupNotifyOrdering(t *testing.T) {
	g := NewGroup()
	q := NewSerialGoQueue("test-notify")
	defer q.Close()

	var mu sync.Mutex
	var order []string
	record := func(tag string) {
		mu.Lock()
		order = append(order, tag)
		mu.Unlock()
	}

	g.Enter()
	g.Enter()
	g.Notify(q, func() { record("a") })
	g.Notify(q, func() { record("b") })
	g.Leave()
	g.Leave()

	require.NoError(t, g.Wait(ksema.After(time.Second)))
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b"}, order)
}

func TestGroupNotifyAfterAlreadyQuiescent(t *testing.T) {
	// Notify registered once the group is already quiescent still fires.
	g := NewGroup()
	done := make(chan struct{})
	g.Notify(NewGoQueue("immediate"), func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notification on an already-quiescent group never fired")
	}
}
