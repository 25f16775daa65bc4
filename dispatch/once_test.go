package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnceRunsExactlyOnce(t *testing.T) {
	var once Once
	var counter int64
	var wg sync.WaitGroup
	const goroutines = 32

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			once.Do(func() { atomic.AddInt64(&counter, 1) })
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, counter)
}

func TestOnceCalledTwiceSequentially(t *testing.T) {
	var once Once
	var calls int
	once.Do(func() { calls++ })
	once.Do(func() { calls++ })
	require.Equal(t, 1, calls)
}

func TestOnceWaitersObserveSideEffects(t *testing.T) {
	var once Once
	var value int
	var wg sync.WaitGroup
	const goroutines = 16

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			once.Do(func() { value = 42 })
			require.Equal(t, 42, value)
		}()
	}
	wg.Wait()
}

func TestOnceFastPathAfterDone(t *testing.T) {
	var once Once
	once.Do(func() {})
	require.True(t, once.state.Load() == doneMarker)
	// Fast path: no panics, no blocking, regardless of caller count.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			once.Do(func() { t.Fatal("thunk ran again after Done") })
		}()
	}
	wg.Wait()
}
