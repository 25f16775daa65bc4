package dispatch

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veezhang/godispatch/internal/ksema"
)

// withAbortCapture replaces abortFunc for the duration of the test so a
// detected fatal misuse can be asserted on instead of exiting the
// process, per the testability note in errors.go.
func withAbortCapture(t *testing.T) *string {
	t.Helper()
	var captured string
	prev := abortFunc
	abortFunc = func(invariant string, _ ...zap.Field) {
		captured = invariant
		panic("test-abort: " + invariant)
	}
	t.Cleanup(func() { abortFunc = prev })
	return &captured
}

func TestNewSemaphoreNegative(t *testing.T) {
	require.Nil(t, NewSemaphore(-1))
}

func TestSemaphoreSignalWaitRoundTrip(t *testing.T) {
	sem := NewSemaphore(0)
	sem.Signal()
	require.NoError(t, sem.Wait(ksema.Immediate))
	sem.Dispose()
}

func TestSemaphoreSignalWaitCounting(t *testing.T) {
	// value_after(N signals, M waits) = initial + N - M, N == M here.
	sem := NewSemaphore(0)
	const n = 50
	for i := 0; i < n; i++ {
		sem.Signal()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, sem.Wait(ksema.Immediate))
	}
	require.Equal(t, int64(0), sem.value.LoadRelaxed())
	sem.Dispose()
}

func TestSemaphoreWaitImmediateRestoresValue(t *testing.T) {
	sem := NewSemaphore(0)
	require.ErrorIs(t, sem.Wait(ksema.Immediate), ErrTimeout)
	require.Equal(t, int64(0), sem.value.LoadRelaxed())
	sem.Dispose()
}

func TestSemaphoreBoundedResource(t *testing.T) {
	sem := NewSemaphore(2)
	require.NoError(t, sem.Wait(ksema.Forever))
	require.NoError(t, sem.Wait(ksema.Forever))

	start := time.Now()
	err := sem.Wait(ksema.After(80 * time.Millisecond))
	require.ErrorIs(t, err, ErrTimeout)
	require.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sem.Signal()
	}()
	wg.Wait()

	require.NoError(t, sem.Wait(ksema.After(time.Second)))
	// Release both slots still held so Dispose sees value == orig.
	sem.Signal()
	sem.Signal()
	sem.Dispose()
}

func TestSemaphoreProducerConsumer(t *testing.T) {
	sem := NewSemaphore(0)
	var wg sync.WaitGroup
	const workers = 10
	wg.Add(2 * workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			sem.Signal()
		}()
	}
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, sem.Wait(ksema.Forever))
		}()
	}
	wg.Wait()
	require.Equal(t, int64(0), sem.value.LoadRelaxed())
	sem.Dispose()
}

func TestSemaphoreDisposeInUseAborts(t *testing.T) {
	invariant := withAbortCapture(t)
	sem := NewSemaphore(1)
	require.NoError(t, sem.Wait(ksema.Immediate))

	require.PanicsWithValue(t, "test-abort: destroyed in use", func() {
		sem.Dispose()
	})
	require.Equal(t, "destroyed in use", *invariant)
}

func TestSemaphoreUnbalancedSignalAborts(t *testing.T) {
	invariant := withAbortCapture(t)
	sem := NewSemaphore(0)
	sem.value.StoreRelaxed(math.MaxInt64) // next Signal overflows to math.MinInt64

	require.Panics(t, func() {
		sem.Signal()
	})
	require.Equal(t, "unbalanced signal", *invariant)
}
