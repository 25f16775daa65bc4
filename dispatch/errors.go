package dispatch

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrTimeout is returned by Semaphore.Wait and Group.Wait when the
// supplied deadline passes without a matching signal/quiescence. It is
// the only error this package ever returns to a caller — every other
// failure mode is a programmer misuse and goes through abort instead.
var ErrTimeout = errors.New("dispatch: wait timed out")

// logger receives the fatal diagnostic before the process aborts, and
// nothing else: every other operation stays silent on success. It
// defaults to a no-op logger so importing this package has no side
// effects until a caller opts in with SetLogger.
var logger = zap.NewNop()

// SetLogger installs the structured logger used for fatal-abort
// diagnostics. Safe to call once during process startup; not meant to
// be swapped concurrently with live semaphores.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// abortFunc is the process-abort hook: fatal misuses call it and never
// return. It is a package variable rather than a hard-coded os.Exit so
// tests can substitute a panic-and-recover hook to assert on fatal
// conditions without killing the test binary.
var abortFunc = defaultAbort

func defaultAbort(invariant string, fields ...zap.Field) {
	logger.Error("dispatch: fatal misuse, aborting",
		append(fields, zap.String("invariant", invariant))...)
	os.Exit(1)
}

// abort reports a detected programmer misuse and never returns control
// to the caller: these are not recoverable, because internal state is
// already corrupt.
func abort(invariant string, fields ...zap.Field) {
	abortFunc(invariant, fields...)
	panic("dispatch: unreachable after abort: " + invariant)
}
