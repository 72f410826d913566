// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs fn in a goroutine with panic recovery.
// A panic is logged with its stack and the process keeps running.
//
//	common.SafeGo(logger, "reapSessions", func() {
//	    manager.CloseStale(ctx, maxAge)
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				LogPanic(logger, name, r)
			}
		}()

		fn()
	}()
}

// LogPanic logs a recovered panic value together with the current stack.
func LogPanic(logger arbor.ILogger, name string, recovered interface{}) {
	stack := StackTrace()
	if logger == nil {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, recovered, stack)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", recovered)).
		Str("stack", stack).
		Msg("Recovered from panic in goroutine - continuing service operation")
}

// StackTrace returns the calling goroutine's stack, truncated to 4KB
func StackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
