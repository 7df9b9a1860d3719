package utils

import (
	"fmt"
	"runtime/debug"
)

// PanicError wraps a recovered panic value together with the stack
// captured at recovery time.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.Value, e.StackTrace)
}

// RecoverWithCallback recovers a panic in the deferring goroutine and
// hands it to callback as a *PanicError. Use it in a defer at the top
// of goroutines that must not crash the process.
func RecoverWithCallback(callback func(error)) {
	if r := recover(); r != nil {
		callback(&PanicError{Value: r, StackTrace: string(debug.Stack())})
	}
}
