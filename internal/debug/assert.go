package debug

import (
	"fmt"
	"runtime"
)

// Assert panics when truth is false. Used for conditions that indicate a
// programming error rather than a runtime failure, for example a deadline
// call on a socket that is known to be open.
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("invalid assert args")
	}
	if truth {
		return
	}
	text := fmt.Sprintf("assertion failed(%s)", msg)
	// the caller's location would otherwise be buried mid-stack on
	// panic recovery
	if _, file, line, ok := runtime.Caller(1); ok {
		text = fmt.Sprintf("%s:%d: %s", file, line, text)
	}
	panic(text)
}
