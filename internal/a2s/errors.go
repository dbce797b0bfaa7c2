package a2s

import "errors"

// Error sentinels for the protocol engine. Parse-level buffer exhaustion
// (bytebuf.ErrExhausted) is wrapped together with ErrMalformed whenever
// it escapes a payload parse, so errors.Is against either sentinel works
// at the caller.
var (
	// ErrMalformed covers invalid wrapper headers, too-short datagrams,
	// unexpected response type bytes, truncated payloads and an
	// exceeded challenge-retry bound.
	ErrMalformed = errors.New("a2s: malformed message")

	// ErrTimeout means no complete response arrived within the
	// configured window.
	ErrTimeout = errors.New("a2s: request timed out")

	// ErrSend means a transmission-level failure; the transport closes
	// its socket when it raises this.
	ErrSend = errors.New("a2s: send failed")
)
