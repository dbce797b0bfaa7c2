// Package fakeserver runs an in-process Source query server over a real
// UDP socket for tests. A scripted handler decides which datagrams go
// back for each request; helpers build correctly wrapped simple,
// fragmented and challenge replies.
package fakeserver

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/blukai/steamquery/internal/a2s"
	"github.com/blukai/steamquery/internal/bytebuf"
	"github.com/blukai/steamquery/internal/debug"
	"github.com/phuslu/log"
)

// Handler inspects one request payload (wrapper header already stripped)
// and returns the datagrams to send back, verbatim. Returning nothing
// makes the server stay silent so timeout paths can be exercised.
type Handler func(request []byte) [][]byte

type Server struct {
	conn    *net.UDPConn
	readBuf []byte

	logger  *log.Logger
	handler Handler

	mu       sync.Mutex
	requests [][]byte
}

func New(handler Handler, logger *log.Logger) (*Server, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, err
	}

	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	return &Server{
		conn:    conn,
		readBuf: make([]byte, 2048),
		logger:  logger,
		handler: handler,
	}, nil
}

// Addr is useful to reach the server after it was bound to port 0.
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// RequestCount reports how many requests arrived so far.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns copies of all request payloads seen so far.
func (s *Server) Requests() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.requests))
	copy(out, s.requests)
	return out
}

// Run serves until the context is cancelled, then closes the socket.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return s.conn.Close()
		default:
			err := s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			debug.Assert(err == nil)

			n, addr, err := s.conn.ReadFromUDP(s.readBuf)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				s.logger.Error().Msgf("could not read from udp: %v", err)
				continue
			}
			if n < 4 || binary.LittleEndian.Uint32(s.readBuf[:4]) != a2s.HeaderSimple {
				s.logger.Error().Msgf("invalid request datagram (%d bytes)", n)
				continue
			}

			request := make([]byte, n-4)
			copy(request, s.readBuf[4:n])

			s.mu.Lock()
			s.requests = append(s.requests, request)
			s.mu.Unlock()

			for _, datagram := range s.handler(request) {
				if _, err := s.conn.WriteToUDP(datagram, addr); err != nil {
					s.logger.Error().Msgf("could not write to %v: %v", addr, err)
				}
			}
		}
	}
}

// Simple wraps a response payload in the single-datagram header.
func Simple(payload []byte) []byte {
	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint32(a2s.HeaderSimple)
	w.WriteBytes(payload)
	return w.Bytes()
}

// Challenge builds a challenge-response datagram for the given value.
func Challenge(challenge int32) []byte {
	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint32(a2s.HeaderSimple)
	w.WriteUint8(a2s.TypeChallenge)
	w.WriteInt32(challenge)
	return w.Bytes()
}

// Fragments splits a response payload across the given parts, wrapping
// each in the multi-datagram header with the shared message id. Parts are
// numbered in argument order; callers shuffle them to test out-of-order
// delivery.
func Fragments(id uint32, parts ...[]byte) [][]byte {
	datagrams := make([][]byte, 0, len(parts))
	for i, part := range parts {
		w := bytebuf.NewWriter(binary.LittleEndian)
		w.WriteUint32(a2s.HeaderMulti)
		w.WriteUint32(id)
		w.WriteUint8(uint8(len(parts)))
		w.WriteUint8(uint8(i))
		w.WriteUint16(1248)
		w.WriteBytes(part)
		datagrams = append(datagrams, w.Bytes())
	}
	return datagrams
}

// RespondWith answers every request with the same set of datagrams.
func RespondWith(datagrams ...[]byte) Handler {
	return func([]byte) [][]byte {
		return datagrams
	}
}

// ChallengeThen issues a challenge for any request that does not carry
// the expected challenge value yet, and delegates to next once it does.
func ChallengeThen(challenge int32, next Handler) Handler {
	return func(request []byte) [][]byte {
		if hasChallenge(request, challenge) {
			return next(request)
		}
		return [][]byte{Challenge(challenge)}
	}
}

// AlwaysChallenge keeps answering with fresh challenge values no matter
// what the request carries.
func AlwaysChallenge() Handler {
	var n int32
	return func([]byte) [][]byte {
		n++
		return [][]byte{Challenge(n)}
	}
}

// hasChallenge reports whether the request's trailing 4 bytes echo the
// expected challenge.
func hasChallenge(request []byte, challenge int32) bool {
	if len(request) < 4 {
		return false
	}
	tail := request[len(request)-4:]
	return int32(binary.LittleEndian.Uint32(tail)) == challenge
}
