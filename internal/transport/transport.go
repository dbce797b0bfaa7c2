// Package transport owns one UDP socket per Transport and resolves
// exactly one logical response per request, reassembling multi-datagram
// replies and enforcing a per-request timeout.
package transport

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"net"
	"time"

	"github.com/blukai/steamquery/internal/a2s"
	"github.com/blukai/steamquery/internal/bytebuf"
	"github.com/blukai/steamquery/internal/debug"
	"github.com/phuslu/log"
)

const (
	DefaultTimeout    = 3 * time.Second
	DefaultBufferSize = 1400
)

type Config struct {
	// Timeout bounds one whole Request call, measured from its
	// invocation. Zero means DefaultTimeout.
	Timeout time.Duration
	// BufferSize is the per-datagram receive buffer. Zero means
	// DefaultBufferSize.
	BufferSize uint16
}

// Transport exchanges wrapped datagrams with one server over one UDP
// socket. It handles a single outstanding request at a time; issuing a
// second Request before the first returns is caller error.
type Transport struct {
	conn    *net.UDPConn
	readBuf []byte

	logger *log.Logger

	timeout time.Duration
	closed  bool
}

// Dial resolves the address and binds a fresh UDP socket to it.
func Dial(network, address string, cfg Config, logger *log.Logger) (*Transport, error) {
	addr, err := net.ResolveUDPAddr(network, address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve udp addr: %w", err)
	}

	conn, err := net.DialUDP(network, nil, addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial udp: %w", err)
	}

	// if logger is nil (which might be true in tests) => use default, but
	// silenced logger
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	return &Transport{
		conn:    conn,
		readBuf: make([]byte, cfg.BufferSize),
		logger:  logger,
		timeout: cfg.Timeout,
	}, nil
}

// Send prefixes the simple-response wrapper header and transmits the
// payload. A transmission failure closes the socket. Sends on a closed
// transport are dropped silently.
func (t *Transport) Send(payload []byte) error {
	if t.closed {
		t.logger.Debug().Msg("dropped send on closed transport")
		return nil
	}

	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint32(a2s.HeaderSimple)
	w.WriteBytes(payload)

	err := t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	debug.Assert(err == nil)

	if _, err := t.conn.Write(w.Bytes()); err != nil {
		t.logger.Error().Msgf("could not write: %v", err)
		_ = t.Close()
		return fmt.Errorf("%w: %w", a2s.ErrSend, err)
	}
	return nil
}

// Request sends the payload and blocks until exactly one logical response
// arrives or the timeout window, measured from the call, elapses.
// Multi-datagram replies are reassembled before being returned; the
// returned bytes never include the wrapper header.
func (t *Transport) Request(payload []byte) ([]byte, error) {
	if t.closed {
		return nil, fmt.Errorf("%w: transport closed", a2s.ErrSend)
	}

	deadline := time.Now().Add(t.timeout)
	if err := t.Send(payload); err != nil {
		return nil, err
	}

	// scoped to this one request so a stale fragment buffer can never
	// leak into the next call
	var asm a2s.Assembler

	for {
		err := t.conn.SetReadDeadline(deadline)
		debug.Assert(err == nil)

		n, err := t.conn.Read(t.readBuf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return nil, fmt.Errorf("%w after %s", a2s.ErrTimeout, t.timeout)
			}
			return nil, fmt.Errorf("could not read from udp: %w", err)
		}
		if n < 4 {
			return nil, fmt.Errorf("%w: datagram too short (%d bytes)", a2s.ErrMalformed, n)
		}

		datagram := t.readBuf[:n]
		header := binary.LittleEndian.Uint32(datagram[:4])

		switch header {
		case a2s.HeaderSimple:
			out := make([]byte, n-4)
			copy(out, datagram[4:])
			return out, nil

		case a2s.HeaderMulti:
			frag, err := a2s.ParseFragment(datagram[4:])
			if err != nil {
				return nil, err
			}
			if frag.Compressed && crc32.ChecksumIEEE(frag.Payload) != frag.Checksum {
				t.logger.Warn().
					Uint32("id", frag.ID).
					Msg("fragment checksum mismatch, keeping payload")
			}
			t.logger.Debug().
				Uint32("id", frag.ID).
				Int("number", int(frag.Number)).
				Int("count", int(frag.Count)).
				Msg("fragment received")
			if msg, done := asm.Add(frag); done {
				return msg, nil
			}

		default:
			return nil, fmt.Errorf("%w: invalid wrapper header %#08x", a2s.ErrMalformed, header)
		}
	}
}

// Close releases the socket. It is idempotent; closed transports drop
// sends and refuse requests without touching the socket again.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
