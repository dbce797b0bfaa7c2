// Package queryclient orchestrates the challenge-response handshake of
// the Source query protocol on top of a transport: it issues a query,
// echoes server challenges back with bounded retries, measures round-trip
// latency and owns the transport's lifecycle.
package queryclient

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/blukai/steamquery/internal/a2s"
	"github.com/blukai/steamquery/internal/bytebuf"
	"github.com/blukai/steamquery/internal/transport"
	"github.com/phuslu/log"
)

// DefaultMaxRetries bounds how many challenge replies are tolerated
// before a query is abandoned.
const DefaultMaxRetries = 5

type Config struct {
	// Timeout bounds each request/response exchange. Zero means
	// transport.DefaultTimeout.
	Timeout time.Duration
	// BufferSize is the per-datagram receive buffer. Zero means
	// transport.DefaultBufferSize.
	BufferSize uint16
	// Decoding selects the textual representation of wire strings.
	Decoding bytebuf.StringDecoding
	// MaxRetries bounds the challenge-retry loop. Zero means
	// DefaultMaxRetries.
	MaxRetries int
}

// Client issues one query against one server and then releases its
// socket. Independent clients are safe to use concurrently; a single
// client is not.
type Client struct {
	transport *transport.Transport
	logger    *log.Logger

	decoding   bytebuf.StringDecoding
	maxRetries int
}

// New opens a transport to host:port. The transport stays open until the
// first query method completes or Close is called.
func New(host string, port uint16, cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	address := net.JoinHostPort(host, strconv.Itoa(int(port)))
	t, err := transport.Dial("udp", address, transport.Config{
		Timeout:    cfg.Timeout,
		BufferSize: cfg.BufferSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not open transport: %w", err)
	}

	return &Client{
		transport:  t,
		logger:     logger,
		decoding:   cfg.Decoding,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Close releases the socket. Idempotent.
func (c *Client) Close() error {
	return c.transport.Close()
}

// QueryInfo performs an A2S_INFO exchange and closes the transport.
func (c *Client) QueryInfo() (*a2s.Info, error) {
	defer c.transport.Close()

	typ, r, ping, err := c.exchange(a2s.InfoQuery)
	if err != nil {
		return nil, err
	}
	info, err := a2s.ParseInfo(r, typ)
	if err != nil {
		return nil, err
	}
	info.Ping = ping
	return info, nil
}

// QueryPlayers performs an A2S_PLAYER exchange and closes the transport.
func (c *Client) QueryPlayers() (*a2s.PlayerList, error) {
	defer c.transport.Close()

	_, r, ping, err := c.exchange(a2s.PlayersQuery)
	if err != nil {
		return nil, err
	}
	list, err := a2s.ParsePlayers(r)
	if err != nil {
		return nil, err
	}
	list.Ping = ping
	return list, nil
}

// QueryRules performs an A2S_RULES exchange and closes the transport.
func (c *Client) QueryRules() (*a2s.Rules, error) {
	defer c.transport.Close()

	_, r, ping, err := c.exchange(a2s.RulesQuery)
	if err != nil {
		return nil, err
	}
	rules, err := a2s.ParseRules(r)
	if err != nil {
		return nil, err
	}
	rules.Ping = ping
	return rules, nil
}

// exchange runs the request/challenge/retry loop for one query kind. It
// returns the response type byte, a reader positioned just past it, and
// the measured round trip. The round trip is only measured for the very
// first exchange; responses obtained via a challenge retry leg report
// zero.
func (c *Client) exchange(q a2s.Query) (byte, *bytebuf.Reader, time.Duration, error) {
	var challenge int32
	var ping time.Duration

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		start := time.Now()
		resp, err := c.transport.Request(q.Serialize(challenge))
		if err != nil {
			return 0, nil, 0, err
		}
		rtt := time.Since(start)

		r := bytebuf.NewReader(resp, binary.LittleEndian, c.decoding)
		typ, err := r.ReadUint8()
		if err != nil {
			return 0, nil, 0, fmt.Errorf("%w: response type: %w", a2s.ErrMalformed, err)
		}

		if typ == a2s.TypeChallenge {
			if challenge, err = r.ReadInt32(); err != nil {
				return 0, nil, 0, fmt.Errorf("%w: challenge value: %w", a2s.ErrMalformed, err)
			}
			c.logger.Debug().
				Str("query", q.Name()).
				Int("attempt", attempt).
				Msgf("got challenge %#08x", uint32(challenge))
			continue
		}

		if !q.Validate(typ) {
			return 0, nil, 0, fmt.Errorf(
				"%w: unexpected response type for %s query (got %#02x)",
				a2s.ErrMalformed, q.Name(), typ,
			)
		}

		if attempt == 0 {
			ping = rtt
		}
		return typ, r, ping, nil
	}

	return 0, nil, 0, fmt.Errorf("%w: server keeps sending challenge responses", a2s.ErrMalformed)
}

// QueryInfo opens a transport to host:port, performs one info query and
// closes it.
func QueryInfo(host string, port uint16, cfg Config, logger *log.Logger) (*a2s.Info, error) {
	c, err := New(host, port, cfg, logger)
	if err != nil {
		return nil, err
	}
	return c.QueryInfo()
}

// QueryPlayers opens a transport to host:port, performs one player-list
// query and closes it.
func QueryPlayers(host string, port uint16, cfg Config, logger *log.Logger) (*a2s.PlayerList, error) {
	c, err := New(host, port, cfg, logger)
	if err != nil {
		return nil, err
	}
	return c.QueryPlayers()
}

// QueryRules opens a transport to host:port, performs one rules query and
// closes it.
func QueryRules(host string, port uint16, cfg Config, logger *log.Logger) (*a2s.Rules, error) {
	c, err := New(host, port, cfg, logger)
	if err != nil {
		return nil, err
	}
	return c.QueryRules()
}
