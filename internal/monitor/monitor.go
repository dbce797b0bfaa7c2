// Package monitor polls a fixed set of Source servers on an interval and
// records what it sees.
package monitor

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/blukai/steamquery/internal/queryclient"
	"github.com/blukai/steamquery/internal/storage"
	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/phuslu/log"
)

// Target is one server to poll.
type Target struct {
	Host string
	Port uint16
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
}

// ParseTarget parses a "host:port" string.
func ParseTarget(s string) (Target, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Target{}, fmt.Errorf("could not parse target %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Target{}, fmt.Errorf("could not parse port of %q: %w", s, err)
	}
	return Target{Host: host, Port: uint16(port)}, nil
}

type targetKey uint64

func makeTargetKey(t Target) targetKey {
	return targetKey(xxhash.Sum64String(t.String()))
}

type targetState struct {
	lastSeen time.Time
	failures int
}

// Monitor polls each target once per interval via one-shot query clients
// and persists snapshots. A nil repository disables persistence.
type Monitor struct {
	targets  []Target
	interval time.Duration
	cfg      queryclient.Config
	store    *storage.Repository

	logger *log.Logger

	states map[targetKey]*targetState
}

func New(targets []Target, interval time.Duration, cfg queryclient.Config, store *storage.Repository, logger *log.Logger) *Monitor {
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}

	return &Monitor{
		targets:  targets,
		interval: interval,
		cfg:      cfg,
		store:    store,
		logger:   logger,
		states:   make(map[targetKey]*targetState),
	}
}

// Run polls immediately and then once per interval until the context is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	if err := m.Poll(); err != nil {
		m.logger.Warn().Msgf("poll finished with errors: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Poll(); err != nil {
				m.logger.Warn().Msgf("poll finished with errors: %v", err)
			}
		}
	}
}

// Poll queries every target once. Per-target failures are recorded as
// offline snapshots and accumulated into the returned error; one dead
// server never stops the sweep.
func (m *Monitor) Poll() error {
	var errs error
	now := time.Now()

	for _, target := range m.targets {
		key := makeTargetKey(target)
		state, ok := m.states[key]
		if !ok {
			state = &targetState{}
			m.states[key] = state
		}

		snapshot := storage.Snapshot{
			Address:  target.Host,
			Port:     target.Port,
			LastSeen: now,
		}

		info, err := queryclient.QueryInfo(target.Host, target.Port, m.cfg, m.logger)
		if err != nil {
			state.failures++
			m.logger.Warn().
				Str("target", target.String()).
				Int("failures", state.failures).
				Msgf("could not query info: %v", err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", target, err))
		} else {
			state.failures = 0
			state.lastSeen = now

			snapshot.Online = true
			snapshot.Name = info.Name
			snapshot.Map = info.Map
			snapshot.Game = info.Game
			snapshot.Version = info.Version
			snapshot.Players = int(info.Players)
			snapshot.MaxPlayers = int(info.MaxPlayers)
			snapshot.Bots = int(info.Bots)
			snapshot.PingMS = info.Ping.Milliseconds()

			m.logger.Info().
				Str("target", target.String()).
				Str("name", info.Name).
				Str("map", info.Map).
				Msgf("%d/%d players", info.Players, info.MaxPlayers)
		}

		if m.store != nil {
			if err := m.store.Upsert(snapshot); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: could not store snapshot: %w", target, err))
			}
		}
	}

	return errs
}

// Failures reports the consecutive failure count for a target, zero when
// it was never polled or answered last time.
func (m *Monitor) Failures(t Target) int {
	if state, ok := m.states[makeTargetKey(t)]; ok {
		return state.failures
	}
	return 0
}
