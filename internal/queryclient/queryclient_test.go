package queryclient_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/blukai/steamquery/internal/a2s"
	"github.com/blukai/steamquery/internal/bytebuf"
	"github.com/blukai/steamquery/internal/fakeserver"
	"github.com/blukai/steamquery/internal/queryclient"
	"github.com/matryer/is"
)

func startServer(t *testing.T, handler fakeserver.Handler) *fakeserver.Server {
	t.Helper()
	is := is.New(t)

	srv, err := fakeserver.New(handler, nil)
	is.NoErr(err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)

	return srv
}

func playersPayload() []byte {
	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint8(a2s.TypePlayers)
	w.WriteUint8(1)
	w.WriteUint8(0)
	w.WriteCString("alice")
	w.WriteInt32(31)
	w.WriteFloat32(60.0)
	return w.Bytes()
}

func rulesPayload() []byte {
	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint8(a2s.TypeRules)
	w.WriteUint16(1)
	w.WriteCString("sv_gravity")
	w.WriteCString("800")
	return w.Bytes()
}

func TestQueryPlayersWithChallenge(t *testing.T) {
	is := is.New(t)

	handler := fakeserver.ChallengeThen(0x0BADF00D, fakeserver.RespondWith(fakeserver.Simple(playersPayload())))
	srv := startServer(t, handler)

	list, err := queryclient.QueryPlayers("127.0.0.1", uint16(srv.Addr().Port), queryclient.Config{Timeout: time.Second}, nil)
	is.NoErr(err)
	is.Equal(len(list.Players), 1)
	is.Equal(list.Players[0].Name, "alice")
	is.Equal(list.Players[0].Score, int32(31))

	// initial request with challenge zero, then one retry echoing it
	is.Equal(srv.RequestCount(), 2)
	second := srv.Requests()[1]
	is.Equal(int32(binary.LittleEndian.Uint32(second[len(second)-4:])), int32(0x0BADF00D))

	// the response came from a retry leg, so no round trip is reported
	is.Equal(list.Ping, time.Duration(0))
}

func TestQueryRulesWithoutChallenge(t *testing.T) {
	is := is.New(t)

	srv := startServer(t, fakeserver.RespondWith(fakeserver.Simple(rulesPayload())))

	rules, err := queryclient.QueryRules("127.0.0.1", uint16(srv.Addr().Port), queryclient.Config{Timeout: time.Second}, nil)
	is.NoErr(err)
	is.Equal(rules.Rules["sv_gravity"], "800")
	is.Equal(srv.RequestCount(), 1)
	is.True(rules.Ping > 0)
}

func TestChallengeRetryBound(t *testing.T) {
	is := is.New(t)

	maxRetries := 3
	srv := startServer(t, fakeserver.AlwaysChallenge())

	_, err := queryclient.QueryPlayers("127.0.0.1", uint16(srv.Addr().Port), queryclient.Config{
		Timeout:    time.Second,
		MaxRetries: maxRetries,
	}, nil)
	is.True(errors.Is(err, a2s.ErrMalformed))

	// exactly maxRetries+1 requests went out before giving up
	is.Equal(srv.RequestCount(), maxRetries+1)
}

func TestUnexpectedResponseType(t *testing.T) {
	is := is.New(t)

	// a rules reply to a players query is a terminal failure
	srv := startServer(t, fakeserver.RespondWith(fakeserver.Simple(rulesPayload())))

	_, err := queryclient.QueryPlayers("127.0.0.1", uint16(srv.Addr().Port), queryclient.Config{Timeout: time.Second}, nil)
	is.True(errors.Is(err, a2s.ErrMalformed))
}

func TestQueryTimeout(t *testing.T) {
	is := is.New(t)

	srv := startServer(t, func([]byte) [][]byte { return nil })

	_, err := queryclient.QueryInfo("127.0.0.1", uint16(srv.Addr().Port), queryclient.Config{Timeout: 150 * time.Millisecond}, nil)
	is.True(errors.Is(err, a2s.ErrTimeout))
}

func TestClientCloseIdempotent(t *testing.T) {
	is := is.New(t)

	srv := startServer(t, fakeserver.RespondWith(fakeserver.Simple(rulesPayload())))

	c, err := queryclient.New("127.0.0.1", uint16(srv.Addr().Port), queryclient.Config{Timeout: time.Second}, nil)
	is.NoErr(err)

	_, err = c.QueryRules()
	is.NoErr(err)

	// the query already closed the transport; further closes are noops
	is.NoErr(c.Close())
	is.NoErr(c.Close())
}
