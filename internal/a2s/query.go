package a2s

import (
	"encoding/binary"

	"github.com/blukai/steamquery/internal/bytebuf"
)

// Query is one of the three supported query kinds. Implementations are a
// closed set; the client picks one by value, never by runtime type
// inspection of responses.
type Query interface {
	// Name identifies the query kind in errors and logs.
	Name() string
	// Serialize builds the request payload (without the wrapper header)
	// for the given challenge value.
	Serialize(challenge int32) []byte
	// Validate reports whether a received response type byte is valid
	// for this query kind.
	Validate(typ byte) bool
}

var (
	InfoQuery    Query = infoQuery{}
	PlayersQuery Query = playersQuery{}
	RulesQuery   Query = rulesQuery{}
)

type infoQuery struct{}

func (infoQuery) Name() string { return "info" }

// Serialize builds an A2S_INFO request. The 4 challenge bytes are only
// appended once the server has issued a challenge; the initial request
// carries none.
func (infoQuery) Serialize(challenge int32) []byte {
	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint8(TypeInfoRequest)
	w.WriteCString(infoRequestPayload)
	if challenge != 0 {
		w.WriteInt32(challenge)
	}
	return w.Bytes()
}

func (infoQuery) Validate(typ byte) bool {
	return typ == TypeInfoSource || typ == TypeInfoGold
}

type playersQuery struct{}

func (playersQuery) Name() string { return "players" }

func (playersQuery) Serialize(challenge int32) []byte {
	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint8(TypePlayersRequest)
	w.WriteInt32(challenge)
	return w.Bytes()
}

func (playersQuery) Validate(typ byte) bool {
	return typ == TypePlayers
}

type rulesQuery struct{}

func (rulesQuery) Name() string { return "rules" }

func (rulesQuery) Serialize(challenge int32) []byte {
	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint8(TypeRulesRequest)
	w.WriteInt32(challenge)
	return w.Bytes()
}

func (rulesQuery) Validate(typ byte) bool {
	return typ == TypeRules
}
