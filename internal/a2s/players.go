package a2s

import (
	"time"

	"github.com/blukai/steamquery/internal/bytebuf"
)

// Player is one connected-player entry of an A2S_PLAYER reply.
type Player struct {
	Index    uint8
	Name     string
	Score    int32
	Duration float32 // seconds connected
}

// PlayerList is a parsed A2S_PLAYER reply.
type PlayerList struct {
	Ping    time.Duration
	Players []Player
}

// ParsePlayers decodes a player list payload positioned just past the
// response type byte.
func ParsePlayers(r *bytebuf.Reader) (*PlayerList, error) {
	count, err := r.ReadUint8()
	if err != nil {
		return nil, malformed("player count", err)
	}

	list := &PlayerList{Players: make([]Player, 0, count)}
	for i := 0; i < int(count); i++ {
		var p Player
		if p.Index, err = r.ReadUint8(); err != nil {
			return nil, malformed("player index", err)
		}
		if p.Name, err = r.ReadCString(); err != nil {
			return nil, malformed("player name", err)
		}
		if p.Score, err = r.ReadInt32(); err != nil {
			return nil, malformed("player score", err)
		}
		if p.Duration, err = r.ReadFloat32(); err != nil {
			return nil, malformed("player duration", err)
		}
		list.Players = append(list.Players, p)
	}
	return list, nil
}
