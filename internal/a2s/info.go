package a2s

import (
	"errors"
	"fmt"
	"time"

	"github.com/blukai/steamquery/internal/bytebuf"
)

// Engine tags which of the two info reply layouts a server answered with.
type Engine uint8

const (
	EngineSource     Engine = iota // modern layout (0x49)
	EngineGoldSource               // legacy layout (0x6D)
)

func (e Engine) String() string {
	switch e {
	case EngineSource:
		return "source"
	case EngineGoldSource:
		return "goldsource"
	}
	return fmt.Sprintf("engine(%d)", uint8(e))
}

// Extra-data-flag bits of the modern info reply. Optional trailing fields
// are present iff their bit is set, and are read in the fixed order the
// constants are listed in.
const (
	EDFPort      uint8 = 0x80
	EDFSteamID   uint8 = 0x10
	EDFSpectator uint8 = 0x40
	EDFKeywords  uint8 = 0x20
	EDFGameID    uint8 = 0x01
)

// ModInfo is the half-life mod block of a legacy info reply, present only
// when the server reports itself as modified.
type ModInfo struct {
	Website         string
	DownloadURL     string
	Version         int32
	Size            int32
	MultiplayerOnly bool
	CustomDLL       bool
}

// Info is a parsed server info reply. Engine selects which fields are
// meaningful: AppID, Version and the EDF tail only exist on the modern
// layout, Address, IsMod and Mod only on the legacy one.
type Info struct {
	Engine Engine
	Ping   time.Duration

	Protocol    uint8
	Name        string
	Map         string
	Folder      string
	Game        string
	AppID       uint16
	Players     uint8
	MaxPlayers  uint8
	Bots        uint8
	ServerType  byte // 'd' dedicated, 'l' listen, 'p' proxy
	Environment byte // 'l' linux, 'w' windows, 'm' mac
	Password    bool
	VAC         bool
	Version     string

	// modern optional tail, gated by EDF
	EDF           uint8
	Port          uint16
	SteamID       uint64
	SpectatorPort uint16
	SpectatorName string
	Keywords      string
	GameID        uint64

	// legacy only
	Address string
	IsMod   bool
	Mod     *ModInfo
}

// ParseInfo decodes an info reply payload positioned just past the
// response type byte, dispatching on which type byte was seen.
func ParseInfo(r *bytebuf.Reader, typ byte) (*Info, error) {
	switch typ {
	case TypeInfoSource:
		return parseSourceInfo(r)
	case TypeInfoGold:
		return parseGoldInfo(r)
	}
	return nil, fmt.Errorf("%w: not an info reply type %#02x", ErrMalformed, typ)
}

func parseSourceInfo(r *bytebuf.Reader) (*Info, error) {
	info := &Info{Engine: EngineSource}
	var err error

	if info.Protocol, err = r.ReadUint8(); err != nil {
		return nil, malformed("protocol", err)
	}
	if info.Name, err = r.ReadCString(); err != nil {
		return nil, malformed("name", err)
	}
	if info.Map, err = r.ReadCString(); err != nil {
		return nil, malformed("map", err)
	}
	if info.Folder, err = r.ReadCString(); err != nil {
		return nil, malformed("folder", err)
	}
	if info.Game, err = r.ReadCString(); err != nil {
		return nil, malformed("game", err)
	}
	if info.AppID, err = r.ReadUint16(); err != nil {
		return nil, malformed("app id", err)
	}
	if info.Players, err = r.ReadUint8(); err != nil {
		return nil, malformed("players", err)
	}
	if info.MaxPlayers, err = r.ReadUint8(); err != nil {
		return nil, malformed("max players", err)
	}
	if info.Bots, err = r.ReadUint8(); err != nil {
		return nil, malformed("bots", err)
	}
	if info.ServerType, err = r.ReadChar(); err != nil {
		return nil, malformed("server type", err)
	}
	if info.Environment, err = r.ReadChar(); err != nil {
		return nil, malformed("environment", err)
	}
	// old mac value
	if info.Environment == 'o' {
		info.Environment = 'm'
	}
	if info.Password, err = r.ReadBool(); err != nil {
		return nil, malformed("password", err)
	}
	if info.VAC, err = r.ReadBool(); err != nil {
		return nil, malformed("vac", err)
	}
	if info.Version, err = r.ReadCString(); err != nil {
		return nil, malformed("version", err)
	}

	// some servers truncate the reply right before the extra data
	// flags; treat the missing byte as zero instead of failing
	info.EDF, err = r.ReadUint8()
	if err != nil {
		if errors.Is(err, bytebuf.ErrExhausted) {
			info.EDF = 0
			return info, nil
		}
		return nil, malformed("extra data flags", err)
	}

	if info.EDF&EDFPort != 0 {
		if info.Port, err = r.ReadUint16(); err != nil {
			return nil, malformed("port", err)
		}
	}
	if info.EDF&EDFSteamID != 0 {
		if info.SteamID, err = r.ReadUint64(); err != nil {
			return nil, malformed("steam id", err)
		}
	}
	if info.EDF&EDFSpectator != 0 {
		if info.SpectatorPort, err = r.ReadUint16(); err != nil {
			return nil, malformed("spectator port", err)
		}
		if info.SpectatorName, err = r.ReadCString(); err != nil {
			return nil, malformed("spectator name", err)
		}
	}
	if info.EDF&EDFKeywords != 0 {
		if info.Keywords, err = r.ReadCString(); err != nil {
			return nil, malformed("keywords", err)
		}
	}
	if info.EDF&EDFGameID != 0 {
		if info.GameID, err = r.ReadUint64(); err != nil {
			return nil, malformed("game id", err)
		}
	}

	return info, nil
}

// parseGoldInfo decodes the legacy layout. Note the field order
// (players, max players, protocol) really is different from the modern
// layout; it matches what GoldSource servers send on the wire.
func parseGoldInfo(r *bytebuf.Reader) (*Info, error) {
	info := &Info{Engine: EngineGoldSource}
	var err error

	if info.Address, err = r.ReadCString(); err != nil {
		return nil, malformed("address", err)
	}
	if info.Name, err = r.ReadCString(); err != nil {
		return nil, malformed("name", err)
	}
	if info.Map, err = r.ReadCString(); err != nil {
		return nil, malformed("map", err)
	}
	if info.Folder, err = r.ReadCString(); err != nil {
		return nil, malformed("folder", err)
	}
	if info.Game, err = r.ReadCString(); err != nil {
		return nil, malformed("game", err)
	}
	if info.Players, err = r.ReadUint8(); err != nil {
		return nil, malformed("players", err)
	}
	if info.MaxPlayers, err = r.ReadUint8(); err != nil {
		return nil, malformed("max players", err)
	}
	if info.Protocol, err = r.ReadUint8(); err != nil {
		return nil, malformed("protocol", err)
	}
	if info.ServerType, err = r.ReadChar(); err != nil {
		return nil, malformed("server type", err)
	}
	if info.Environment, err = r.ReadChar(); err != nil {
		return nil, malformed("environment", err)
	}
	if info.Password, err = r.ReadBool(); err != nil {
		return nil, malformed("password", err)
	}
	if info.IsMod, err = r.ReadBool(); err != nil {
		return nil, malformed("is mod", err)
	}

	// the mod block is only present when the server says it is modified
	// and actually sent it; a few bytes must remain for the trailing
	// vac/bots fields either way
	if info.IsMod && r.Len() >= 3 {
		mod := &ModInfo{}
		if mod.Website, err = r.ReadCString(); err != nil {
			return nil, malformed("mod website", err)
		}
		if mod.DownloadURL, err = r.ReadCString(); err != nil {
			return nil, malformed("mod download url", err)
		}
		// reserved zero byte
		if _, err = r.ReadUint8(); err != nil {
			return nil, malformed("mod reserved byte", err)
		}
		if mod.Version, err = r.ReadInt32(); err != nil {
			return nil, malformed("mod version", err)
		}
		if mod.Size, err = r.ReadInt32(); err != nil {
			return nil, malformed("mod size", err)
		}
		if mod.MultiplayerOnly, err = r.ReadBool(); err != nil {
			return nil, malformed("mod multiplayer only", err)
		}
		if mod.CustomDLL, err = r.ReadBool(); err != nil {
			return nil, malformed("mod custom dll", err)
		}
		info.Mod = mod
	}

	if info.VAC, err = r.ReadBool(); err != nil {
		return nil, malformed("vac", err)
	}
	if info.Bots, err = r.ReadUint8(); err != nil {
		return nil, malformed("bots", err)
	}

	return info, nil
}

func malformed(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformed, field, err)
}
