package a2s_test

import (
	"encoding/binary"
	"testing"

	"github.com/blukai/steamquery/internal/a2s"
	"github.com/blukai/steamquery/internal/bytebuf"
	"github.com/matryer/is"
)

// writeSourceInfoBody writes the fixed part of a modern info reply, up to
// but excluding the extra data flags byte.
func writeSourceInfoBody(w *bytebuf.Writer) {
	w.WriteUint8(17) // protocol
	w.WriteCString("Test")
	w.WriteCString("de_dust2")
	w.WriteCString("cstrike")
	w.WriteCString("CSGO")
	w.WriteUint16(730)
	w.WriteUint8(10) // players
	w.WriteUint8(32) // max players
	w.WriteUint8(0)  // bots
	w.WriteChar('d')
	w.WriteChar('l')
	w.WriteBool(false) // password
	w.WriteBool(true)  // vac
	w.WriteCString("1.0")
}

func newInfoReader(payload []byte) *bytebuf.Reader {
	return bytebuf.NewReader(payload, binary.LittleEndian, bytebuf.DecodeUTF8)
}

func TestParseSourceInfo(t *testing.T) {
	is := is.New(t)

	w := bytebuf.NewWriter(binary.LittleEndian)
	writeSourceInfoBody(w)
	w.WriteUint8(0) // edf

	info, err := a2s.ParseInfo(newInfoReader(w.Bytes()), a2s.TypeInfoSource)
	is.NoErr(err)
	is.Equal(info.Engine, a2s.EngineSource)
	is.Equal(info.Protocol, uint8(17))
	is.Equal(info.Name, "Test")
	is.Equal(info.Map, "de_dust2")
	is.Equal(info.Folder, "cstrike")
	is.Equal(info.Game, "CSGO")
	is.Equal(info.AppID, uint16(730))
	is.Equal(info.Players, uint8(10))
	is.Equal(info.MaxPlayers, uint8(32))
	is.Equal(info.Bots, uint8(0))
	is.Equal(info.ServerType, byte('d'))
	is.Equal(info.Environment, byte('l'))
	is.True(!info.Password)
	is.True(info.VAC)
	is.Equal(info.Version, "1.0")
	is.Equal(info.EDF, uint8(0))
}

func TestParseSourceInfoMissingFlagsByte(t *testing.T) {
	is := is.New(t)

	// reply truncated right before the extra data flags byte: the
	// flags are treated as zero and no optional fields populate
	w := bytebuf.NewWriter(binary.LittleEndian)
	writeSourceInfoBody(w)

	info, err := a2s.ParseInfo(newInfoReader(w.Bytes()), a2s.TypeInfoSource)
	is.NoErr(err)
	is.Equal(info.EDF, uint8(0))
	is.Equal(info.Port, uint16(0))
	is.Equal(info.SteamID, uint64(0))
	is.Equal(info.Keywords, "")
	is.Equal(info.GameID, uint64(0))
}

func TestParseSourceInfoPlatformNormalization(t *testing.T) {
	is := is.New(t)

	w := bytebuf.NewWriter(binary.LittleEndian)
	w.WriteUint8(17)
	w.WriteCString("Test")
	w.WriteCString("map")
	w.WriteCString("dir")
	w.WriteCString("game")
	w.WriteUint16(10)
	w.WriteUint8(0)
	w.WriteUint8(0)
	w.WriteUint8(0)
	w.WriteChar('d')
	w.WriteChar('o') // old mac value
	w.WriteBool(false)
	w.WriteBool(false)
	w.WriteCString("1.0")
	w.WriteUint8(0)

	info, err := a2s.ParseInfo(newInfoReader(w.Bytes()), a2s.TypeInfoSource)
	is.NoErr(err)
	is.Equal(info.Environment, byte('m'))
}

// TestParseSourceInfoEDFSubsets encodes every subset of the five flag
// bits and checks that exactly that subset's fields populate.
func TestParseSourceInfoEDFSubsets(t *testing.T) {
	flags := []uint8{a2s.EDFPort, a2s.EDFSteamID, a2s.EDFSpectator, a2s.EDFKeywords, a2s.EDFGameID}

	for mask := 0; mask < 1<<len(flags); mask++ {
		var edf uint8
		for i, flag := range flags {
			if mask&(1<<i) != 0 {
				edf |= flag
			}
		}

		is := is.New(t)

		w := bytebuf.NewWriter(binary.LittleEndian)
		writeSourceInfoBody(w)
		w.WriteUint8(edf)
		// fields must be appended in the fixed bit order, not the
		// numeric order of the flag values
		if edf&a2s.EDFPort != 0 {
			w.WriteUint16(27015)
		}
		if edf&a2s.EDFSteamID != 0 {
			w.WriteUint64(76561198000000000)
		}
		if edf&a2s.EDFSpectator != 0 {
			w.WriteUint16(27020)
			w.WriteCString("SourceTV")
		}
		if edf&a2s.EDFKeywords != 0 {
			w.WriteCString("secure,increased_maxplayers")
		}
		if edf&a2s.EDFGameID != 0 {
			w.WriteUint64(730)
		}

		info, err := a2s.ParseInfo(newInfoReader(w.Bytes()), a2s.TypeInfoSource)
		is.NoErr(err)
		is.Equal(info.EDF, edf)

		if edf&a2s.EDFPort != 0 {
			is.Equal(info.Port, uint16(27015))
		} else {
			is.Equal(info.Port, uint16(0))
		}
		if edf&a2s.EDFSteamID != 0 {
			is.Equal(info.SteamID, uint64(76561198000000000))
		} else {
			is.Equal(info.SteamID, uint64(0))
		}
		if edf&a2s.EDFSpectator != 0 {
			is.Equal(info.SpectatorPort, uint16(27020))
			is.Equal(info.SpectatorName, "SourceTV")
		} else {
			is.Equal(info.SpectatorPort, uint16(0))
			is.Equal(info.SpectatorName, "")
		}
		if edf&a2s.EDFKeywords != 0 {
			is.Equal(info.Keywords, "secure,increased_maxplayers")
		} else {
			is.Equal(info.Keywords, "")
		}
		if edf&a2s.EDFGameID != 0 {
			is.Equal(info.GameID, uint64(730))
		} else {
			is.Equal(info.GameID, uint64(0))
		}
	}
}

// writeGoldInfoBody writes a legacy info reply up to and including the
// is-modified flag.
func writeGoldInfoBody(w *bytebuf.Writer, isMod bool) {
	w.WriteCString("192.168.1.2:27015")
	w.WriteCString("Half-Life Server")
	w.WriteCString("crossfire")
	w.WriteCString("valve")
	w.WriteCString("Half-Life")
	w.WriteUint8(12) // players
	w.WriteUint8(16) // max players
	w.WriteUint8(47) // protocol comes after the player counts here
	w.WriteChar('d')
	w.WriteChar('w')
	w.WriteBool(true) // password
	w.WriteBool(isMod)
}

func TestParseGoldInfoWithMod(t *testing.T) {
	is := is.New(t)

	w := bytebuf.NewWriter(binary.LittleEndian)
	writeGoldInfoBody(w, true)
	w.WriteCString("https://example.com")
	w.WriteCString("https://example.com/dl")
	w.WriteUint8(0) // reserved
	w.WriteInt32(12)
	w.WriteInt32(1024)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteBool(true) // vac
	w.WriteUint8(2)   // bots

	info, err := a2s.ParseInfo(newInfoReader(w.Bytes()), a2s.TypeInfoGold)
	is.NoErr(err)
	is.Equal(info.Engine, a2s.EngineGoldSource)
	is.Equal(info.Address, "192.168.1.2:27015")
	is.Equal(info.Players, uint8(12))
	is.Equal(info.MaxPlayers, uint8(16))
	is.Equal(info.Protocol, uint8(47))
	is.True(info.Password)
	is.True(info.IsMod)
	is.True(info.Mod != nil)
	is.Equal(info.Mod.Website, "https://example.com")
	is.Equal(info.Mod.DownloadURL, "https://example.com/dl")
	is.Equal(info.Mod.Version, int32(12))
	is.Equal(info.Mod.Size, int32(1024))
	is.True(info.Mod.MultiplayerOnly)
	is.True(!info.Mod.CustomDLL)
	is.True(info.VAC)
	is.Equal(info.Bots, uint8(2))
}

func TestParseGoldInfoModBlockSkippedWhenShort(t *testing.T) {
	is := is.New(t)

	// is-modified set, but fewer than 3 bytes remain: the mod block is
	// skipped and vac/bots are read directly
	w := bytebuf.NewWriter(binary.LittleEndian)
	writeGoldInfoBody(w, true)
	w.WriteBool(false) // vac
	w.WriteUint8(3)    // bots

	info, err := a2s.ParseInfo(newInfoReader(w.Bytes()), a2s.TypeInfoGold)
	is.NoErr(err)
	is.True(info.IsMod)
	is.Equal(info.Mod, nil)
	is.True(!info.VAC)
	is.Equal(info.Bots, uint8(3))
}

func TestParseGoldInfoUnmodded(t *testing.T) {
	is := is.New(t)

	w := bytebuf.NewWriter(binary.LittleEndian)
	writeGoldInfoBody(w, false)
	w.WriteBool(true) // vac
	w.WriteUint8(0)   // bots

	info, err := a2s.ParseInfo(newInfoReader(w.Bytes()), a2s.TypeInfoGold)
	is.NoErr(err)
	is.True(!info.IsMod)
	is.Equal(info.Mod, nil)
	is.True(info.VAC)
	is.Equal(info.Bots, uint8(0))
}

func TestParseInfoWrongType(t *testing.T) {
	is := is.New(t)

	_, err := a2s.ParseInfo(newInfoReader(nil), a2s.TypePlayers)
	is.True(err != nil)
}
