// Package a2s implements the wire format of the Source engine server
// query protocol: request/response type constants, the datagram wrapper
// headers, fragment decoding and reassembly for multi-datagram responses,
// and the payload codecs for the info, player and rules queries.
//
// https://developer.valvesoftware.com/wiki/Server_queries
package a2s

// Datagram wrapper headers, little-endian.
const (
	// HeaderSimple marks a single-datagram response (FF FF FF FF).
	HeaderSimple uint32 = 0xFFFFFFFF
	// HeaderMulti marks one fragment of a multi-datagram response
	// (FE FF FF FF).
	HeaderMulti uint32 = 0xFFFFFFFE
)

// Request and response type bytes.
const (
	TypeInfoRequest    byte = 0x54 // A2S_INFO
	TypePlayersRequest byte = 0x55 // A2S_PLAYER
	TypeRulesRequest   byte = 0x56 // A2S_RULES

	TypeChallenge  byte = 0x41 // S2C_CHALLENGE
	TypeInfoSource byte = 0x49 // modern (Source) info reply
	TypeInfoGold   byte = 0x6D // legacy (GoldSource) info reply
	TypePlayers    byte = 0x44
	TypeRules      byte = 0x45
)

// infoRequestPayload is the literal string every A2S_INFO request carries.
const infoRequestPayload = "Source Engine Query"
