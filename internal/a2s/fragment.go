package a2s

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/blukai/steamquery/internal/bytebuf"
)

// compressedFlag is the high bit of the 32-bit fragment message id; when
// set, the fragment carries a bzip2-compressed payload preceded by the
// decompressed size and a CRC32 checksum.
const compressedFlag uint32 = 0x80000000

// Fragment is one datagram's contribution to a logical response that did
// not fit into a single datagram. Payload holds post-decompression bytes
// when the fragment was compressed and decompression succeeded.
type Fragment struct {
	ID      uint32
	Count   uint8
	Number  uint8
	MaxSize uint16

	// set only when the compression flag was present
	Compressed       bool
	DecompressedSize uint32
	Checksum         uint32

	Payload []byte
}

// ParseFragment decodes one datagram payload, after the multi-datagram
// wrapper header has been stripped. Decompression is best effort: if the
// payload does not decompress, the raw bytes are kept as-is.
func ParseFragment(data []byte) (*Fragment, error) {
	r := bytebuf.NewReader(data, binary.LittleEndian, bytebuf.DecodeRaw)

	f := &Fragment{}
	var err error
	if f.ID, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("%w: fragment id: %w", ErrMalformed, err)
	}
	if f.Count, err = r.ReadUint8(); err != nil {
		return nil, fmt.Errorf("%w: fragment count: %w", ErrMalformed, err)
	}
	if f.Number, err = r.ReadUint8(); err != nil {
		return nil, fmt.Errorf("%w: fragment number: %w", ErrMalformed, err)
	}
	if f.MaxSize, err = r.ReadUint16(); err != nil {
		return nil, fmt.Errorf("%w: fragment max size: %w", ErrMalformed, err)
	}

	f.Compressed = f.ID&compressedFlag != 0
	if !f.Compressed {
		f.Payload = r.Rest()
		return f, nil
	}

	if f.DecompressedSize, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("%w: decompressed size: %w", ErrMalformed, err)
	}
	if f.Checksum, err = r.ReadUint32(); err != nil {
		return nil, fmt.Errorf("%w: checksum: %w", ErrMalformed, err)
	}

	f.Payload = r.Rest()
	if decompressed, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(f.Payload))); err == nil {
		f.Payload = decompressed
	}
	return f, nil
}

// Assembler accumulates fragments for the one logical message currently
// in flight and produces the concatenated payload once all declared
// fragments have been seen. Fragments for a different message id than the
// one being tracked are discarded. An Assembler is scoped to a single
// request; the zero value is ready to use.
type Assembler struct {
	tracking bool
	id       uint32
	pending  []*Fragment
}

// Add records one fragment. When the pending set reaches the declared
// fragment count it returns the assembled message and true, and resets
// the assembler; otherwise it returns nil and false.
func (a *Assembler) Add(f *Fragment) ([]byte, bool) {
	if !a.tracking {
		a.tracking = true
		a.id = f.ID
	} else if f.ID != a.id {
		return nil, false
	}

	a.pending = append(a.pending, f)
	if len(a.pending) < int(f.Count) {
		return nil, false
	}

	sort.Slice(a.pending, func(i, j int) bool {
		return a.pending[i].Number < a.pending[j].Number
	})

	var msg []byte
	for _, pf := range a.pending {
		msg = append(msg, pf.Payload...)
	}

	a.tracking = false
	a.id = 0
	a.pending = nil

	// some servers wrap a simple-response header inside the first
	// fragment payload; strip it here
	r := bytebuf.NewReader(msg, binary.LittleEndian, bytebuf.DecodeRaw)
	if header, err := r.PeekUint32(); err == nil && header == HeaderSimple {
		msg = msg[4:]
	}
	return msg, true
}
