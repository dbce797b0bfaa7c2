// Package bytebuf provides sequential, position-tracking readers and
// writers over raw byte slices.
//
// Reader fails with ErrExhausted when a read would pass the end of the
// underlying slice. Writer only ever appends and cannot fail.
package bytebuf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ErrExhausted is returned by Reader when the requested width exceeds the
// remaining bytes.
var ErrExhausted = errors.New("bytebuf: buffer exhausted")

// StringDecoding selects how ReadCString turns wire bytes into a string.
// The choice does not affect byte-level parsing, only the textual
// representation handed back to the caller.
type StringDecoding int

const (
	// DecodeUTF8 treats wire bytes as UTF-8; invalid sequences are
	// replaced with the unicode replacement character.
	DecodeUTF8 StringDecoding = iota
	// DecodeWindows1252 maps each wire byte through the Windows-1252
	// single-byte table.
	DecodeWindows1252
	// DecodeRaw keeps wire bytes verbatim.
	DecodeRaw
)

// ParseStringDecoding maps a configuration value to a StringDecoding.
func ParseStringDecoding(s string) (StringDecoding, error) {
	switch strings.ToLower(s) {
	case "", "utf-8", "utf8":
		return DecodeUTF8, nil
	case "windows-1252", "single-byte", "latin1":
		return DecodeWindows1252, nil
	case "raw":
		return DecodeRaw, nil
	}
	return DecodeUTF8, fmt.Errorf("unknown string decoding %q", s)
}

// Reader reads fixed-width values and null-terminated strings from a byte
// slice, advancing an internal position.
type Reader struct {
	data     []byte
	pos      int
	order    binary.ByteOrder
	decoding StringDecoding
}

func NewReader(data []byte, order binary.ByteOrder, decoding StringDecoding) *Reader {
	return &Reader{data: data, order: order, decoding: decoding}
}

// Len reports the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Pos reports the current read position.
func (r *Reader) Pos() int {
	return r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Len() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrExhausted, n, r.Len())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBool reads one byte; any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

// ReadChar reads a single character byte.
func (r *Reader) ReadChar() (byte, error) {
	return r.ReadUint8()
}

// ReadBytes reads exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Rest consumes and returns all remaining bytes.
func (r *Reader) Rest() []byte {
	b, _ := r.ReadBytes(r.Len())
	return b
}

// PeekUint32 reads a 32-bit value without advancing the position.
func (r *Reader) PeekUint32() (uint32, error) {
	if r.Len() < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes, have %d", ErrExhausted, r.Len())
	}
	return r.order.Uint32(r.data[r.pos : r.pos+4]), nil
}

// ReadCString reads bytes up to (and consuming, but not returning) the
// next zero byte, then applies the configured string decoding.
func (r *Reader) ReadCString() (string, error) {
	start := r.pos
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == 0 {
			r.pos = i + 1
			return r.decodeString(r.data[start:i]), nil
		}
	}
	return "", fmt.Errorf("%w: unterminated string", ErrExhausted)
}

func (r *Reader) decodeString(b []byte) string {
	switch r.decoding {
	case DecodeWindows1252:
		s, err := charmap.Windows1252.NewDecoder().Bytes(b)
		if err != nil {
			// the windows-1252 table is total, so this should not
			// happen; keep the raw bytes if it somehow does
			return string(b)
		}
		return string(s)
	case DecodeRaw:
		return string(b)
	default:
		return strings.ToValidUTF8(string(b), "�")
	}
}

// Writer appends fixed-width values and null-terminated strings to a
// growing byte slice.
type Writer struct {
	buf   []byte
	order binary.AppendByteOrder
}

func NewWriter(order binary.AppendByteOrder) *Writer {
	return &Writer{order: order}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len reports the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

func (w *Writer) WriteUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteInt8(v int8) {
	w.WriteUint8(uint8(v))
}

func (w *Writer) WriteUint16(v uint16) {
	w.buf = w.order.AppendUint16(w.buf, v)
}

func (w *Writer) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *Writer) WriteUint32(v uint32) {
	w.buf = w.order.AppendUint32(w.buf, v)
}

func (w *Writer) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *Writer) WriteUint64(v uint64) {
	w.buf = w.order.AppendUint64(w.buf, v)
}

func (w *Writer) WriteInt64(v int64) {
	w.WriteUint64(uint64(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

func (w *Writer) WriteChar(c byte) {
	w.WriteUint8(c)
}

func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteCString writes the string's bytes followed by one zero byte.
func (w *Writer) WriteCString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}
