// Package taildata encodes and decodes the 6-byte trailer that the unpacker
// appends to every top-level file it extracts.
//
// The trailer is a pointer back to the index record the file came from:
//
//	u8  idx_marker        which index file/table owns the record
//	u32 idx_entry_offset  byte offset of the record inside that index file
//	u8  comp_marker       1 if the unpacker decompressed the entry, else 0
//
// Decoding is a structural slice of the last six bytes, never a search.
// Callers must know from how a file was produced whether it carries taildata.
package taildata

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the encoded length of a taildata trailer.
const Size = 6

// Compression markers written by the unpacker.
const (
	MarkerPlain      uint8 = 0
	MarkerCompressed uint8 = 1
)

// ErrShort is returned when a buffer is too small to hold a trailer.
var ErrShort = errors.New("taildata: buffer shorter than trailer")

// Taildata identifies the index record an unpacked file originated from.
type Taildata struct {
	IdxMarker      uint8
	IdxEntryOffset uint32
	CompMarker     uint8
}

// Compressed reports whether the origin entry was stored compressed.
func (t Taildata) Compressed() bool {
	return t.CompMarker != MarkerPlain
}

func (t Taildata) String() string {
	return fmt.Sprintf("marker=%d offset=0x%X comp=%d", t.IdxMarker, t.IdxEntryOffset, t.CompMarker)
}

// Codec encodes and decodes trailers with a fixed byte order for the
// entry offset. The zero Codec uses little endian.
type Codec struct {
	Order binary.ByteOrder
}

// LittleEndian is the codec used by every supported PC title.
var LittleEndian = Codec{Order: binary.LittleEndian}

func (c Codec) order() binary.ByteOrder {
	if c.Order == nil {
		return binary.LittleEndian
	}
	return c.Order
}

// Encode returns the 6-byte trailer for t.
func (c Codec) Encode(t Taildata) []byte {
	return c.Append(make([]byte, 0, Size), t)
}

// Append appends the encoded trailer to dst.
func (c Codec) Append(dst []byte, t Taildata) []byte {
	var off [4]byte
	c.order().PutUint32(off[:], t.IdxEntryOffset)
	dst = append(dst, t.IdxMarker)
	dst = append(dst, off[:]...)
	return append(dst, t.CompMarker)
}

// Parse decodes exactly one trailer.
func (c Codec) Parse(raw []byte) (Taildata, error) {
	if len(raw) != Size {
		return Taildata{}, fmt.Errorf("%w: got %d bytes", ErrShort, len(raw))
	}
	return Taildata{
		IdxMarker:      raw[0],
		IdxEntryOffset: c.order().Uint32(raw[1:5]),
		CompMarker:     raw[5],
	}, nil
}

// Decode splits file bytes into payload and trailer.
//
// The returned payload aliases b.
func (c Codec) Decode(b []byte) (payload []byte, t Taildata, err error) {
	if len(b) < Size {
		return nil, Taildata{}, fmt.Errorf("%w: got %d bytes", ErrShort, len(b))
	}
	cut := len(b) - Size
	t, err = c.Parse(b[cut:])
	if err != nil {
		return nil, Taildata{}, err
	}
	return b[:cut], t, nil
}

// Encode encodes t with the little endian codec.
func Encode(t Taildata) []byte {
	return LittleEndian.Encode(t)
}

// Decode decodes b with the little endian codec.
func Decode(b []byte) ([]byte, Taildata, error) {
	return LittleEndian.Decode(b)
}
