// Package modfile reads and writes mod files: one or many replacement files,
// each carrying the taildata that points back to its origin index record,
// plus mod-level metadata.
//
// The current layout is:
//
//	"AMOD" u8 version u8 kind u8 flags
//	body (zstd frame when flags&FlagZstd):
//	  u8 name_len  name
//	  u8 author_len author
//	  u8 ver_len   version
//	  u16 desc_len description
//	  u32 count
//	  count x { u32 size, data, taildata }   size counts data plus taildata
//
// The legacy layout written by earlier tools has no magic; see [ParseLegacy].
// All integers are little endian. The size of each entry precedes its data
// so a reader can validate the whole structure before anything is applied.
package modfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/aldnoah/modkit/core/taildata"
)

// Magic opens every mod file in the current layout.
const Magic = "AMOD"

// FormatVersion is the layout version written by Encode.
const FormatVersion = 1

// Header flags.
const (
	FlagZstd uint8 = 1 << iota
)

// Sentinel errors.
var (
	// ErrMalformed is returned when a mod file is structurally invalid.
	ErrMalformed = errors.New("modfile: malformed payload")

	// ErrUnsupportedVersion is returned for layouts newer than this package.
	ErrUnsupportedVersion = errors.New("modfile: unsupported format version")

	// ErrTooLarge is returned when a value cannot be represented in the layout.
	ErrTooLarge = errors.New("modfile: value too large for format")
)

// Kind distinguishes single-file mods from packages.
type Kind uint8

const (
	KindSingle Kind = iota
	KindPackage
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindPackage:
		return "package"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Meta is mod-level metadata. It is carried through untouched.
type Meta struct {
	Name        string
	Author      string
	Version     string
	Description string
}

// Entry is one replacement file.
type Entry struct {
	// Data is the replacement payload without taildata.
	Data []byte
	// Tail is the origin pointer decoded from the trailing six bytes.
	Tail taildata.Taildata
}

// Mod is a parsed mod file.
type Mod struct {
	Meta
	Kind    Kind
	Entries []Entry
	// Compressed reports whether the body was zstd framed.
	Compressed bool
}

// Markers returns the distinct idx markers the mod touches, in order of
// first use.
func (m *Mod) Markers() []uint8 {
	var seen [256]bool
	var out []uint8
	for _, e := range m.Entries {
		if !seen[e.Tail.IdxMarker] {
			seen[e.Tail.IdxMarker] = true
			out = append(out, e.Tail.IdxMarker)
		}
	}
	return out
}

// Size returns the total payload bytes across entries.
func (m *Mod) Size() int64 {
	var n int64
	for _, e := range m.Entries {
		n += int64(len(e.Data))
	}
	return n
}

// Parse decodes a mod file. Buffers without the magic are parsed as the
// legacy layout using the kind from WithLegacyKind.
func Parse(data []byte, opts ...ParseOption) (*Mod, error) {
	cfg := defaultParseConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return parseLegacy(data, cfg)
	}
	mod, err := parseCurrent(data, cfg)
	if err != nil && (errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnsupportedVersion)) {
		// A legacy file whose 65-byte name starts with "MOD" also opens
		// with the magic.
		if legacy, lerr := parseLegacy(data, cfg); lerr == nil {
			return legacy, nil
		}
	}
	return mod, err
}

func parseCurrent(data []byte, cfg parseConfig) (*Mod, error) {
	r := reader{buf: data, pos: len(Magic)}
	version, _ := r.u8()
	kindByte, _ := r.u8()
	flags, ok := r.u8()
	if !ok {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformed)
	}
	if version == 0 || version > FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	kind := Kind(kindByte)
	if kind != KindSingle && kind != KindPackage {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, kindByte)
	}

	body := data[r.pos:]
	if flags&FlagZstd != 0 {
		var err error
		body, err = decompress(body, cfg.maxDecodedSize)
		if err != nil {
			return nil, err
		}
	}

	mod, err := parseBody(body, kind, cfg)
	if err != nil {
		return nil, err
	}
	mod.Compressed = flags&FlagZstd != 0
	return mod, nil
}

// parseBody decodes metadata, count and entries, requiring that the entries
// consume the buffer exactly.
func parseBody(body []byte, kind Kind, cfg parseConfig) (*Mod, error) {
	r := reader{buf: body}
	mod := &Mod{Kind: kind}

	var ok bool
	if mod.Name, ok = r.str8(); !ok {
		return nil, fmt.Errorf("%w: truncated name", ErrMalformed)
	}
	if mod.Author, ok = r.str8(); !ok {
		return nil, fmt.Errorf("%w: truncated author", ErrMalformed)
	}
	if mod.Version, ok = r.str8(); !ok {
		return nil, fmt.Errorf("%w: truncated version", ErrMalformed)
	}
	if mod.Description, ok = r.str16(); !ok {
		return nil, fmt.Errorf("%w: truncated description", ErrMalformed)
	}
	count, ok := r.u32()
	if !ok {
		return nil, fmt.Errorf("%w: truncated entry count", ErrMalformed)
	}

	entries, err := readEntries(&r, count, cfg)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d entries", ErrMalformed, r.remaining(), count)
	}
	mod.Entries = entries
	if err := checkKind(mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// readEntries reads count size-prefixed entries. Every declared size is
// bounds-checked before any data is sliced.
func readEntries(r *reader, count uint32, cfg parseConfig) ([]Entry, error) {
	// Each entry needs at least its size prefix and taildata.
	if uint64(count)*(4+taildata.Size) > uint64(r.remaining()) {
		return nil, fmt.Errorf("%w: entry count %d exceeds payload", ErrMalformed, count)
	}
	entries := make([]Entry, 0, count)
	for i := range count {
		size, ok := r.u32()
		if !ok {
			return nil, fmt.Errorf("%w: entry %d: truncated size", ErrMalformed, i)
		}
		raw, ok := r.bytes(int(size))
		if !ok {
			return nil, fmt.Errorf("%w: entry %d: size %d runs past end of buffer", ErrMalformed, i, size)
		}
		if len(raw) < taildata.Size {
			return nil, fmt.Errorf("%w: entry %d: %d bytes cannot hold taildata", ErrMalformed, i, len(raw))
		}
		data, tail, err := cfg.codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformed, i, err)
		}
		entries = append(entries, Entry{Data: data, Tail: tail})
	}
	return entries, nil
}

func checkKind(m *Mod) error {
	switch {
	case m.Kind == KindSingle && len(m.Entries) != 1:
		return fmt.Errorf("%w: single mod holds %d entries", ErrMalformed, len(m.Entries))
	case m.Kind == KindPackage && len(m.Entries) == 0:
		return fmt.Errorf("%w: empty package", ErrMalformed)
	}
	return nil
}

// Encode writes m in the current layout.
func Encode(m *Mod, opts ...EncodeOption) ([]byte, error) {
	cfg := encodeConfig{codec: taildata.LittleEndian}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := checkKind(m); err != nil {
		return nil, err
	}

	body, err := encodeBody(m, cfg)
	if err != nil {
		return nil, err
	}

	var flags uint8
	if cfg.zstd {
		flags |= FlagZstd
		body, err = compress(body)
		if err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, len(Magic)+3+len(body))
	out = append(out, Magic...)
	out = append(out, FormatVersion, uint8(m.Kind), flags)
	return append(out, body...), nil
}

func encodeBody(m *Mod, cfg encodeConfig) ([]byte, error) {
	if len(m.Entries) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrTooLarge, len(m.Entries))
	}
	buf, err := appendMeta(nil, m.Meta)
	if err != nil {
		return nil, err
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Entries))) //nolint:gosec // checked above
	return appendEntries(buf, m.Entries, cfg.codec)
}

func appendMeta(buf []byte, meta Meta) ([]byte, error) {
	for _, f := range []struct {
		name, value string
	}{{"name", meta.Name}, {"author", meta.Author}, {"version", meta.Version}} {
		if len(f.value) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, f.name, len(f.value))
		}
		buf = append(buf, uint8(len(f.value)))
		buf = append(buf, f.value...)
	}
	if len(meta.Description) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: description is %d bytes", ErrTooLarge, len(meta.Description))
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(meta.Description)))
	return append(buf, meta.Description...), nil
}

func appendEntries(buf []byte, entries []Entry, codec taildata.Codec) ([]byte, error) {
	for i, e := range entries {
		size := len(e.Data) + taildata.Size
		if size > math.MaxUint32 {
			return nil, fmt.Errorf("%w: entry %d is %d bytes", ErrTooLarge, i, size)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(size)) //nolint:gosec // checked above
		buf = append(buf, e.Data...)
		buf = codec.Append(buf, e.Tail)
	}
	return buf, nil
}

// reader is a bounds-checked little endian cursor.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) bytes(n int) ([]byte, bool) {
	if n < 0 || n > r.remaining() {
		return nil, false
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, true
}

func (r *reader) u8() (uint8, bool) {
	b, ok := r.bytes(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *reader) u16() (uint16, bool) {
	b, ok := r.bytes(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (r *reader) u32() (uint32, bool) {
	b, ok := r.bytes(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (r *reader) str8() (string, bool) {
	n, ok := r.u8()
	if !ok {
		return "", false
	}
	b, ok := r.bytes(int(n))
	return string(b), ok
}

func (r *reader) str16() (string, bool) {
	n, ok := r.u16()
	if !ok {
		return "", false
	}
	b, ok := r.bytes(int(n))
	return string(b), ok
}
