package modfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ParseLegacy decodes the layout written by the original mod creator:
//
//	u8 name_len name  u32 count  u8 author_len author
//	u8 ver_len version  u16 desc_len description
//	count x { u32 size, data, taildata }
//
// The layout does not record its kind, so the caller supplies it.
func ParseLegacy(data []byte, kind Kind, opts ...ParseOption) (*Mod, error) {
	cfg := defaultParseConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.legacyKind = kind
	return parseLegacy(data, cfg)
}

func parseLegacy(data []byte, cfg parseConfig) (*Mod, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty mod file", ErrMalformed)
	}
	r := reader{buf: data}
	mod := &Mod{Kind: cfg.legacyKind}

	var ok bool
	if mod.Name, ok = r.str8(); !ok {
		return nil, fmt.Errorf("%w: truncated name", ErrMalformed)
	}
	count, ok := r.u32()
	if !ok {
		return nil, fmt.Errorf("%w: truncated entry count", ErrMalformed)
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

// EncodeLegacy writes m in the legacy layout for tools that predate the
// current one.
func EncodeLegacy(m *Mod) ([]byte, error) {
	if err := checkKind(m); err != nil {
		return nil, err
	}
	if len(m.Name) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: name is %d bytes", ErrTooLarge, len(m.Name))
	}
	if len(m.Entries) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrTooLarge, len(m.Entries))
	}
	buf := append([]byte{uint8(len(m.Name))}, m.Name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Entries))) //nolint:gosec // checked above

	// Author, version and description follow the count in this layout.
	rest, err := appendMeta(nil, Meta{Author: m.Author, Version: m.Version, Description: m.Description})
	if err != nil {
		return nil, err
	}
	buf = append(buf, rest[1:]...) // drop the empty name
	return appendEntries(buf, m.Entries, encodeConfig{}.codec)
}
