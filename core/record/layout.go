// Package record describes game-specific index record layouts and reads or
// patches individual records.
//
// A layout is a flat list of equally sized unsigned fields. Four of them
// matter for patching: the data offset, the size, an optional compressed
// size and an optional compression flag. Offsets may be stored in blocks,
// in which case the stored value is the byte offset shifted right.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultEntrySize is used when a layout declares neither an entry size
// nor any fields.
const DefaultEntrySize = 32

// MaxShiftBits bounds the block shift so the append alignment stays a
// positive block size.
const MaxShiftBits = 32

// Sentinel errors for layout handling.
var (
	// ErrInvalidLayout is returned when a layout cannot describe a record.
	ErrInvalidLayout = errors.New("record: invalid layout")

	// ErrFieldOverflow is returned when a value does not fit its field.
	ErrFieldOverflow = errors.New("record: value overflows field")

	// ErrShortRecord is returned when raw record bytes are shorter than the entry size.
	ErrShortRecord = errors.New("record: short record")
)

// Layout describes one index entry.
type Layout struct {
	// Fields lists field names in on-disk order.
	Fields []string
	// FieldWidth is the byte width of every field (1, 2, 4 or 8).
	FieldWidth int
	// EntrySize is the full record size. Zero derives it from the fields.
	EntrySize int
	// Order is the byte order of every field. Nil means little endian.
	Order binary.ByteOrder
	// ShiftBits is the block shift applied to stored offsets. At most
	// MaxShiftBits.
	ShiftBits uint
	// ShiftFields names the fields stored shifted. Empty means the offset field.
	ShiftFields []string

	// Field picks. Empty values are filled by Resolve.
	OffsetField         string
	SizeField           string
	CompressedSizeField string
	FlagField           string
}

// Record is the logical content of one index entry.
type Record struct {
	Offset         uint64
	Size           uint64
	CompressedSize uint64
	Flag           uint64
}

// Resolve validates l and fills in the entry size and field picks.
// The receiver is not modified.
func (l Layout) Resolve() (Layout, error) {
	switch l.FieldWidth {
	case 1, 2, 4, 8:
	default:
		return Layout{}, fmt.Errorf("%w: field width %d", ErrInvalidLayout, l.FieldWidth)
	}
	if len(l.Fields) == 0 {
		return Layout{}, fmt.Errorf("%w: no fields", ErrInvalidLayout)
	}
	if l.Order == nil {
		l.Order = binary.LittleEndian
	}
	calc := len(l.Fields) * l.FieldWidth
	if l.EntrySize <= 0 {
		l.EntrySize = calc
	}
	if l.EntrySize < calc {
		return Layout{}, fmt.Errorf("%w: entry size %d smaller than %d fields of %d bytes",
			ErrInvalidLayout, l.EntrySize, len(l.Fields), l.FieldWidth)
	}

	l.OffsetField = l.pick(l.OffsetField, []string{"Offset"}, []string{"offset"}, nil)
	l.SizeField = l.pick(l.SizeField, []string{"Original_Size", "Full_Size", "Size"}, []string{"size"}, []string{"compressed"})
	l.CompressedSizeField = l.pick(l.CompressedSizeField, []string{"Compressed_Size"}, []string{"compressed", "csize"}, nil)
	l.FlagField = l.pick(l.FlagField, []string{"Compression_Marker"}, []string{"compression", "flag", "marker"}, nil)

	if l.OffsetField == "" {
		return Layout{}, fmt.Errorf("%w: no offset field in %v", ErrInvalidLayout, l.Fields)
	}
	if l.SizeField == "" {
		return Layout{}, fmt.Errorf("%w: no size field in %v", ErrInvalidLayout, l.Fields)
	}
	if l.CompressedSizeField == l.SizeField {
		l.CompressedSizeField = ""
	}
	for _, name := range []string{l.OffsetField, l.SizeField, l.CompressedSizeField, l.FlagField} {
		if name != "" && !slices.Contains(l.Fields, name) {
			return Layout{}, fmt.Errorf("%w: field %q not declared", ErrInvalidLayout, name)
		}
	}
	if l.ShiftBits > MaxShiftBits {
		return Layout{}, fmt.Errorf("%w: shift of %d bits exceeds %d", ErrInvalidLayout, l.ShiftBits, MaxShiftBits)
	}
	return l, nil
}

// pick returns explicit when set, else the first preferred name present,
// else the first field containing any of the substrings and none of reject.
func (l Layout) pick(explicit string, prefer, contains, reject []string) string {
	if explicit != "" {
		return explicit
	}
	for _, p := range prefer {
		if slices.Contains(l.Fields, p) {
			return p
		}
	}
	for _, name := range l.Fields {
		lower := strings.ToLower(name)
		if containsAny(lower, contains) && !containsAny(lower, reject) {
			return name
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Alignment returns the append alignment required so new offsets stay
// representable after the block shift. It is never below 16.
func (l Layout) Alignment() int64 {
	align := int64(16)
	if l.ShiftBits > 0 && l.offsetShifted() {
		if block := int64(1) << l.ShiftBits; block > align {
			align = block
		}
	}
	return align
}

func (l Layout) offsetShifted() bool {
	if l.ShiftBits == 0 {
		return false
	}
	return len(l.ShiftFields) == 0 || slices.Contains(l.ShiftFields, l.OffsetField)
}

func (l Layout) span(name string) (int, int, bool) {
	i := slices.Index(l.Fields, name)
	if name == "" || i < 0 {
		return 0, 0, false
	}
	start := i * l.FieldWidth
	return start, start + l.FieldWidth, true
}

func (l Layout) get(raw []byte, name string) uint64 {
	start, end, ok := l.span(name)
	if !ok {
		return 0
	}
	b := raw[start:end]
	switch l.FieldWidth {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(l.Order.Uint16(b))
	case 4:
		return uint64(l.Order.Uint32(b))
	default:
		return l.Order.Uint64(b)
	}
}

func (l Layout) put(raw []byte, name string, v uint64) error {
	start, end, ok := l.span(name)
	if !ok {
		return nil
	}
	if l.FieldWidth < 8 && v>>(8*uint(l.FieldWidth)) != 0 {
		return fmt.Errorf("%w: %s=%d exceeds %d bytes", ErrFieldOverflow, name, v, l.FieldWidth)
	}
	b := raw[start:end]
	switch l.FieldWidth {
	case 1:
		b[0] = byte(v)
	case 2:
		l.Order.PutUint16(b, uint16(v)) //nolint:gosec // overflow checked above
	case 4:
		l.Order.PutUint32(b, uint32(v)) //nolint:gosec // overflow checked above
	default:
		l.Order.PutUint64(b, v)
	}
	return nil
}

// Decode reads the logical record from raw entry bytes. Offsets are
// returned in bytes.
func (l Layout) Decode(raw []byte) (Record, error) {
	if len(raw) < l.EntrySize {
		return Record{}, fmt.Errorf("%w: have %d bytes, want %d", ErrShortRecord, len(raw), l.EntrySize)
	}
	r := Record{
		Offset:         l.get(raw, l.OffsetField),
		Size:           l.get(raw, l.SizeField),
		CompressedSize: l.get(raw, l.CompressedSizeField),
		Flag:           l.get(raw, l.FlagField),
	}
	if l.offsetShifted() {
		r.Offset <<= l.ShiftBits
	}
	return r, nil
}

// Patch returns a copy of raw with the offset, size, compressed size and
// flag fields replaced by r. Fields the layout does not declare are left
// untouched. The compressed size field always receives r.Size.
func (l Layout) Patch(raw []byte, r Record) ([]byte, error) {
	if len(raw) < l.EntrySize {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrShortRecord, len(raw), l.EntrySize)
	}
	out := slices.Clone(raw[:l.EntrySize])

	stored := r.Offset
	if l.offsetShifted() {
		if stored&(uint64(1)<<l.ShiftBits-1) != 0 {
			return nil, fmt.Errorf("%w: offset %d not aligned to %d-bit blocks", ErrFieldOverflow, r.Offset, l.ShiftBits)
		}
		stored >>= l.ShiftBits
	}
	if err := l.put(out, l.OffsetField, stored); err != nil {
		return nil, err
	}
	if err := l.put(out, l.SizeField, r.Size); err != nil {
		return nil, err
	}
	if err := l.put(out, l.CompressedSizeField, r.Size); err != nil {
		return nil, err
	}
	if err := l.put(out, l.FlagField, r.Flag); err != nil {
		return nil, err
	}
	return out, nil
}

// HasFlag reports whether the layout carries a compression flag field.
func (l Layout) HasFlag() bool {
	return l.FlagField != ""
}
