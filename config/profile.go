package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/record"
	"github.com/aldnoah/modkit/core/taildata"
)

// Sentinel errors for profile handling.
var (
	// ErrInvalidProfile is returned when a profile cannot drive the engine.
	ErrInvalidProfile = errors.New("config: invalid profile")

	// ErrUnknownProfile is returned when no profile has the requested id.
	ErrUnknownProfile = errors.New("config: unknown profile")
)

// Profile describes one game.
type Profile struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name,omitempty"`

	// SingleExt and PackageExt are the mod file extensions, dot included.
	SingleExt  string `yaml:"single_ext,omitempty"`
	PackageExt string `yaml:"package_ext,omitempty"`

	// LedgerName names the game's ledger under the ledger directory.
	LedgerName string `yaml:"ledger_name,omitempty"`

	// Endian is "little" or "big". It applies to taildata and records.
	Endian string `yaml:"endian,omitempty"`

	// Containers lists blob file names by idx marker. IndexFiles lists
	// index file names; a single index file is shared by every container.
	Containers []string `yaml:"containers,omitempty"`
	IndexFiles []string `yaml:"index_files,omitempty"`

	Layout LayoutSpec `yaml:"layout,omitempty"`
}

// LayoutSpec is the YAML form of record.Layout.
type LayoutSpec struct {
	Fields      []string `yaml:"fields,omitempty"`
	FieldWidth  int      `yaml:"field_width,omitempty"`
	EntrySize   int      `yaml:"entry_size,omitempty"`
	ShiftBits   uint     `yaml:"shift_bits,omitempty"`
	ShiftFields []string `yaml:"shift_fields,omitempty"`

	OffsetField         string `yaml:"offset_field,omitempty"`
	SizeField           string `yaml:"size_field,omitempty"`
	CompressedSizeField string `yaml:"compressed_size_field,omitempty"`
	FlagField           string `yaml:"flag_field,omitempty"`
}

// IsZero reports whether no layout was given.
func (s LayoutSpec) IsZero() bool {
	return len(s.Fields) == 0 && s.FieldWidth == 0
}

// ByteOrder returns the profile's byte order. Empty means little endian.
func (p Profile) ByteOrder() (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(p.Endian)) {
	case "", "little", "le", "<":
		return binary.LittleEndian, nil
	case "big", "be", ">":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%w: %s: endian %q", ErrInvalidProfile, p.ID, p.Endian)
	}
}

// TaildataCodec returns the codec for mod files of this game.
func (p Profile) TaildataCodec() (taildata.Codec, error) {
	order, err := p.ByteOrder()
	if err != nil {
		return taildata.Codec{}, err
	}
	return taildata.Codec{Order: order}, nil
}

// RecordLayout returns the resolved index record layout.
func (p Profile) RecordLayout() (record.Layout, error) {
	if p.Layout.IsZero() {
		return record.Layout{}, fmt.Errorf("%w: %s: no record layout", ErrInvalidProfile, p.ID)
	}
	order, err := p.ByteOrder()
	if err != nil {
		return record.Layout{}, err
	}
	l, err := record.Layout{
		Fields:              p.Layout.Fields,
		FieldWidth:          p.Layout.FieldWidth,
		EntrySize:           p.Layout.EntrySize,
		Order:               order,
		ShiftBits:           p.Layout.ShiftBits,
		ShiftFields:         p.Layout.ShiftFields,
		OffsetField:         p.Layout.OffsetField,
		SizeField:           p.Layout.SizeField,
		CompressedSizeField: p.Layout.CompressedSizeField,
		FlagField:           p.Layout.FlagField,
	}.Resolve()
	if err != nil {
		return record.Layout{}, fmt.Errorf("%w: %s: %w", ErrInvalidProfile, p.ID, err)
	}
	return l, nil
}

// KindForPath returns the mod kind implied by a file extension.
func (p Profile) KindForPath(path string) (modfile.Kind, bool) {
	ext := filepath.Ext(path)
	switch {
	case p.SingleExt != "" && strings.EqualFold(ext, p.SingleExt):
		return modfile.KindSingle, true
	case p.PackageExt != "" && strings.EqualFold(ext, p.PackageExt):
		return modfile.KindPackage, true
	default:
		return modfile.KindPackage, false
	}
}

// ParseOptions returns the modfile options for reading path.
func (p Profile) ParseOptions(path string) ([]modfile.ParseOption, error) {
	codec, err := p.TaildataCodec()
	if err != nil {
		return nil, err
	}
	kind, _ := p.KindForPath(path)
	return []modfile.ParseOption{
		modfile.WithTaildataCodec(codec),
		modfile.WithLegacyKind(kind),
	}, nil
}

// Validate checks that the profile can resolve markers.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidProfile)
	}
	if len(p.Containers) == 0 {
		return fmt.Errorf("%w: %s: no containers", ErrInvalidProfile, p.ID)
	}
	if len(p.IndexFiles) == 0 {
		return fmt.Errorf("%w: %s: no index files", ErrInvalidProfile, p.ID)
	}
	if len(p.IndexFiles) > 1 && len(p.IndexFiles) != len(p.Containers) {
		return fmt.Errorf("%w: %s: %d index files for %d containers",
			ErrInvalidProfile, p.ID, len(p.IndexFiles), len(p.Containers))
	}
	if len(p.Containers) > 256 {
		return fmt.Errorf("%w: %s: %d containers exceed the marker range", ErrInvalidProfile, p.ID, len(p.Containers))
	}
	if _, err := p.RecordLayout(); err != nil {
		return err
	}
	return nil
}

// merge returns p with every empty field taken from base.
func (p Profile) merge(base Profile) Profile {
	if p.DisplayName == "" {
		p.DisplayName = base.DisplayName
	}
	if p.SingleExt == "" {
		p.SingleExt = base.SingleExt
	}
	if p.PackageExt == "" {
		p.PackageExt = base.PackageExt
	}
	if p.LedgerName == "" {
		p.LedgerName = base.LedgerName
	}
	if p.Endian == "" {
		p.Endian = base.Endian
	}
	if len(p.Containers) == 0 {
		p.Containers = base.Containers
	}
	if len(p.IndexFiles) == 0 {
		p.IndexFiles = base.IndexFiles
	}
	if p.Layout.IsZero() {
		p.Layout = base.Layout
	}
	return p
}

// DecodeProfiles reads one or more YAML documents, each holding a profile.
// Unknown keys are rejected.
func DecodeProfiles(r io.Reader) ([]Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []Profile
	for {
		var p Profile
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode profile %d: %w", len(out)+1, err)
		}
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("%w: profile %d has no id", ErrInvalidProfile, len(out)+1)
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadProfiles reads profiles from a YAML file, or from a .ref file when
// the extension says so.
func LoadProfiles(path string) ([]Profile, error) {
	if strings.EqualFold(filepath.Ext(path), refExt) {
		p, err := LoadRef(path)
		if err != nil {
			return nil, err
		}
		return []Profile{p}, nil
	}
	f, err := os.Open(path) //nolint:gosec // path is user configuration
	if err != nil {
		return nil, fmt.Errorf("open profiles: %w", err)
	}
	defer f.Close()
	return DecodeProfiles(f)
}

// EncodeProfiles writes profiles as a YAML document stream.
func EncodeProfiles(w io.Writer, profiles []Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for i := range profiles {
		if err := enc.Encode(&profiles[i]); err != nil {
			return fmt.Errorf("encode profile %s: %w", profiles[i].ID, err)
		}
	}
	return enc.Close()
}

// Lookup returns the profile with id, case-insensitively. User profiles
// fill their empty fields from the built-in profile of the same id.
func Lookup(id string, user []Profile) (Profile, error) {
	base, hasBase := Builtin(id)
	for _, p := range user {
		if strings.EqualFold(p.ID, id) {
			if hasBase {
				p = p.merge(base)
			}
			return p, nil
		}
	}
	if hasBase {
		return base, nil
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, id)
}
