package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

const refExt = ".ref"

// refOptions accept the ".ref" dialect: "Key: value" lines, repeated keys
// that extend a list, and indented continuation lines.
var refOptions = ini.LoadOptions{
	AllowShadows:               true,
	AllowPythonMultilineValues: true,
	SkipUnrecognizableLines:    true,
}

// LoadRef reads a ".ref" game config. The profile id is the file name
// without extension; identity fields missing from the file are taken from
// the built-in profile of that id.
func LoadRef(path string) (Profile, error) {
	f, err := ini.LoadSources(refOptions, path)
	if err != nil {
		return Profile{}, fmt.Errorf("load ref %s: %w", path, err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := profileFromRef(id, f.Section(ini.DefaultSection))
	if err != nil {
		return Profile{}, fmt.Errorf("load ref %s: %w", path, err)
	}
	if base, ok := Builtin(id); ok {
		p = p.merge(base)
	}
	return p, nil
}

// ParseRef reads a ".ref" game config from memory.
func ParseRef(id string, data []byte) (Profile, error) {
	f, err := ini.LoadSources(refOptions, data)
	if err != nil {
		return Profile{}, fmt.Errorf("parse ref: %w", err)
	}
	return profileFromRef(id, f.Section(ini.DefaultSection))
}

func profileFromRef(id string, sec *ini.Section) (Profile, error) {
	p := Profile{
		ID:          id,
		DisplayName: refString(sec, "Game"),
		Endian:      refString(sec, "Endian"),
		Containers:  refList(sec, "Containers"),
		IndexFiles:  refList(sec, "IDX_Files"),
		Layout: LayoutSpec{
			Fields:      refList(sec, "Raw_Variables"),
			ShiftFields: refList(sec, "Raw_Variables_To_Shift"),
		},
	}

	var err error
	if p.Layout.FieldWidth, err = refInt(sec, "Length_Per_Raw_Variables"); err != nil {
		return Profile{}, err
	}
	if p.Layout.EntrySize, err = refInt(sec, "IDX_Chunk_Read"); err != nil {
		return Profile{}, err
	}
	shiftKey := "Raw_Shift_Bits"
	if !sec.HasKey(shiftKey) {
		shiftKey = "Bit_Shift_to_left"
	}
	shift, err := refInt(sec, shiftKey)
	if err != nil {
		return Profile{}, err
	}
	if shift < 0 {
		return Profile{}, fmt.Errorf("%w: %s: negative shift %d", ErrInvalidProfile, id, shift)
	}
	p.Layout.ShiftBits = uint(shift)
	return p, nil
}

func refString(sec *ini.Section, name string) string {
	if !sec.HasKey(name) {
		return ""
	}
	return strings.TrimSpace(sec.Key(name).String())
}

func refInt(sec *ini.Section, name string) (int, error) {
	v := refString(sec, name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidProfile, name, err)
	}
	return n, nil
}

// refList joins every value of a possibly repeated key and splits it on
// commas and line breaks.
func refList(sec *ini.Section, name string) []string {
	if !sec.HasKey(name) {
		return nil
	}
	var out []string
	for _, v := range sec.Key(name).ValueWithShadows() {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
