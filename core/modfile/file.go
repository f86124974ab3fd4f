package modfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aldnoah/modkit/core/taildata"
)

// ReadFile reads and parses the mod file at path. A mod without a name
// takes the file name, which is how earlier tools identified mods.
func ReadFile(path string, opts ...ParseOption) (*Mod, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-selected mod file
	if err != nil {
		return nil, fmt.Errorf("read mod file: %w", err)
	}
	mod, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(mod.Name) == "" {
		mod.Name = filepath.Base(path)
	}
	return mod, nil
}

// WriteFile encodes m and writes it to path atomically.
func WriteFile(path string, m *Mod, opts ...EncodeOption) error {
	data, err := Encode(m, opts...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create mod directory: %w", err)
	}
	return writeFileAtomic(path, data)
}

// WriteRaw writes an already encoded mod file to path atomically.
func WriteRaw(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create mod directory: %w", err)
	}
	return writeFileAtomic(path, raw)
}

// Pack builds a mod from unpacked files that still carry their taildata.
// A single path yields a single mod; several yield a package.
func Pack(meta Meta, paths []string, codec taildata.Codec) (*Mod, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files to pack", ErrMalformed)
	}
	mod := &Mod{Meta: meta, Kind: KindPackage}
	if len(paths) == 1 {
		mod.Kind = KindSingle
	}
	for _, p := range paths {
		raw, err := os.ReadFile(p) //nolint:gosec // caller-selected input file
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		data, tail, err := codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		mod.Entries = append(mod.Entries, Entry{Data: data, Tail: tail})
	}
	return mod, nil
}

// writeFileAtomic writes data to a temp file then renames to target,
// ensuring atomic replacement of the target file.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".mod-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
