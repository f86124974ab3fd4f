// Package disk provides a filesystem-backed ledger.
//
// Each live entry is one FlatBuffers file. Files are grouped in one
// directory per archive:
//
//	<dir>/entries/<hex archive>/<marker>-<entry offset>.entry
//	<dir>/state/<hex archive>.state
//
// Upserts write a temp file, sync it and rename it into place, so a key is
// either fully present or absent after a crash.
package disk

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aldnoah/modkit/core/ledger"
)

const (
	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600

	entriesDir  = "entries"
	stateDir    = "state"
	entryExt    = ".entry"
	stateExt    = ".state"
	tempPattern = ".ledger-*"
)

// Ledger implements ledger.Ledger on the local filesystem.
// It is safe for concurrent use within one process.
type Ledger struct {
	dir      string
	dirPerm  os.FileMode
	filePerm os.FileMode
	mu       sync.Mutex // serializes mutations
}

var _ ledger.Ledger = (*Ledger)(nil)

// Option configures a disk ledger.
type Option func(*Ledger)

// WithDirPerm sets the permissions used for ledger directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(l *Ledger) {
		l.dirPerm = mode
	}
}

// WithFilePerm sets the permissions used for entry files.
func WithFilePerm(mode os.FileMode) Option {
	return func(l *Ledger) {
		l.filePerm = mode
	}
}

// Open opens or creates a ledger rooted at dir.
func Open(dir string, opts ...Option) (*Ledger, error) {
	if dir == "" {
		return nil, errors.New("ledger dir is empty")
	}
	l := &Ledger{
		dir:      dir,
		dirPerm:  defaultDirPerm,
		filePerm: defaultFilePerm,
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, sub := range []string{entriesDir, stateDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), l.dirPerm); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Dir returns the ledger root directory.
func (l *Ledger) Dir() string {
	return l.dir
}

// Record stores e, failing with ledger.ErrDuplicate if its key is live.
func (l *Ledger) Record(e ledger.Entry) error {
	path, err := l.entryPath(e.Key)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicate, e.Key)
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}
	return l.writeAtomic(path, ledger.MarshalEntry(&e))
}

// Lookup returns the live entry for k.
func (l *Ledger) Lookup(k ledger.Key) (ledger.Entry, error) {
	path, err := l.entryPath(k)
	if err != nil {
		return ledger.Entry{}, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the key encoding
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ledger.Entry{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, k)
		}
		return ledger.Entry{}, err
	}
	e, err := ledger.UnmarshalEntry(data)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("read %s: %w", path, err)
	}
	return e, nil
}

// Remove deletes the entry for k. A missing entry is not an error.
func (l *Ledger) Remove(k ledger.Key) error {
	path, err := l.entryPath(k)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	// Drop the archive directory once it is empty.
	_ = os.Remove(filepath.Dir(path)) //nolint:errcheck // fails while entries remain
	return nil
}

// AllForArchive returns every live entry of archive in apply order.
func (l *Ledger) AllForArchive(archive string) ([]ledger.Entry, error) {
	dir := filepath.Join(l.dir, entriesDir, encodeName(archive))
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]ledger.Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), entryExt) {
			continue
		}
		path := filepath.Join(dir, f.Name())
		data, err := os.ReadFile(path) //nolint:gosec // path is inside the ledger directory
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		e, err := ledger.UnmarshalEntry(data)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		entries = append(entries, e)
	}
	ledger.SortEntries(entries)
	return entries, nil
}

// Archives returns archives with live entries or an inconsistency flag.
func (l *Ledger) Archives() ([]string, error) {
	var names []string

	dirs, err := os.ReadDir(filepath.Join(l.dir, entriesDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		name, ok := decodeName(d.Name())
		if !ok {
			continue
		}
		names = append(names, name)
	}

	states, err := os.ReadDir(filepath.Join(l.dir, stateDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, s := range states {
		name, ok := decodeName(strings.TrimSuffix(s.Name(), stateExt))
		if !ok || s.IsDir() || !strings.HasSuffix(s.Name(), stateExt) {
			continue
		}
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// MarkInconsistent persists the inconsistency flag for archive.
func (l *Ledger) MarkInconsistent(archive, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := ledger.ArchiveState{Archive: archive, Reason: reason, MarkedAt: time.Now().UTC()}
	return l.writeAtomic(l.statePath(archive), ledger.MarshalState(&st))
}

// Inconsistent returns the persisted flag for archive, if any.
func (l *Ledger) Inconsistent(archive string) (ledger.ArchiveState, bool, error) {
	data, err := os.ReadFile(l.statePath(archive))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ledger.ArchiveState{}, false, nil
		}
		return ledger.ArchiveState{}, false, err
	}
	st, err := ledger.UnmarshalState(data)
	if err != nil {
		return ledger.ArchiveState{}, false, err
	}
	return st, true, nil
}

// ClearInconsistent removes the flag for archive.
func (l *Ledger) ClearInconsistent(archive string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.statePath(archive)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Ledger) entryPath(k ledger.Key) (string, error) {
	if k.Archive == "" {
		return "", errors.New("archive name is empty")
	}
	name := fmt.Sprintf("%02x-%08x%s", k.IdxMarker, k.EntryOffset, entryExt)
	return filepath.Join(l.dir, entriesDir, encodeName(k.Archive), name), nil
}

func (l *Ledger) statePath(archive string) string {
	return filepath.Join(l.dir, stateDir, encodeName(archive)+stateExt)
}

// writeAtomic writes data to a synced temp file and renames it to path.
func (l *Ledger) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, l.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, l.filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func encodeName(name string) string {
	return hex.EncodeToString([]byte(name))
}

func decodeName(s string) (string, bool) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return "", false
	}
	return string(b), true
}
