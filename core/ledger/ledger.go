// Package ledger defines the durable record of applied index patches.
//
// A ledger holds at most one live [Entry] per [Key]. Entries carry the
// pre-patch snapshot of the index record so a later disable can restore it
// byte for byte, and the blob length before the append so Disable All can
// truncate appended data away.
package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

// Sentinel errors for ledger operations.
var (
	// ErrNotFound is returned when no live entry exists for a key.
	ErrNotFound = errors.New("ledger: entry not found")

	// ErrDuplicate is returned when recording a key that already has a live entry.
	ErrDuplicate = errors.New("ledger: duplicate active entry")

	// ErrCorrupt is returned when a persisted entry cannot be decoded.
	ErrCorrupt = errors.New("ledger: corrupt entry")
)

// Key identifies one index record within an archive.
type Key struct {
	Archive     string
	IdxMarker   uint8
	EntryOffset uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/0x%X", k.Archive, k.IdxMarker, k.EntryOffset)
}

// Snapshot is the logical content of an index record at one point in time.
type Snapshot struct {
	Offset uint64
	Size   uint64
	Flag   uint64
}

// Entry records one applied patch.
type Entry struct {
	Key

	// Blob names the binary file the data was appended to.
	Blob string
	// ModName is the display name of the mod that produced the entry.
	ModName string

	// Original is the index record before patching and OriginalRecord its
	// raw bytes.
	Original       Snapshot
	OriginalRecord []byte

	// Patched holds the values written into the index record.
	Patched Snapshot

	// OriginalBinLength is the blob length before the append.
	OriginalBinLength uint64

	// DataDigest is the digest of the appended bytes.
	DataDigest digest.Digest
	AppliedAt  time.Time
}

// End returns the blob offset just past the appended data.
func (e Entry) End() uint64 {
	return e.Patched.Offset + e.Patched.Size
}

// ArchiveState records an archive flagged inconsistent.
type ArchiveState struct {
	Archive  string
	Reason   string
	MarkedAt time.Time
}

// Ledger is a durable keyed store of applied patches.
//
// Implementations must make every Record and Remove atomic per key and
// durable before returning.
type Ledger interface {
	// Record stores e. It fails with ErrDuplicate if e.Key is live.
	Record(e Entry) error

	// Lookup returns the live entry for k or ErrNotFound.
	Lookup(k Key) (Entry, error)

	// Remove deletes the entry for k. Removing a missing key is a no-op.
	Remove(k Key) error

	// AllForArchive returns every live entry of an archive in apply order.
	AllForArchive(archive string) ([]Entry, error)

	// Archives returns the names of archives with live entries or state.
	Archives() ([]string, error)

	// MarkInconsistent flags an archive whose files and ledger diverged.
	MarkInconsistent(archive, reason string) error

	// Inconsistent returns the flag for archive, if set.
	Inconsistent(archive string) (ArchiveState, bool, error)

	// ClearInconsistent removes the flag after manual reconciliation.
	ClearInconsistent(archive string) error
}

// SortEntries orders entries by apply time, then key.
func SortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := a.AppliedAt.Compare(b.AppliedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.IdxMarker, b.IdxMarker); c != 0 {
			return c
		}
		return cmp.Compare(a.EntryOffset, b.EntryOffset)
	})
}

// SameMod reports whether two mod names refer to the same mod.
// Names compare case-insensitively after trimming.
func SameMod(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
