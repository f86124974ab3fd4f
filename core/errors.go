package modkit

import (
	"errors"
	"fmt"

	"github.com/aldnoah/modkit/core/modfile"
)

// Sentinel errors for engine operations.
var (
	// ErrMalformedPayload is returned when a mod file fails structural
	// validation. Nothing has been mutated when it is returned.
	ErrMalformedPayload = errors.New("modkit: malformed payload")

	// ErrAlreadyApplied is returned when an entry's index record, or a mod
	// by name, is already live in the ledger.
	ErrAlreadyApplied = errors.New("modkit: already applied")

	// ErrNoSuchMod is returned when a disable target is not in the ledger.
	ErrNoSuchMod = errors.New("modkit: no such mod")

	// ErrInconsistentLedgerState is returned when a file mutation and its
	// ledger mutation diverged. The archive stays blocked until the flag is
	// cleared with Engine.ClearInconsistent.
	ErrInconsistentLedgerState = errors.New("modkit: inconsistent ledger state")

	// ErrArchiveAccess is returned when an index or blob file cannot be read
	// or written, or when taildata does not resolve to a real record.
	ErrArchiveAccess = errors.New("modkit: archive access error")

	// ErrDuplicateActiveEntry is returned when the ledger refuses a record
	// because the key is already live.
	ErrDuplicateActiveEntry = errors.New("modkit: duplicate active entry")

	// ErrUnknownMarker is returned when an idx marker does not resolve to an
	// archive. It is always accompanied by ErrArchiveAccess.
	ErrUnknownMarker = errors.New("modkit: unknown idx marker")

	// ErrFieldOverflow is returned when a planned value does not fit its
	// index record field.
	ErrFieldOverflow = errors.New("modkit: value overflows index field")
)

// ArchiveError describes a failed file operation on an archive pair.
// It matches ErrArchiveAccess and the underlying cause with errors.Is.
type ArchiveError struct {
	Archive string
	Path    string
	Op      string
	Err     error
}

func (e *ArchiveError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Archive, e.Err)
	}
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Archive, e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() []error {
	return []error{ErrArchiveAccess, e.Err}
}

// inconsistentError reports a divergence between files and ledger.
func inconsistentError(archive, reason string, causes ...error) error {
	if cause := errors.Join(causes...); cause != nil {
		return fmt.Errorf("%w: %s: %s: %w", ErrInconsistentLedgerState, archive, reason, cause)
	}
	return fmt.Errorf("%w: %s: %s", ErrInconsistentLedgerState, archive, reason)
}

// ParsePayload parses mod file bytes, mapping structural failures to
// ErrMalformedPayload.
func ParsePayload(data []byte, opts ...modfile.ParseOption) (*modfile.Mod, error) {
	mod, err := modfile.Parse(data, opts...)
	if err != nil {
		return nil, payloadError(err)
	}
	return mod, nil
}

func payloadError(err error) error {
	if errors.Is(err, modfile.ErrMalformed) || errors.Is(err, modfile.ErrUnsupportedVersion) {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return err
}
