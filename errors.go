package modkit

import (
	modcore "github.com/aldnoah/modkit/core"
	"github.com/aldnoah/modkit/registry"
)

// Errors re-exported from core.
var (
	// ErrMalformedPayload is returned when a mod file fails structural validation.
	ErrMalformedPayload = modcore.ErrMalformedPayload

	// ErrAlreadyApplied is returned when an entry or mod is already live.
	ErrAlreadyApplied = modcore.ErrAlreadyApplied

	// ErrNoSuchMod is returned when a disable target is not in the ledger.
	ErrNoSuchMod = modcore.ErrNoSuchMod

	// ErrInconsistentLedgerState is returned when files and ledger diverged.
	ErrInconsistentLedgerState = modcore.ErrInconsistentLedgerState

	// ErrArchiveAccess is returned when an archive file cannot be read or written.
	ErrArchiveAccess = modcore.ErrArchiveAccess

	// ErrDuplicateActiveEntry is returned when the ledger already holds the key.
	ErrDuplicateActiveEntry = modcore.ErrDuplicateActiveEntry

	// ErrUnknownMarker is returned when an idx marker does not resolve.
	ErrUnknownMarker = modcore.ErrUnknownMarker

	// ErrFieldOverflow is returned when a value does not fit its index field.
	ErrFieldOverflow = modcore.ErrFieldOverflow
)

// Errors re-exported from registry.
var (
	// ErrNotFound is returned when no mod exists at the reference.
	ErrNotFound = registry.ErrNotFound

	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = registry.ErrInvalidReference

	// ErrInvalidManifest is returned when a manifest is not a mod manifest.
	ErrInvalidManifest = registry.ErrInvalidManifest

	// ErrDigestMismatch is returned when content does not match its digest.
	ErrDigestMismatch = registry.ErrDigestMismatch

	// ErrTooLarge is returned when a pulled mod exceeds the size limit.
	ErrTooLarge = registry.ErrTooLarge
)
