package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrNotFound is returned when nothing exists at the reference.
	ErrNotFound = errors.New("registry: not found")

	// ErrUnauthorized is returned when the registry rejects the credentials.
	ErrUnauthorized = errors.New("registry: unauthorized")

	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = errors.New("registry: invalid reference")

	// ErrInvalidManifest is returned when a manifest is not a mod manifest.
	ErrInvalidManifest = errors.New("registry: invalid mod manifest")

	// ErrMissingMod is returned when the manifest has no mod layer.
	ErrMissingMod = errors.New("registry: missing mod layer")

	// ErrDigestMismatch is returned when content does not match its digest.
	ErrDigestMismatch = errors.New("registry: digest mismatch")

	// ErrTooLarge is returned when a mod layer exceeds the size limit.
	ErrTooLarge = errors.New("registry: mod layer too large")
)
