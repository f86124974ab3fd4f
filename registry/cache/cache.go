// Package cache defines the caches used by the registry client.
package cache

// RefCache caches reference to digest mappings.
//
// This avoids redundant HEAD requests for tag resolution.
type RefCache interface {
	// GetDigest returns the digest for a reference if cached.
	GetDigest(ref string) (digest string, ok bool)

	// PutDigest caches a reference to digest mapping.
	PutDigest(ref string, digest string) error

	// Delete removes a cached reference.
	Delete(ref string) error
}

// ModCache caches encoded mod layers by digest.
//
// Pulled mods are content addressed, so a hit never needs revalidation
// against the registry.
type ModCache interface {
	// GetMod returns the cached layer bytes for a digest.
	GetMod(digest string) (raw []byte, ok bool)

	// PutMod caches raw layer bytes by digest.
	PutMod(digest string, raw []byte) error

	// Delete removes a cached layer.
	Delete(digest string) error

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
