package modkit

import (
	"github.com/aldnoah/modkit/core/record"
)

// Target locates the index record and blob an idx marker refers to.
type Target struct {
	// Archive names the archive pair. It is part of every ledger key.
	Archive string
	// IndexPath is the index file holding the records.
	IndexPath string
	// BlobName and BlobPath identify the blob data is appended to.
	BlobName string
	BlobPath string
	// Layout describes records in IndexPath. It must be resolved.
	Layout record.Layout
}

// Resolver maps idx markers to targets. It is supplied by the caller from
// per-game configuration.
type Resolver interface {
	Resolve(marker uint8) (Target, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(marker uint8) (Target, error)

// Resolve calls f(marker).
func (f ResolverFunc) Resolve(marker uint8) (Target, error) {
	return f(marker)
}
