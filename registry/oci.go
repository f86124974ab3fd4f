package registry

import (
	"context"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// OCIClient defines the OCI registry operations the client needs.
//
// The oras subpackage provides the default implementation; tests supply
// their own.
type OCIClient interface {
	// PushBlob pushes a blob. The descriptor carries the digest and size.
	PushBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error

	// FetchBlob fetches a blob. The caller closes the reader.
	FetchBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error)

	// PushManifest pushes a manifest and tags it.
	PushManifest(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error)

	// FetchManifest fetches a manifest by descriptor, returning the raw bytes too.
	FetchManifest(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error)

	// Resolve resolves a tag or digest to a descriptor.
	Resolve(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error)

	// Tag creates or moves a tag.
	Tag(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error
}
