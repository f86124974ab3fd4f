package registry

import (
	"context"
	"errors"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aldnoah/modkit/registry/registrytest"
)

// mockOCIClient dispatches to function fields. Unset fields fail.
type mockOCIClient struct {
	ResolveFunc       func(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error)
	FetchManifestFunc func(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error)
	FetchBlobFunc     func(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error)
	PushBlobFunc      func(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error
	PushManifestFunc  func(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error)
	TagFunc           func(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error
}

var errNotImplemented = errors.New("not implemented in mock")

func (m *mockOCIClient) Resolve(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, repoRef, ref)
	}
	return ocispec.Descriptor{}, errNotImplemented
}

func (m *mockOCIClient) FetchManifest(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
	if m.FetchManifestFunc != nil {
		return m.FetchManifestFunc(ctx, repoRef, expected)
	}
	return ocispec.Manifest{}, nil, errNotImplemented
}

func (m *mockOCIClient) FetchBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error) {
	if m.FetchBlobFunc != nil {
		return m.FetchBlobFunc(ctx, repoRef, desc)
	}
	return nil, errNotImplemented
}

func (m *mockOCIClient) PushBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error {
	if m.PushBlobFunc != nil {
		return m.PushBlobFunc(ctx, repoRef, desc, r)
	}
	return errNotImplemented
}

func (m *mockOCIClient) PushManifest(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	if m.PushManifestFunc != nil {
		return m.PushManifestFunc(ctx, repoRef, tag, manifest)
	}
	return ocispec.Descriptor{}, errNotImplemented
}

func (m *mockOCIClient) Tag(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error {
	if m.TagFunc != nil {
		return m.TagFunc(ctx, repoRef, desc, tag)
	}
	return errNotImplemented
}

// wrap returns a mock that forwards every call to reg. Tests replace
// individual fields to intercept calls.
func wrap(reg *registrytest.Memory) *mockOCIClient {
	return &mockOCIClient{
		ResolveFunc:       reg.Resolve,
		FetchManifestFunc: reg.FetchManifest,
		FetchBlobFunc:     reg.FetchBlob,
		PushBlobFunc:      reg.PushBlob,
		PushManifestFunc:  reg.PushManifest,
		TagFunc:           reg.Tag,
	}
}
