// Package registrytest provides an in-memory OCI registry for tests.
//
// It is not intended for production use.
package registrytest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aldnoah/modkit/registry/oras"
)

// Memory is a registry held in memory. Repositories share one content
// store; tags are kept per repository.
type Memory struct {
	mu        sync.Mutex
	blobs     map[digest.Digest][]byte
	manifests map[digest.Digest][]byte
	tags      map[string]digest.Digest // repo@tag -> digest

	resolves    atomic.Int32
	blobFetches atomic.Int32
}

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{
		blobs:     make(map[digest.Digest][]byte),
		manifests: make(map[digest.Digest][]byte),
		tags:      make(map[string]digest.Digest),
	}
}

// Resolves returns how many times Resolve was called.
func (m *Memory) Resolves() int {
	return int(m.resolves.Load())
}

// BlobFetches returns how many times FetchBlob was called.
func (m *Memory) BlobFetches() int {
	return int(m.blobFetches.Load())
}

// SetBlob replaces stored blob content without checking its digest.
func (m *Memory) SetBlob(d digest.Digest, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[d] = data
}

// Blob returns stored blob content.
func (m *Memory) Blob(d digest.Digest) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[d]
	return data, ok
}

// PushBlob stores r after checking it against desc.
func (m *Memory) PushBlob(_ context.Context, _ string, desc *ocispec.Descriptor, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != desc.Size || digest.FromBytes(data) != desc.Digest {
		return fmt.Errorf("pushed blob does not match %s", desc.Digest)
	}
	m.SetBlob(desc.Digest, data)
	return nil
}

// FetchBlob returns stored blob content.
func (m *Memory) FetchBlob(_ context.Context, _ string, desc *ocispec.Descriptor) (io.ReadCloser, error) {
	m.blobFetches.Add(1)
	data, ok := m.Blob(desc.Digest)
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", oras.ErrNotFound, desc.Digest)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// PushManifest stores manifest and tags it.
func (m *Memory) PushManifest(_ context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    digest.FromBytes(raw),
		Size:      int64(len(raw)),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[desc.Digest] = raw
	m.tags[tagKey(repoRef, tag)] = desc.Digest
	return desc, nil
}

// FetchManifest returns a stored manifest and its raw bytes.
func (m *Memory) FetchManifest(_ context.Context, _ string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
	m.mu.Lock()
	raw, ok := m.manifests[expected.Digest]
	m.mu.Unlock()
	if !ok {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: manifest %s", oras.ErrNotFound, expected.Digest)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return ocispec.Manifest{}, nil, err
	}
	return manifest, raw, nil
}

// Resolve resolves a tag or manifest digest.
func (m *Memory) Resolve(_ context.Context, repoRef, ref string) (ocispec.Descriptor, error) {
	m.resolves.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.tags[tagKey(repoRef, ref)]
	if !ok {
		d = digest.Digest(ref)
	}
	raw, ok := m.manifests[d]
	if !ok {
		return ocispec.Descriptor{}, fmt.Errorf("%w: %s", oras.ErrNotFound, ref)
	}
	return ocispec.Descriptor{MediaType: ocispec.MediaTypeImageManifest, Digest: d, Size: int64(len(raw))}, nil
}

// Tag points tag at an existing manifest.
func (m *Memory) Tag(_ context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.manifests[desc.Digest]; !ok {
		return fmt.Errorf("%w: manifest %s", oras.ErrNotFound, desc.Digest)
	}
	m.tags[tagKey(repoRef, tag)] = desc.Digest
	return nil
}

// tagKey scopes a tag to the repository part of a full reference.
func tagKey(repoRef, tag string) string {
	repo, _, _ := strings.Cut(repoRef, "@")
	if i := strings.LastIndexByte(repo, ':'); i > strings.LastIndexByte(repo, '/') {
		repo = repo[:i]
	}
	return repo + "@" + tag
}
