package registry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ModManifest wraps an OCI manifest for a mod artifact.
type ModManifest struct {
	raw     ocispec.Manifest
	digest  string
	modDesc ocispec.Descriptor
	created time.Time
}

// ModDescriptor returns the descriptor for the mod layer.
func (m *ModManifest) ModDescriptor() ocispec.Descriptor {
	return m.modDesc
}

// Digest returns the manifest digest.
func (m *ModManifest) Digest() string {
	return m.digest
}

// Name returns the mod name annotation.
func (m *ModManifest) Name() string {
	return m.raw.Annotations[AnnotationName]
}

// Author returns the mod author annotation.
func (m *ModManifest) Author() string {
	return m.raw.Annotations[AnnotationAuthor]
}

// Version returns the mod version annotation.
func (m *ModManifest) Version() string {
	return m.raw.Annotations[AnnotationVersion]
}

// Kind returns the mod kind annotation ("single" or "package").
func (m *ModManifest) Kind() string {
	return m.raw.Annotations[AnnotationKind]
}

// Entries returns the entry count annotation, or -1 if absent.
func (m *ModManifest) Entries() int {
	n, err := strconv.Atoi(m.raw.Annotations[AnnotationEntries])
	if err != nil {
		return -1
	}
	return n
}

// Markers returns the idx markers the mod touches.
func (m *ModManifest) Markers() []uint8 {
	s := m.raw.Annotations[AnnotationMarkers]
	if s == "" {
		return nil
	}
	var out []uint8
	for part := range strings.SplitSeq(s, ",") {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil
		}
		out = append(out, uint8(v))
	}
	return out
}

// Annotations returns the manifest annotations.
func (m *ModManifest) Annotations() map[string]string {
	return m.raw.Annotations
}

// Created returns the creation timestamp from annotations.
//
// Returns zero time if the annotation is not present or cannot be parsed.
func (m *ModManifest) Created() time.Time {
	return m.created
}

// Raw returns the underlying OCI manifest.
func (m *ModManifest) Raw() ocispec.Manifest {
	return m.raw
}

// parseModManifest checks that manifest describes a mod artifact.
func parseModManifest(manifest *ocispec.Manifest, digest string) (*ModManifest, error) {
	if manifest.MediaType != ocispec.MediaTypeImageManifest {
		return nil, fmt.Errorf("%w: unexpected manifest media type %q", ErrInvalidManifest, manifest.MediaType)
	}
	if manifest.ArtifactType != ArtifactType {
		return nil, fmt.Errorf("%w: unexpected artifact type %q", ErrInvalidManifest, manifest.ArtifactType)
	}

	var modDesc ocispec.Descriptor
	var found bool
	for _, layer := range manifest.Layers {
		if layer.MediaType != MediaTypeMod {
			continue
		}
		if found {
			return nil, fmt.Errorf("%w: multiple mod layers", ErrInvalidManifest)
		}
		modDesc = layer
		found = true
	}
	if !found {
		return nil, ErrMissingMod
	}
	if len(manifest.Layers) != 1 {
		return nil, fmt.Errorf("%w: expected 1 layer, got %d", ErrInvalidManifest, len(manifest.Layers))
	}

	var created time.Time
	if ts, ok := manifest.Annotations[ocispec.AnnotationCreated]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			created = t
		}
	}

	return &ModManifest{
		raw:     *manifest,
		digest:  digest,
		modDesc: modDesc,
		created: created,
	}, nil
}
