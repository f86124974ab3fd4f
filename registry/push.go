package registry

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aldnoah/modkit/core/modfile"
)

// Push encodes a mod and pushes it to an OCI registry.
//
// The ref must include a tag (e.g., "registry.com/mods/dw8:v1.0.0").
// Push returns the manifest digest.
func (c *Client) Push(ctx context.Context, ref string, mod *modfile.Mod, opts ...PushOption) (string, error) {
	cfg := pushConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	raw, err := modfile.Encode(mod, cfg.encodeOpts...)
	if err != nil {
		return "", fmt.Errorf("encode mod: %w", err)
	}
	return c.PushRaw(ctx, ref, mod, raw, opts...)
}

// PushRaw pushes an already encoded mod file. mod supplies the annotations
// and must describe raw.
func (c *Client) PushRaw(ctx context.Context, ref string, mod *modfile.Mod, raw []byte, opts ...PushOption) (string, error) {
	cfg := pushConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	parsedRef, err := parseClientRef(ref)
	if err != nil {
		return "", err
	}
	tag := parsedRef.reference
	if tag == "" || isDigest(tag) {
		return "", fmt.Errorf("%w: reference must include a tag", ErrInvalidReference)
	}

	c.log().Info("pushing mod", "ref", ref, "name", mod.Name, "entries", len(mod.Entries), "size", len(raw))

	configDesc, err := c.pushEmptyConfig(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("push config: %w", err)
	}

	modDesc := ocispec.Descriptor{
		MediaType: MediaTypeMod,
		Digest:    digest.FromBytes(raw),
		Size:      int64(len(raw)),
	}
	if err := c.oci.PushBlob(ctx, ref, &modDesc, bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("push mod blob: %w", mapOCIError(err))
	}

	manifest := buildManifest(&configDesc, &modDesc, modAnnotations(mod, cfg.annotations))
	manifestDesc, err := c.oci.PushManifest(ctx, ref, tag, &manifest)
	if err != nil {
		return "", fmt.Errorf("push manifest: %w", mapOCIError(err))
	}

	for _, additionalTag := range cfg.tags {
		if err := c.oci.Tag(ctx, ref, &manifestDesc, additionalTag); err != nil {
			return "", fmt.Errorf("tag %q: %w", additionalTag, mapOCIError(err))
		}
	}

	if c.refCache != nil {
		_ = c.refCache.Delete(ref) //nolint:errcheck // best-effort invalidation
	}
	return manifestDesc.Digest.String(), nil
}

// pushEmptyConfig pushes the empty JSON config blob required by OCI manifests.
func (c *Client) pushEmptyConfig(ctx context.Context, ref string) (ocispec.Descriptor, error) {
	config := []byte("{}")
	desc := ocispec.Descriptor{
		MediaType: ocispec.MediaTypeEmptyJSON,
		Digest:    digest.FromBytes(config),
		Size:      int64(len(config)),
	}
	if err := c.oci.PushBlob(ctx, ref, &desc, bytes.NewReader(config)); err != nil {
		return ocispec.Descriptor{}, mapOCIError(err)
	}
	return desc, nil
}

// modAnnotations describes mod in manifest annotations, then applies custom.
func modAnnotations(mod *modfile.Mod, custom map[string]string) map[string]string {
	markers := make([]string, 0, 4)
	for _, m := range mod.Markers() {
		markers = append(markers, strconv.Itoa(int(m)))
	}

	annotations := map[string]string{
		AnnotationKind:    mod.Kind.String(),
		AnnotationEntries: strconv.Itoa(len(mod.Entries)),
		AnnotationMarkers: strings.Join(markers, ","),
	}
	if mod.Name != "" {
		annotations[AnnotationName] = mod.Name
		annotations[ocispec.AnnotationTitle] = mod.Name
	}
	if mod.Author != "" {
		annotations[AnnotationAuthor] = mod.Author
		annotations[ocispec.AnnotationAuthors] = mod.Author
	}
	if mod.Version != "" {
		annotations[AnnotationVersion] = mod.Version
	}
	if mod.Description != "" {
		annotations[ocispec.AnnotationDescription] = mod.Description
	}
	maps.Copy(annotations, custom)
	return annotations
}

// buildManifest creates an OCI manifest for a mod artifact.
func buildManifest(configDesc, modDesc *ocispec.Descriptor, annotations map[string]string) ocispec.Manifest {
	if _, ok := annotations[ocispec.AnnotationCreated]; !ok {
		annotations[ocispec.AnnotationCreated] = time.Now().UTC().Format(time.RFC3339)
	}

	return ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: ArtifactType,
		Config:       *configDesc,
		Layers:       []ocispec.Descriptor{*modDesc},
		Annotations:  annotations,
	}
}
