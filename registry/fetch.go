package registry

import (
	"context"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Fetch retrieves the manifest for a mod artifact without downloading the mod.
//
// The manifest annotations describe the mod's name, author, version and
// entry count.
func (c *Client) Fetch(ctx context.Context, ref string, opts ...FetchOption) (*ModManifest, error) {
	cfg := fetchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	parsedRef, err := parseClientRef(ref)
	if err != nil {
		return nil, err
	}
	if parsedRef.reference == "" {
		return nil, fmt.Errorf("%w: reference must include a tag or digest", ErrInvalidReference)
	}

	digestStr, err := c.resolveDigest(ctx, ref, parsedRef.reference, cfg.skipCache)
	if err != nil {
		return nil, err
	}

	manifest, err := c.fetchManifestByDigest(ctx, ref, digestStr)
	if err != nil {
		// A stale tag mapping points at a manifest that is gone.
		if c.refCache != nil && !isDigest(parsedRef.reference) {
			_ = c.refCache.Delete(ref) //nolint:errcheck // best-effort cleanup
		}
		return nil, err
	}
	return manifest, nil
}

// resolveDigest resolves a reference to a digest string.
// Uses ref cache for tags if available, otherwise calls Resolve().
func (c *Client) resolveDigest(ctx context.Context, ref, reference string, skipCache bool) (string, error) {
	if isDigest(reference) {
		c.log().Debug("resolving reference", "ref", ref, "type", "digest")
		return reference, nil
	}

	c.log().Debug("resolving reference", "ref", ref, "type", "tag")

	if !skipCache && c.refCache != nil {
		if digest, ok := c.refCache.GetDigest(ref); ok {
			c.log().Debug("ref cache hit", "ref", ref, "digest", digest[:min(16, len(digest))])
			return digest, nil
		}
		c.log().Debug("ref cache miss", "ref", ref)
	}

	desc, err := c.oci.Resolve(ctx, ref, reference)
	if err != nil {
		return "", mapOCIError(err)
	}

	digest := desc.Digest.String()
	if c.refCache != nil {
		if err := c.refCache.PutDigest(ref, digest); err != nil {
			return "", fmt.Errorf("cache ref digest: %w", err)
		}
	}
	return digest, nil
}

// fetchManifestByDigest fetches a manifest and checks the raw bytes hash to
// dgst.
func (c *Client) fetchManifestByDigest(ctx context.Context, ref, dgst string) (*ModManifest, error) {
	desc, err := descriptorFromDigest(dgst)
	if err != nil {
		return nil, err
	}

	var rawManifest ocispec.Manifest
	rawManifest, raw, err := c.oci.FetchManifest(ctx, ref, &desc)
	if err != nil {
		return nil, mapOCIError(err)
	}
	if computed := desc.Digest.Algorithm().FromBytes(raw); computed != desc.Digest {
		return nil, fmt.Errorf("manifest: %w: expected %s, got %s", ErrDigestMismatch, desc.Digest, computed)
	}
	return parseModManifest(&rawManifest, dgst)
}
