package registry

import (
	"context"
	"fmt"
)

// Tag creates or updates a tag pointing to an existing mod manifest.
//
// The ref specifies the repository and new tag (e.g., "registry.com/mods/dw8:latest").
// The digest must be the full digest of an existing manifest (e.g., "sha256:abc...").
func (c *Client) Tag(ctx context.Context, ref, digest string) error {
	parsedRef, err := parseClientRef(ref)
	if err != nil {
		return err
	}

	tag := parsedRef.reference
	if tag == "" || isDigest(tag) {
		return fmt.Errorf("%w: reference must include a tag", ErrInvalidReference)
	}
	if _, err := descriptorFromDigest(digest); err != nil {
		return err
	}

	// ORAS needs the manifest media type to tag, so resolve the full descriptor.
	desc, err := c.oci.Resolve(ctx, ref, digest)
	if err != nil {
		return mapOCIError(err)
	}
	if err := c.oci.Tag(ctx, ref, &desc, tag); err != nil {
		return mapOCIError(err)
	}

	c.log().Info("tagged mod", "ref", ref, "digest", digest)
	if c.refCache != nil {
		_ = c.refCache.Delete(ref) //nolint:errcheck // best-effort invalidation
	}
	return nil
}
