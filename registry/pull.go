package registry

import (
	"context"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/aldnoah/modkit/core/modfile"
)

// Pull retrieves and parses a mod file from an OCI registry.
//
// The mod layer digest is verified before parsing. Concurrent pulls of the
// same layer share one download.
func (c *Client) Pull(ctx context.Context, ref string, opts ...PullOption) (*modfile.Mod, *ModManifest, error) {
	cfg := pullConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	manifest, raw, err := c.PullRaw(ctx, ref, opts...)
	if err != nil {
		return nil, nil, err
	}
	mod, err := modfile.Parse(raw, cfg.parseOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("parse mod: %w", err)
	}
	return mod, manifest, nil
}

// PullFile pulls the encoded mod file and writes it to path unchanged. An
// existing file is replaced only once the whole layer has been verified.
func (c *Client) PullFile(ctx context.Context, ref, path string, opts ...PullOption) (*ModManifest, error) {
	manifest, raw, err := c.PullRaw(ctx, ref, opts...)
	if err != nil {
		return nil, err
	}
	if err := modfile.WriteRaw(path, raw); err != nil {
		return nil, fmt.Errorf("write mod file: %w", err)
	}
	return manifest, nil
}

// PullRaw retrieves the verified, encoded mod layer.
func (c *Client) PullRaw(ctx context.Context, ref string, opts ...PullOption) (*ModManifest, []byte, error) {
	cfg := pullConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.log().Info("pulling mod", "ref", ref)

	var fetchOpts []FetchOption
	if cfg.skipCache {
		fetchOpts = append(fetchOpts, WithSkipCache())
	}
	manifest, err := c.Fetch(ctx, ref, fetchOpts...)
	if err != nil {
		return nil, nil, err
	}

	modDesc := manifest.ModDescriptor()
	if c.maxModSize > 0 && modDesc.Size > c.maxModSize {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, modDesc.Size, c.maxModSize)
	}

	if raw, ok := c.tryModCache(&modDesc, cfg.skipCache); ok {
		return manifest, raw, nil
	}

	key := modDesc.Digest.String()
	v, err, shared := c.layers.Do(key, func() (any, error) {
		return c.fetchModLayer(ctx, ref, &modDesc)
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		c.log().Debug("shared mod download", "digest", key[:min(16, len(key))])
	}
	raw, _ := v.([]byte)
	return manifest, raw, nil
}

// tryModCache returns the cached layer on a hit.
func (c *Client) tryModCache(desc *ocispec.Descriptor, skip bool) ([]byte, bool) {
	if skip || c.modCache == nil {
		return nil, false
	}
	dgst := desc.Digest.String()
	raw, ok := c.modCache.GetMod(dgst)
	if !ok {
		c.log().Debug("mod cache miss", "digest", dgst[:min(16, len(dgst))])
		return nil, false
	}
	if int64(len(raw)) != desc.Size {
		_ = c.modCache.Delete(dgst) //nolint:errcheck // best-effort cleanup
		return nil, false
	}
	c.log().Debug("mod cache hit", "digest", dgst[:min(16, len(dgst))], "size", len(raw))
	return raw, true
}

// fetchModLayer downloads, verifies and caches a mod layer.
func (c *Client) fetchModLayer(ctx context.Context, ref string, desc *ocispec.Descriptor) ([]byte, error) {
	rc, err := c.oci.FetchBlob(ctx, ref, desc)
	if err != nil {
		return nil, fmt.Errorf("fetch mod blob: %w", mapOCIError(err))
	}
	defer rc.Close()

	raw, err := readLimited(rc, desc.Size, c.maxModSize)
	if err != nil {
		return nil, fmt.Errorf("read mod blob: %w", err)
	}

	if err := desc.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("read mod blob: %w: invalid digest %q: %v", ErrInvalidManifest, desc.Digest, err)
	}
	if computed := desc.Digest.Algorithm().FromBytes(raw); computed != desc.Digest {
		c.log().Warn("mod digest verification failed",
			"expected", desc.Digest.String(),
			"computed", computed.String(),
		)
		return nil, fmt.Errorf("read mod blob: %w: expected %s, got %s", ErrDigestMismatch, desc.Digest, computed)
	}

	if c.modCache != nil {
		if err := c.modCache.PutMod(desc.Digest.String(), raw); err != nil {
			c.log().Warn("cache mod failed", "digest", desc.Digest.String(), "error", err)
		}
	}
	return raw, nil
}

// readLimited reads r with optional size limits.
// If maxSize is positive, reading stops if the limit is exceeded.
func readLimited(r io.Reader, expectedSize, maxSize int64) ([]byte, error) {
	if maxSize > 0 && expectedSize > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, expectedSize, maxSize)
	}

	reader := r
	if maxSize > 0 {
		reader = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(data), maxSize)
	}
	return data, nil
}
