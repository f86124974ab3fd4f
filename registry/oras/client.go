package oras

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// maxManifestSize bounds manifests fetched without a known size.
const maxManifestSize = 4 << 20

// Client performs OCI registry operations for mod artifacts.
type Client struct {
	plainHTTP  bool
	userAgent  string
	anonymous  bool
	credStore  credentials.Store
	authClient *auth.Client
	logger     *slog.Logger
}

// New creates a client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		userAgent: "modkit/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.authClient = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if c.anonymous || c.credStore == nil {
				return auth.EmptyCredential, nil
			}
			return c.credStore.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{c.userAgent},
		},
	}
	return c
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// repository returns a Repository sharing the client's auth client.
func (c *Client) repository(ref string) (*remote.Repository, error) {
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidReference, ref, err)
	}
	repo.PlainHTTP = c.plainHTTP
	repo.Client = c.authClient
	return repo, nil
}

// parseRef parses a full reference into registry, repository and tag or digest.
func parseRef(ref string) (registry.Reference, error) {
	r, err := registry.ParseReference(ref)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return r, nil
}

// PushBlob uploads r, which must provide exactly desc.Size bytes.
func (c *Client) PushBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error {
	if err := validateDescriptor(desc); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: content reader is nil", ErrInvalidDescriptor)
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return err
	}

	c.log().Debug("pushing blob", "ref", repoRef, "digest", desc.Digest.String(), "size", desc.Size)
	if err := repo.Push(ctx, *desc, r); err != nil {
		if errors.Is(err, errdef.ErrAlreadyExists) {
			return nil
		}
		return mapError(err)
	}
	return nil
}

// FetchBlob opens a blob. The caller closes the reader.
func (c *Client) FetchBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return nil, err
	}
	rc, err := repo.Fetch(ctx, *desc)
	if err != nil {
		return nil, mapError(err)
	}
	return rc, nil
}

// PushManifest uploads an image manifest and tags it.
func (c *Client) PushManifest(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	if manifest == nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: manifest is nil", ErrManifestInvalid)
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("marshal manifest: %w", err)
	}
	desc := ocispec.Descriptor{
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: manifest.ArtifactType,
		Digest:       digest.FromBytes(manifestJSON),
		Size:         int64(len(manifestJSON)),
	}
	if err := repo.PushReference(ctx, desc, bytes.NewReader(manifestJSON), tag); err != nil {
		return ocispec.Descriptor{}, mapError(err)
	}
	c.log().Debug("pushed manifest", "ref", repoRef, "tag", tag, "digest", desc.Digest.String())
	return desc, nil
}

// FetchManifest fetches and decodes an image manifest. It returns the raw
// bytes as well so callers can verify the digest.
func (c *Client) FetchManifest(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
	if err := validateDescriptor(expected); err != nil {
		return ocispec.Manifest{}, nil, err
	}
	if expected.MediaType != "" && expected.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: unsupported media type %s", ErrManifestInvalid, expected.MediaType)
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return ocispec.Manifest{}, nil, err
	}

	desc, rc, err := repo.FetchReference(ctx, expected.Digest.String())
	if err != nil {
		return ocispec.Manifest{}, nil, mapError(err)
	}
	defer rc.Close()

	if desc.MediaType != "" && desc.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: unsupported media type %s", ErrManifestInvalid, desc.MediaType)
	}

	limit := expected.Size
	if limit <= 0 {
		limit = maxManifestSize
	}
	raw, err := io.ReadAll(io.LimitReader(rc, limit))
	if err != nil {
		return ocispec.Manifest{}, nil, mapError(err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	return manifest, raw, nil
}

// Resolve resolves a tag or digest to a descriptor.
func (c *Client) Resolve(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error) {
	repo, err := c.repository(repoRef)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc, err := repo.Resolve(ctx, ref)
	if err != nil {
		return ocispec.Descriptor{}, mapError(err)
	}
	return desc, nil
}

// Tag points tag at desc.
func (c *Client) Tag(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error {
	if err := validateDescriptor(desc); err != nil {
		return err
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return err
	}
	if err := repo.Tag(ctx, *desc, tag); err != nil {
		return mapError(err)
	}
	return nil
}

// validateDescriptor checks that a descriptor is usable.
func validateDescriptor(desc *ocispec.Descriptor) error {
	if desc == nil {
		return fmt.Errorf("%w: descriptor is nil", ErrInvalidDescriptor)
	}
	if desc.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidDescriptor, desc.Size)
	}
	if desc.Digest == "" {
		return fmt.Errorf("%w: empty digest", ErrInvalidDescriptor)
	}
	if err := desc.Digest.Validate(); err != nil {
		return fmt.Errorf("%w: invalid digest %q: %v", ErrInvalidDescriptor, desc.Digest, err)
	}
	return nil
}

// mapError maps ORAS errors to the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		}
	}
	return err
}
