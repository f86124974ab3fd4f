package modkit

import (
	"context"
	"fmt"
	"os"

	modcore "github.com/aldnoah/modkit/core"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/registry"
)

// Publish pushes the mod file at path to ref unchanged and returns the
// manifest digest. The file is parsed first so malformed mods are never
// published.
func (c *Client) Publish(ctx context.Context, ref, path string, opts ...registry.PushOption) (string, error) {
	mod, err := c.ReadMod(path)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path) //nolint:gosec // caller-selected mod file
	if err != nil {
		return "", fmt.Errorf("read mod: %w", err)
	}
	return c.registry.PushRaw(ctx, ref, mod, raw, opts...)
}

// Fetch returns the mod manifest at ref without downloading the mod.
func (c *Client) Fetch(ctx context.Context, ref string) (*registry.ModManifest, error) {
	return c.registry.Fetch(ctx, ref)
}

// Pull downloads and parses the mod at ref.
func (c *Client) Pull(ctx context.Context, ref string) (*modfile.Mod, *registry.ModManifest, error) {
	opts, err := c.pullOptions()
	if err != nil {
		return nil, nil, err
	}
	return c.registry.Pull(ctx, ref, opts...)
}

// PullFile downloads the mod at ref into path.
func (c *Client) PullFile(ctx context.Context, ref, path string) (*registry.ModManifest, error) {
	return c.registry.PullFile(ctx, ref, path)
}

// Install pulls the mod at ref and applies it.
func (c *Client) Install(ctx context.Context, ref string) (*modcore.ApplyReport, error) {
	mod, manifest, err := c.Pull(ctx, ref)
	if err != nil {
		return nil, err
	}
	c.log().Info("installing mod", "ref", ref, "name", mod.Name, "digest", manifest.Digest())
	return c.engine.ApplyMod(ctx, mod)
}

// Tag points ref's tag at an existing manifest digest.
func (c *Client) Tag(ctx context.Context, ref, digest string) error {
	return c.registry.Tag(ctx, ref, digest)
}

func (c *Client) pullOptions() ([]registry.PullOption, error) {
	codec, err := c.profile.TaildataCodec()
	if err != nil {
		return nil, err
	}
	return []registry.PullOption{
		registry.WithParseOptions(modfile.WithTaildataCodec(codec)),
	}, nil
}
