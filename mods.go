package modkit

import (
	"context"
	"errors"
	"fmt"

	modcore "github.com/aldnoah/modkit/core"
	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/modfile"
)

// ApplyFile reads the mod file at path and applies every entry.
func (c *Client) ApplyFile(ctx context.Context, path string) (*modcore.ApplyReport, error) {
	mod, err := c.ReadMod(path)
	if err != nil {
		return nil, err
	}
	return c.engine.ApplyMod(ctx, mod)
}

// ApplyMod applies every entry of mod. See modcore.Engine.ApplyMod.
func (c *Client) ApplyMod(ctx context.Context, mod *modfile.Mod) (*modcore.ApplyReport, error) {
	return c.engine.ApplyMod(ctx, mod)
}

// Disable reverses one applied entry.
func (c *Client) Disable(ctx context.Context, key ledger.Key) error {
	return c.engine.Disable(ctx, key)
}

// DisableMod reverses every entry of the named mod and returns the number
// of entries disabled.
func (c *Client) DisableMod(ctx context.Context, name string) (int, error) {
	return c.engine.DisableMod(ctx, name)
}

// DisableAll reverses every entry of one archive and truncates its blobs.
func (c *Client) DisableAll(ctx context.Context, archive string) error {
	return c.engine.DisableAll(ctx, archive)
}

// DisableEverything runs DisableAll on every archive with live entries.
// Archives are processed independently; the errors are joined.
func (c *Client) DisableEverything(ctx context.Context) error {
	archives, err := c.engine.Archives()
	if err != nil {
		return err
	}
	var errs []error
	for _, a := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.engine.DisableAll(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a, err))
		}
	}
	return errors.Join(errs...)
}

// Mods lists enabled mods.
func (c *Client) Mods() ([]modcore.ModInfo, error) {
	return c.engine.Mods()
}

// Entries lists live ledger entries for archive.
func (c *Client) Entries(archive string) ([]ledger.Entry, error) {
	return c.engine.Entries(archive)
}

// Archives lists archives with ledger state.
func (c *Client) Archives() ([]string, error) {
	return c.engine.Archives()
}

// Verify cross-checks the ledger against the archive files.
func (c *Client) Verify(ctx context.Context) (*modcore.VerifyReport, error) {
	return c.engine.Verify(ctx)
}

// ClearInconsistent lifts the inconsistency flag on archive after manual
// reconciliation.
func (c *Client) ClearInconsistent(ctx context.Context, archive string) error {
	return c.engine.ClearInconsistent(ctx, archive)
}
