// Package modkit installs and removes mods in game archive pairs.
//
// A [Client] binds one game profile to its install folder, a durable
// ledger and an optional mod registry. Applying a mod appends each entry's
// data to the archive blob its taildata points at and rewrites the matching
// index record; disabling restores the record from the ledger.
//
// # Quick Start
//
// Apply a mod file to a local install:
//
//	profile, err := config.Lookup("DW8XL", nil)
//	if err != nil {
//	    return err
//	}
//	c, err := modkit.NewClient(profile, `C:\Games\DW8XL`,
//	    modkit.WithLedgerDir(ledgerDir),
//	)
//	if err != nil {
//	    return err
//	}
//	report, err := c.ApplyFile(ctx, "red-lubu.DW8XLM")
//
// Disable it again, or roll back everything:
//
//	_, err = c.DisableMod(ctx, "Red Lu Bu")
//	err = c.DisableEverything(ctx)
//
// # Distribution
//
// Mods can be shared through any OCI registry:
//
//	dgst, err := c.Publish(ctx, "ghcr.io/me/dw8-mods:red-lubu", "red-lubu.DW8XLM")
//	report, err := c.Install(ctx, "ghcr.io/me/dw8-mods:red-lubu")
//
// For engine-level control over resolvers and ledgers, use the [core]
// subpackage directly.
//
// [core]: https://pkg.go.dev/github.com/aldnoah/modkit/core
package modkit
