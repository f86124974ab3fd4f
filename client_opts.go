package modkit

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/registry"
	registrydisk "github.com/aldnoah/modkit/registry/cache/disk"
)

// Option configures a Client.
type Option func(*Client) error

// Default cache limits for WithCacheDir.
const (
	DefaultModCacheSize int64 = 512 << 20 // 512 MB
	DefaultRefCacheSize int64 = 5 << 20   // 5 MB
	DefaultRefCacheTTL        = 5 * time.Minute
)

// --- Engine Options ---

// WithLedger uses l instead of a disk ledger.
func WithLedger(l ledger.Ledger) Option {
	return func(c *Client) error {
		if l == nil {
			return errors.New("ledger is nil")
		}
		c.ledger = l
		return nil
	}
}

// WithLedgerDir sets the directory holding per-game ledgers.
func WithLedgerDir(dir string) Option {
	return func(c *Client) error {
		c.ledgerDir = dir
		return nil
	}
}

// WithLogger sets the logger for engine and registry operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithAnomalyLogger sets the logger receiving non-fatal anomalies.
func WithAnomalyLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.anomalyLogger = logger
		return nil
	}
}

// WithForceUncompressed writes an uncompressed flag for every applied
// entry. Mod data must already be decompressed.
func WithForceUncompressed(enabled bool) Option {
	return func(c *Client) error {
		c.forceUncompressed = enabled
		return nil
	}
}

// --- Registry Options ---

// WithDockerConfig reads registry credentials from a Docker config file.
// An empty path uses ~/.docker/config.json.
func WithDockerConfig(path string) Option {
	return func(c *Client) error {
		c.registryOpts = append(c.registryOpts, registry.WithDockerConfig(path))
		return nil
	}
}

// WithStaticCredentials sets username/password credentials for a registry host.
func WithStaticCredentials(host, username, password string) Option {
	return func(c *Client) error {
		c.registryOpts = append(c.registryOpts, registry.WithStaticCredentials(host, username, password))
		return nil
	}
}

// WithAnonymous forces anonymous registry access.
func WithAnonymous() Option {
	return func(c *Client) error {
		c.registryOpts = append(c.registryOpts, registry.WithAnonymous())
		return nil
	}
}

// WithPlainHTTP enables plain HTTP (no TLS) for registries.
// This is useful for local development registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) error {
		c.registryOpts = append(c.registryOpts, registry.WithPlainHTTP(enabled))
		return nil
	}
}

// WithOCIClient sets a custom low-level OCI client for registry operations.
func WithOCIClient(oci registry.OCIClient) Option {
	return func(c *Client) error {
		c.registryOpts = append(c.registryOpts, registry.WithOCIClient(oci))
		return nil
	}
}

// WithMaxModSize limits the size of pulled mods.
func WithMaxModSize(n int64) Option {
	return func(c *Client) error {
		c.registryOpts = append(c.registryOpts, registry.WithMaxModSize(n))
		return nil
	}
}

// --- Cache Options ---

// WithCacheDir caches tag resolutions and pulled mods under dir.
func WithCacheDir(dir string) Option {
	return func(c *Client) error {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}

		refCache, err := registrydisk.NewRefCache(
			filepath.Join(dir, "refs"),
			registrydisk.WithMaxBytes(DefaultRefCacheSize),
			registrydisk.WithRefCacheTTL(DefaultRefCacheTTL),
		)
		if err != nil {
			return err
		}
		c.refCache = refCache

		modCache, err := registrydisk.NewModCache(
			filepath.Join(dir, "mods"),
			registrydisk.WithMaxBytes(DefaultModCacheSize),
		)
		if err != nil {
			return err
		}
		c.modCache = modCache
		return nil
	}
}
