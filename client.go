package modkit

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aldnoah/modkit/config"
	modcore "github.com/aldnoah/modkit/core"
	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/ledger/disk"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/registry"
	"github.com/aldnoah/modkit/registry/cache"
)

// Client manages the mods of one game install.
type Client struct {
	profile  config.Profile
	resolver *config.Resolver
	engine   *modcore.Engine
	ledger   ledger.Ledger

	logger            *slog.Logger
	anomalyLogger     *slog.Logger
	forceUncompressed bool
	ledgerDir         string

	registry     *registry.Client
	registryOpts []registry.Option
	refCache     cache.RefCache
	modCache     cache.ModCache
}

// NewClient creates a client for profile with archives under installDir.
//
// Without WithLedger or WithLedgerDir the ledger lives in the default
// ledger directory. Each game gets its own subdirectory named by the
// profile's ledger name.
func NewClient(profile config.Profile, installDir string, opts ...Option) (*Client, error) {
	resolver, err := config.NewResolver(profile, installDir)
	if err != nil {
		return nil, err
	}

	c := &Client{profile: profile, resolver: resolver}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.ledger == nil {
		dir := c.ledgerDir
		if dir == "" {
			if dir, err = config.DefaultLedgerDir(); err != nil {
				return nil, err
			}
		}
		l, err := disk.Open(filepath.Join(dir, ledgerName(profile)))
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		c.ledger = l
	}

	engineOpts := []modcore.EngineOption{modcore.WithForceUncompressed(c.forceUncompressed)}
	if c.logger != nil {
		engineOpts = append(engineOpts, modcore.WithLogger(c.logger))
	}
	if c.anomalyLogger != nil {
		engineOpts = append(engineOpts, modcore.WithAnomalyLogger(c.anomalyLogger))
	}
	c.engine, err = modcore.NewEngine(resolver, c.ledger, engineOpts...)
	if err != nil {
		return nil, err
	}
	c.registry = c.newRegistry()
	return c, nil
}

// ledgerName returns the ledger subdirectory for p.
func ledgerName(p config.Profile) string {
	if p.LedgerName != "" {
		return p.LedgerName
	}
	return p.ID + ".MODS"
}

// Profile returns the game profile.
func (c *Client) Profile() config.Profile {
	return c.profile
}

// Engine returns the underlying engine.
func (c *Client) Engine() *modcore.Engine {
	return c.engine
}

// ReadMod reads a mod file, taking the legacy kind and taildata byte order
// from the profile.
func (c *Client) ReadMod(path string) (*modfile.Mod, error) {
	opts, err := c.profile.ParseOptions(path)
	if err != nil {
		return nil, err
	}
	mod, err := modfile.ReadFile(path, opts...)
	if err != nil {
		if errors.Is(err, modfile.ErrMalformed) || errors.Is(err, modfile.ErrUnsupportedVersion) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		return nil, err
	}
	return mod, nil
}

// Pack builds a mod file at out from unpacked files carrying taildata.
// The output extension should be the profile's single or package extension
// so the kind can be recovered by legacy readers.
func (c *Client) Pack(meta modfile.Meta, files []string, out string, opts ...modfile.EncodeOption) (*modfile.Mod, error) {
	codec, err := c.profile.TaildataCodec()
	if err != nil {
		return nil, err
	}
	mod, err := modfile.Pack(meta, files, codec)
	if err != nil {
		return nil, err
	}
	if kind, ok := c.profile.KindForPath(out); ok && kind == modfile.KindSingle && len(files) != 1 {
		return nil, fmt.Errorf("%w: %s holds one file, got %d", ErrMalformedPayload, c.profile.SingleExt, len(files))
	}
	opts = append([]modfile.EncodeOption{modfile.WithEncodeTaildataCodec(codec)}, opts...)
	if err := modfile.WriteFile(out, mod, opts...); err != nil {
		return nil, err
	}
	return mod, nil
}

func (c *Client) newRegistry() *registry.Client {
	opts := append([]registry.Option{}, c.registryOpts...)
	if c.logger != nil {
		opts = append(opts, registry.WithLogger(c.logger))
	}
	if c.refCache != nil {
		opts = append(opts, registry.WithRefCache(c.refCache))
	}
	if c.modCache != nil {
		opts = append(opts, registry.WithModCache(c.modCache))
	}
	return registry.New(opts...)
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
