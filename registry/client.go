package registry

import (
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/aldnoah/modkit/registry/cache"
	"github.com/aldnoah/modkit/registry/oras"
)

// defaultMaxModSize bounds the mod layer read by Pull.
const defaultMaxModSize = 1 << 30 // 1 GiB

// Client pushes and pulls mod files as OCI artifacts.
type Client struct {
	oci        OCIClient
	refCache   cache.RefCache
	modCache   cache.ModCache
	logger     *slog.Logger
	maxModSize int64

	// layers dedupes concurrent downloads of the same mod layer.
	layers singleflight.Group

	// orasOpts are options passed through to the ORAS client when
	// no custom OCIClient is provided.
	orasOpts []oras.Option
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// New creates a new mod registry client with the given options.
//
// If no OCIClient is provided via WithOCIClient, a default ORAS-based
// client is created using any pass-through options (WithPlainHTTP, etc.).
func New(opts ...Option) *Client {
	c := &Client{maxModSize: defaultMaxModSize}
	for _, opt := range opts {
		opt(c)
	}

	if c.oci == nil {
		orasOpts := c.orasOpts
		if c.logger != nil {
			orasOpts = append(orasOpts, oras.WithLogger(c.logger))
		}
		c.oci = oras.New(orasOpts...)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithOCIClient sets the low-level OCI client. Pass-through ORAS options
// are ignored when this is set.
func WithOCIClient(oci OCIClient) Option {
	return func(c *Client) {
		c.oci = oci
	}
}

// WithRefCache enables caching of tag to digest resolutions.
func WithRefCache(rc cache.RefCache) Option {
	return func(c *Client) {
		c.refCache = rc
	}
}

// WithModCache enables caching of pulled mod layers.
func WithModCache(mc cache.ModCache) Option {
	return func(c *Client) {
		c.modCache = mc
	}
}

// WithLogger sets the logger. It is also handed to the default ORAS client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMaxModSize limits the size of a pulled mod layer.
// A value <= 0 disables the limit.
func WithMaxModSize(n int64) Option {
	return func(c *Client) {
		c.maxModSize = n
	}
}

// WithPlainHTTP uses HTTP instead of HTTPS for the default ORAS client.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithPlainHTTP(enabled))
	}
}

// WithDockerConfig reads credentials from a Docker config file.
// An empty path uses the default location.
func WithDockerConfig(path string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithDockerConfig(path))
	}
}

// WithStaticCredentials uses fixed credentials for one registry host.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithStaticCredentials(registry, username, password))
	}
}

// WithAnonymous disables credential lookup.
func WithAnonymous() Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithAnonymous())
	}
}
