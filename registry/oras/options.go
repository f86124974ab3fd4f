package oras

import (
	"log/slog"

	"oras.land/oras-go/v2/registry/remote/credentials"
)

// Option configures a Client.
type Option func(*Client)

// WithCredentialStore sets the credential store for authentication.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.credStore = store
	}
}

// WithStaticCredentials sets username/password credentials for one registry.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.credStore = StaticCredentials(registry, username, password)
	}
}

// WithStaticToken sets a bearer token for one registry.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) {
		c.credStore = StaticToken(registry, token)
	}
}

// WithDockerConfig reads credentials from a Docker config file. An empty
// path uses ~/.docker/config.json. If the file cannot be loaded the client
// falls back to no credentials.
func WithDockerConfig(path string) Option {
	return func(c *Client) {
		store, err := DockerCredentialStore(path)
		if err != nil {
			c.log().Debug("docker config unavailable", "path", path, "error", err)
			return
		}
		c.credStore = store
	}
}

// WithPlainHTTP enables plain HTTP (no TLS), for local registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.plainHTTP = enabled
	}
}

// WithAnonymous disables all authentication.
func WithAnonymous() Option {
	return func(c *Client) {
		c.anonymous = true
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
