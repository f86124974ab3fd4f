package registry

import "github.com/aldnoah/modkit/core/modfile"

// PullOption configures a Pull operation.
type PullOption func(*pullConfig)

type pullConfig struct {
	skipCache bool
	parseOpts []modfile.ParseOption
}

// WithPullSkipCache bypasses the ref and mod caches for this pull.
// Fetched content is still added to the caches.
func WithPullSkipCache() PullOption {
	return func(cfg *pullConfig) {
		cfg.skipCache = true
	}
}

// WithParseOptions passes options to modfile.Parse.
func WithParseOptions(opts ...modfile.ParseOption) PullOption {
	return func(cfg *pullConfig) {
		cfg.parseOpts = append(cfg.parseOpts, opts...)
	}
}
