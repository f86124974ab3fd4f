// Package disk provides disk-backed implementations of the registry caches.
package disk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
)

// config holds shared configuration for disk caches.
type config struct {
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64
	refTTL         time.Duration
}

// Option configures a disk cache.
type Option func(*config)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *config) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *config) {
		c.dirPerm = mode
	}
}

// WithMaxBytes sets the maximum cache size in bytes.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *config) {
		c.maxBytes = n
	}
}

// WithRefCacheTTL expires ref cache entries older than ttl. Zero disables
// expiry. Other caches ignore it.
func WithRefCacheTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.refTTL = ttl
	}
}

func defaultConfig() config {
	return config{
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
}

// RefCache stores ref->digest mappings on disk.
//
// References are hashed with SHA256 to create safe filenames, since refs
// contain special characters like ':', '/', and '@'.
type RefCache struct {
	s   *store
	ttl time.Duration
	now func() time.Time
}

// NewRefCache creates a disk-backed ref cache rooted at dir.
func NewRefCache(dir string, opts ...Option) (*RefCache, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.refTTL < 0 {
		return nil, errors.New("ref cache TTL must be non-negative")
	}
	s, err := newStore(dir, opts)
	if err != nil {
		return nil, err
	}
	return &RefCache{s: s, ttl: cfg.refTTL, now: time.Now}, nil
}

// GetDigest returns the digest for a reference if cached.
//
// Entries that do not parse as a digest, or that outlived the TTL, are
// deleted.
func (c *RefCache) GetDigest(ref string) (string, bool) {
	path := c.path(ref)
	if c.ttl > 0 {
		modTime, ok := c.s.modTime(path)
		if !ok {
			return "", false
		}
		if c.now().Sub(modTime) > c.ttl {
			_ = c.s.remove(path)
			return "", false
		}
	}
	data, ok := c.s.read(path)
	if !ok {
		return "", false
	}
	d, err := digest.Parse(string(data))
	if err != nil {
		_ = c.s.remove(path)
		return "", false
	}
	return d.String(), true
}

// PutDigest caches a reference to digest mapping.
func (c *RefCache) PutDigest(ref, dgst string) error {
	if _, err := digest.Parse(dgst); err != nil {
		return fmt.Errorf("invalid digest %q: %w", dgst, err)
	}
	return c.s.write(c.path(ref), "ref-*", []byte(dgst))
}

// Delete removes a cached reference.
func (c *RefCache) Delete(ref string) error {
	return c.s.remove(c.path(ref))
}

// SizeBytes returns the current cache size in bytes.
func (c *RefCache) SizeBytes() int64 {
	return c.s.bytes.Load()
}

func (c *RefCache) path(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return c.s.shard(hex.EncodeToString(sum[:]))
}

// ModCache stores encoded mod layers on disk, named by digest.
type ModCache struct {
	s *store
}

// NewModCache creates a disk-backed mod cache rooted at dir.
func NewModCache(dir string, opts ...Option) (*ModCache, error) {
	s, err := newStore(dir, opts)
	if err != nil {
		return nil, err
	}
	return &ModCache{s: s}, nil
}

// GetMod returns the cached layer bytes for a digest.
//
// Content is rehashed on every read; entries that no longer match their
// digest are deleted.
func (c *ModCache) GetMod(dgst string) ([]byte, bool) {
	path, err := c.path(dgst)
	if err != nil {
		return nil, false
	}
	data, ok := c.s.read(path)
	if !ok {
		return nil, false
	}
	if match, err := digestMatches(dgst, data); err != nil || !match {
		_ = c.s.remove(path)
		return nil, false
	}
	return data, true
}

// PutMod caches raw layer bytes by digest. The content must match.
func (c *ModCache) PutMod(dgst string, raw []byte) error {
	path, err := c.path(dgst)
	if err != nil {
		return err
	}
	match, err := digestMatches(dgst, raw)
	if err != nil {
		return err
	}
	if !match {
		return fmt.Errorf("content does not match digest %s", dgst)
	}
	return c.s.write(path, "mod-*", raw)
}

// Delete removes a cached layer.
func (c *ModCache) Delete(dgst string) error {
	path, err := c.path(dgst)
	if err != nil {
		return err
	}
	return c.s.remove(path)
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *ModCache) MaxBytes() int64 {
	return c.s.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *ModCache) SizeBytes() int64 {
	return c.s.bytes.Load()
}

// Prune removes the oldest entries until the cache is at or below targetBytes.
func (c *ModCache) Prune(targetBytes int64) (int64, error) {
	return c.s.prune(targetBytes)
}

func (c *ModCache) path(dgst string) (string, error) {
	hexHash, err := sanitizeHexDigest(dgst)
	if err != nil {
		return "", err
	}
	return c.s.shard(hexHash), nil
}

func digestMatches(dgst string, data []byte) (bool, error) {
	parsed, err := digest.Parse(dgst)
	if err != nil {
		return false, fmt.Errorf("parse digest %q: %w", dgst, err)
	}
	algo := parsed.Algorithm()
	if !algo.Available() {
		return false, fmt.Errorf("digest algorithm %q unavailable", algo)
	}
	return algo.FromBytes(data) == parsed, nil
}

func sanitizeHexDigest(dgst string) (string, error) {
	hexHash := dgst
	if idx := strings.IndexByte(dgst, ':'); idx >= 0 {
		hexHash = dgst[idx+1:]
	}
	if hexHash == "" {
		return "", fmt.Errorf("invalid digest %q", dgst)
	}
	for i := 0; i < len(hexHash); i++ {
		ch := hexHash[i]
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return "", fmt.Errorf("invalid digest %q", dgst)
		}
	}
	return hexHash, nil
}
