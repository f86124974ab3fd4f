//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldnoah/modkit"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/registry"
)

// --- Publish Operations ---

func TestPublish_Basic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	client := newTestClient(t, g)

	path := writeMod(t, g, "basic")
	ref := testRef(registryAddr, "publish-basic")
	dgst, err := client.Publish(ctx, ref, path)
	require.NoError(t, err, "Publish")
	assert.NotEmpty(t, dgst)

	manifest, err := client.Fetch(ctx, ref)
	require.NoError(t, err, "Fetch")
	assert.Equal(t, dgst, manifest.Digest())
	assert.Equal(t, "basic", manifest.Name())
	assert.Equal(t, "integration", manifest.Author())
	assert.Equal(t, "package", manifest.Kind())
	assert.Equal(t, 2, manifest.Entries())
	assert.Equal(t, []uint8{0, 1}, manifest.Markers())
	assert.Equal(t, registry.MediaTypeMod, manifest.ModDescriptor().MediaType)
}

func TestPublish_WithTags(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	client := newTestClient(t, g)

	path := writeMod(t, g, "tagged")
	ref := testRefWithTag(registryAddr, "publish-tags", "v1.0.0")
	dgst, err := client.Publish(ctx, ref, path, registry.WithTags("latest", "stable"))
	require.NoError(t, err, "Publish with tags")

	for _, tag := range []string{"v1.0.0", "latest", "stable"} {
		manifest, err := client.Fetch(ctx, testRefWithTag(registryAddr, "publish-tags", tag))
		require.NoError(t, err, "Fetch %s", tag)
		assert.Equal(t, dgst, manifest.Digest(), "tag %s", tag)
	}
}

func TestPublish_WithAnnotations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	client := newTestClient(t, g)

	path := writeMod(t, g, "annotated")
	ref := testRef(registryAddr, "publish-annotations")
	_, err := client.Publish(ctx, ref, path, registry.WithAnnotations(map[string]string{
		"org.example.nexus-id": "1234",
	}))
	require.NoError(t, err)

	manifest, err := client.Fetch(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "1234", manifest.Annotations()["org.example.nexus-id"])
	assert.False(t, manifest.Created().IsZero())
}

// --- Pull Operations ---

func TestPull_ByteIdentical(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	client := newTestClient(t, g)

	path := writeMod(t, g, "zstd", modfile.WithZstd())
	ref := testRef(registryAddr, "pull-identical")
	_, err := client.Publish(ctx, ref, path)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "pulled.ITP")
	_, err = client.PullFile(ctx, ref, out)
	require.NoError(t, err, "PullFile")

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	mod, _, err := client.Pull(ctx, ref)
	require.NoError(t, err, "Pull")
	assert.True(t, mod.Compressed)
	assert.Len(t, mod.Entries, 2)
}

func TestPull_ByDigest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	client := newTestClient(t, g)

	ref := testRef(registryAddr, "pull-digest")
	dgst, err := client.Publish(ctx, ref, writeMod(t, g, "digest"))
	require.NoError(t, err)

	mod, manifest, err := client.Pull(ctx, registryAddr+"/test/pull-digest@"+dgst)
	require.NoError(t, err)
	assert.Equal(t, "digest", mod.Name)
	assert.Equal(t, dgst, manifest.Digest())
}

// --- Tag Operations ---

func TestTag_CreateAlias(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	client := newTestClient(t, g)

	ref := testRefWithTag(registryAddr, "tag-alias", "v1")
	dgst, err := client.Publish(ctx, ref, writeMod(t, g, "alias"))
	require.NoError(t, err)

	alias := testRefWithTag(registryAddr, "tag-alias", "stable")
	require.NoError(t, client.Tag(ctx, alias, dgst), "Tag")

	manifest, err := client.Fetch(ctx, alias)
	require.NoError(t, err)
	assert.Equal(t, dgst, manifest.Digest())
}

// --- Install Round Trip ---

func TestInstall_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)

	author := newGame(t)
	ref := testRef(registryAddr, "install-roundtrip")
	_, err := newTestClient(t, author).Publish(ctx, ref, writeMod(t, author, "roundtrip"))
	require.NoError(t, err)

	g := newGame(t)
	client := newTestClient(t, g)
	p0, p1 := g.pairs[0], g.pairs[1]
	index0, index1 := p0.Index(t), p1.Index(t)

	report, err := client.Install(ctx, ref)
	require.NoError(t, err, "Install")
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Applied())
	assert.Equal(t, int64(1058), p0.BlobLen(t))
	assert.Equal(t, int64(522), p1.BlobLen(t))

	verify, err := client.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, verify.OK(), "findings: %v", verify.Findings)

	_, err = client.Install(ctx, ref)
	assert.ErrorIs(t, err, modkit.ErrAlreadyApplied)

	require.NoError(t, client.DisableEverything(ctx))
	assert.Equal(t, index0, p0.Index(t))
	assert.Equal(t, index1, p1.Index(t))
	assert.Equal(t, int64(1000), p0.BlobLen(t))
	assert.Equal(t, int64(500), p1.BlobLen(t))
}

// --- Cache Behavior ---

func TestClient_WithCacheDir(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	cacheDir := t.TempDir()
	client := newTestClient(t, g, modkit.WithCacheDir(cacheDir))

	ref := testRef(registryAddr, "cache-dir")
	_, err := client.Publish(ctx, ref, writeMod(t, g, "cached"))
	require.NoError(t, err)

	_, first, err := client.Pull(ctx, ref)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(cacheDir, "mods"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "mod cache populated")

	// A second client over the same cache sees the same content.
	other := newTestClient(t, newGame(t), modkit.WithCacheDir(cacheDir))
	mod, second, err := other.Pull(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, first.Digest(), second.Digest())
	assert.Equal(t, "cached", mod.Name)
}
