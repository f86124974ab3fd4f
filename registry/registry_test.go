package registry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/taildata"
	"github.com/aldnoah/modkit/registry/cache/disk"
	"github.com/aldnoah/modkit/registry/oras"
	"github.com/aldnoah/modkit/registry/registrytest"
)

const testRef = "registry.example.com/mods/dw8:v1"

func testMod() *modfile.Mod {
	return &modfile.Mod{
		Meta: modfile.Meta{Name: "Red Lu Bu", Author: "koei-fan", Version: "1.2"},
		Kind: modfile.KindPackage,
		Entries: []modfile.Entry{
			{Data: []byte("first payload"), Tail: taildata.Taildata{IdxMarker: 0, IdxEntryOffset: 0x40, CompMarker: 1}},
			{Data: []byte("second payload"), Tail: taildata.Taildata{IdxMarker: 2, IdxEntryOffset: 0x80, CompMarker: 1}},
		},
	}
}

func TestPushPull(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg))
	ctx := context.Background()

	dgst, err := c.Push(ctx, testRef, testMod(), WithTags("latest"))
	require.NoError(t, err)
	require.NoError(t, digest.Digest(dgst).Validate())

	mod, manifest, err := c.Pull(ctx, testRef)
	require.NoError(t, err)
	assert.Equal(t, "Red Lu Bu", mod.Name)
	assert.Equal(t, testMod().Entries, mod.Entries)

	assert.Equal(t, dgst, manifest.Digest())
	assert.Equal(t, "Red Lu Bu", manifest.Name())
	assert.Equal(t, "koei-fan", manifest.Author())
	assert.Equal(t, "1.2", manifest.Version())
	assert.Equal(t, "package", manifest.Kind())
	assert.Equal(t, 2, manifest.Entries())
	assert.Equal(t, []uint8{0, 2}, manifest.Markers())
	assert.False(t, manifest.Created().IsZero())
	assert.Equal(t, MediaTypeMod, manifest.ModDescriptor().MediaType)

	latest, err := c.Fetch(ctx, "registry.example.com/mods/dw8:latest")
	require.NoError(t, err)
	assert.Equal(t, dgst, latest.Digest())

	byDigest, err := c.Fetch(ctx, "registry.example.com/mods/dw8@"+dgst)
	require.NoError(t, err)
	assert.Equal(t, dgst, byDigest.Digest())
}

func TestPushZstd(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg))
	ctx := context.Background()

	_, err := c.Push(ctx, testRef, testMod(), WithEncodeOptions(modfile.WithZstd()))
	require.NoError(t, err)

	mod, _, err := c.Pull(ctx, testRef)
	require.NoError(t, err)
	assert.True(t, mod.Compressed)
	assert.Equal(t, testMod().Entries, mod.Entries)
}

func TestPushRequiresTag(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(&mockOCIClient{}))
	_, err := c.Push(context.Background(), "registry.example.com/mods/dw8", testMod())
	assert.ErrorIs(t, err, ErrInvalidReference)

	_, err = c.Push(context.Background(), "registry.example.com/mods/dw8@"+digest.FromString("x").String(), testMod())
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestPushCustomAnnotations(t *testing.T) {
	t.Parallel()

	var pushed *ocispec.Manifest
	reg := registrytest.NewMemory()
	mock := wrap(reg)
	mock.PushManifestFunc = func(ctx context.Context, repoRef, tag string, m *ocispec.Manifest) (ocispec.Descriptor, error) {
		pushed = m
		return reg.PushManifest(ctx, repoRef, tag, m)
	}

	c := New(WithOCIClient(mock))
	_, err := c.Push(context.Background(), testRef, testMod(), WithAnnotations(map[string]string{
		AnnotationVersion:         "override",
		ocispec.AnnotationCreated: "2024-01-02T03:04:05Z",
	}))
	require.NoError(t, err)
	require.NotNil(t, pushed)

	assert.Equal(t, ArtifactType, pushed.ArtifactType)
	assert.Equal(t, ocispec.MediaTypeEmptyJSON, pushed.Config.MediaType)
	assert.Equal(t, "override", pushed.Annotations[AnnotationVersion])
	assert.Equal(t, "2024-01-02T03:04:05Z", pushed.Annotations[ocispec.AnnotationCreated])
	assert.Equal(t, "Red Lu Bu", pushed.Annotations[ocispec.AnnotationTitle])
}

func TestFetchNotFound(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(registrytest.NewMemory()))
	_, err := c.Fetch(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchMapsUnauthorized(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(&mockOCIClient{
		ResolveFunc: func(context.Context, string, string) (ocispec.Descriptor, error) {
			return ocispec.Descriptor{}, oras.ErrForbidden
		},
	}))
	_, err := c.Fetch(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFetchRejectsForeignManifest(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json","layers":[]}`)
	d := digest.FromBytes(raw)
	c := New(WithOCIClient(&mockOCIClient{
		ResolveFunc: func(context.Context, string, string) (ocispec.Descriptor, error) {
			return ocispec.Descriptor{Digest: d}, nil
		},
		FetchManifestFunc: func(context.Context, string, *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
			return ocispec.Manifest{MediaType: ocispec.MediaTypeImageManifest}, raw, nil
		},
	}))
	_, err := c.Fetch(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestFetchDetectsManifestDigestMismatch(t *testing.T) {
	t.Parallel()

	d := digest.FromString("expected")
	c := New(WithOCIClient(&mockOCIClient{
		ResolveFunc: func(context.Context, string, string) (ocispec.Descriptor, error) {
			return ocispec.Descriptor{Digest: d}, nil
		},
		FetchManifestFunc: func(context.Context, string, *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
			return ocispec.Manifest{}, []byte("something else"), nil
		},
	}))
	_, err := c.Fetch(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestParseModManifest(t *testing.T) {
	t.Parallel()

	layer := ocispec.Descriptor{MediaType: MediaTypeMod, Digest: digest.FromString("m"), Size: 1}
	base := func() ocispec.Manifest {
		return ocispec.Manifest{
			MediaType:    ocispec.MediaTypeImageManifest,
			ArtifactType: ArtifactType,
			Layers:       []ocispec.Descriptor{layer},
		}
	}

	tests := []struct {
		name   string
		mutate func(*ocispec.Manifest)
		want   error
	}{
		{name: "valid", mutate: func(*ocispec.Manifest) {}},
		{name: "wrong media type", mutate: func(m *ocispec.Manifest) { m.MediaType = ocispec.MediaTypeImageIndex }, want: ErrInvalidManifest},
		{name: "wrong artifact type", mutate: func(m *ocispec.Manifest) { m.ArtifactType = "application/x-other" }, want: ErrInvalidManifest},
		{name: "no mod layer", mutate: func(m *ocispec.Manifest) { m.Layers = nil }, want: ErrMissingMod},
		{name: "two mod layers", mutate: func(m *ocispec.Manifest) { m.Layers = append(m.Layers, layer) }, want: ErrInvalidManifest},
		{name: "extra layer", mutate: func(m *ocispec.Manifest) {
			m.Layers = append(m.Layers, ocispec.Descriptor{MediaType: "application/x-extra"})
		}, want: ErrInvalidManifest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := base()
			tt.mutate(&m)
			got, err := parseModManifest(&m, "sha256:x")
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, layer, got.ModDescriptor())
			assert.Equal(t, -1, got.Entries())
			assert.Nil(t, got.Markers())
		})
	}
}

func TestPullDetectsLayerTampering(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg))
	ctx := context.Background()

	_, err := c.Push(ctx, testRef, testMod())
	require.NoError(t, err)

	m, err := c.Fetch(ctx, testRef)
	require.NoError(t, err)
	layer := m.ModDescriptor()
	reg.SetBlob(layer.Digest, bytes.Repeat([]byte{'x'}, int(layer.Size)))

	_, _, err = c.Pull(ctx, testRef)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}

func TestPullMaxModSize(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	ctx := context.Background()
	_, err := New(WithOCIClient(reg)).Push(ctx, testRef, testMod())
	require.NoError(t, err)

	c := New(WithOCIClient(reg), WithMaxModSize(8))
	_, _, err = c.Pull(ctx, testRef)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, reg.BlobFetches())
}

func TestPullCaches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	refs, err := disk.NewRefCache(filepath.Join(dir, "refs"))
	require.NoError(t, err)
	mods, err := disk.NewModCache(filepath.Join(dir, "mods"))
	require.NoError(t, err)

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg), WithRefCache(refs), WithModCache(mods))
	ctx := context.Background()

	_, err = c.Push(ctx, testRef, testMod())
	require.NoError(t, err)

	for range 3 {
		_, _, err := c.Pull(ctx, testRef)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reg.Resolves())
	assert.Equal(t, 1, reg.BlobFetches())

	_, _, err = c.Pull(ctx, testRef, WithPullSkipCache())
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Resolves())
	assert.Equal(t, 2, reg.BlobFetches())
}

func TestPushInvalidatesRefCache(t *testing.T) {
	t.Parallel()

	refs, err := disk.NewRefCache(t.TempDir())
	require.NoError(t, err)
	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg), WithRefCache(refs))
	ctx := context.Background()

	first, err := c.Push(ctx, testRef, testMod())
	require.NoError(t, err)
	m, err := c.Fetch(ctx, testRef)
	require.NoError(t, err)
	assert.Equal(t, first, m.Digest())

	updated := testMod()
	updated.Version = "2.0"
	second, err := c.Push(ctx, testRef, updated)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	m, err = c.Fetch(ctx, testRef)
	require.NoError(t, err)
	assert.Equal(t, second, m.Digest())
}

func TestPullFile(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg))
	ctx := context.Background()
	_, err := c.Push(ctx, testRef, testMod())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "lubu.amod")
	_, err = c.PullFile(ctx, testRef, path)
	require.NoError(t, err)

	mod, err := modfile.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Red Lu Bu", mod.Name)
}

func TestPullFileReplacesExisting(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg))
	ctx := context.Background()
	_, err := c.Push(ctx, testRef, testMod())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "mods")
	path := filepath.Join(dir, "lubu.amod")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	_, err = c.PullFile(ctx, "registry.example.com/mods/missing:v1", path)
	require.Error(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got, "failed pull must keep the existing file")

	_, err = c.PullFile(ctx, testRef, path)
	require.NoError(t, err)
	mod, err := modfile.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Red Lu Bu", mod.Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "lubu.amod", entries[0].Name())

	nested := filepath.Join(t.TempDir(), "a", "b", "lubu.amod")
	_, err = c.PullFile(ctx, testRef, nested)
	require.NoError(t, err)
	assert.FileExists(t, nested)
}

func TestTag(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg))
	ctx := context.Background()

	dgst, err := c.Push(ctx, testRef, testMod())
	require.NoError(t, err)

	require.NoError(t, c.Tag(ctx, "registry.example.com/mods/dw8:stable", dgst))
	m, err := c.Fetch(ctx, "registry.example.com/mods/dw8:stable")
	require.NoError(t, err)
	assert.Equal(t, dgst, m.Digest())

	assert.ErrorIs(t, c.Tag(ctx, "registry.example.com/mods/dw8", dgst), ErrInvalidReference)
	assert.ErrorIs(t, c.Tag(ctx, "registry.example.com/mods/dw8:x", "not-a-digest"), ErrInvalidReference)
	assert.ErrorIs(t, c.Tag(ctx, "registry.example.com/mods/dw8:x", digest.FromString("none").String()), ErrNotFound)
}

func TestMapOCIError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapOCIError(nil))
	assert.ErrorIs(t, mapOCIError(oras.ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, mapOCIError(oras.ErrUnauthorized), ErrUnauthorized)
	assert.ErrorIs(t, mapOCIError(oras.ErrInvalidReference), ErrInvalidReference)
	other := errors.New("boom")
	assert.Equal(t, other, mapOCIError(other))
}

func TestReadLimited(t *testing.T) {
	t.Parallel()

	data, err := readLimited(bytes.NewReader([]byte("abcd")), 4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), data)

	_, err = readLimited(bytes.NewReader([]byte("abcde")), 4, 4)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = readLimited(io.LimitReader(bytes.NewReader(nil), 0), 10, 4)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestPullConcurrent(t *testing.T) {
	t.Parallel()

	reg := registrytest.NewMemory()
	c := New(WithOCIClient(reg))
	ctx := context.Background()
	_, err := c.Push(ctx, testRef, testMod())
	require.NoError(t, err)

	const n = 8
	var g errgroup.Group
	for range n {
		g.Go(func() error {
			mod, _, err := c.Pull(ctx, testRef)
			if err != nil {
				return err
			}
			if len(mod.Entries) != 2 {
				return errors.New("unexpected entry count")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, reg.BlobFetches(), n)
}
