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
)

// --- Error Scenarios ---

func TestError_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	client := newTestClient(t, newGame(t))

	ref := testRef(registryAddr, "nonexistent-mod-12345")
	_, _, err := client.Pull(ctx, ref)
	require.Error(t, err, "Pull should fail")
	assert.ErrorIs(t, err, modkit.ErrNotFound)

	_, err = client.Fetch(ctx, ref)
	assert.ErrorIs(t, err, modkit.ErrNotFound)
}

func TestError_InvalidReference(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	getRegistry(t)
	client := newTestClient(t, newGame(t))

	invalidRefs := []string{
		"not-a-valid-ref",
		"://missing-scheme",
		"",
	}

	for _, ref := range invalidRefs {
		t.Run(ref, func(t *testing.T) {
			t.Parallel()
			_, err := client.Fetch(ctx, ref)
			assert.Error(t, err, "Fetch should fail with invalid ref")
		})
	}
}

func TestError_PublishMalformed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)
	client := newTestClient(t, g)

	path := filepath.Join(g.dir, "broken.ITP")
	require.NoError(t, os.WriteFile(path, []byte("not a mod"), 0o644))

	ref := testRef(registryAddr, "error-malformed")
	_, err := client.Publish(ctx, ref, path)
	assert.ErrorIs(t, err, modkit.ErrMalformedPayload)

	_, err = client.Fetch(ctx, ref)
	assert.ErrorIs(t, err, modkit.ErrNotFound, "nothing was pushed")
}

func TestError_MaxModSize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	g := newGame(t)

	ref := testRef(registryAddr, "error-max-size")
	_, err := newTestClient(t, g).Publish(ctx, ref, writeMod(t, g, "large"))
	require.NoError(t, err)

	client := newTestClient(t, g, modkit.WithMaxModSize(16))
	_, _, err = client.Pull(ctx, ref)
	assert.ErrorIs(t, err, modkit.ErrTooLarge)
}

func TestError_Tag_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registryAddr := getRegistry(t)
	client := newTestClient(t, newGame(t))

	ref := testRefWithTag(registryAddr, "error-tag", "v1")
	err := client.Tag(ctx, ref, "sha256:0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, modkit.ErrNotFound)
}
