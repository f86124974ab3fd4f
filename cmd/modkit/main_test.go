package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldnoah/modkit/config"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/taildata"
	"github.com/aldnoah/modkit/core/testutil"
)

type cli struct {
	dir      string
	install  string
	settings string
	pairs    [2]*testutil.Pair
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{
		dir:      dir,
		install:  filepath.Join(dir, "game"),
		settings: filepath.Join(dir, "modkit.ini"),
	}
	require.NoError(t, os.MkdirAll(c.install, 0o750))
	c.pairs[0] = testutil.NewPair(t, c.install, "data0", testutil.DefaultLayout(), 8, 1000)
	c.pairs[1] = testutil.NewPair(t, c.install, "data1", testutil.DefaultLayout(), 8, 500)

	profiles := filepath.Join(dir, "profiles.yaml")
	f, err := os.Create(profiles)
	require.NoError(t, err)
	require.NoError(t, config.EncodeProfiles(f, []config.Profile{{
		ID:         "TEST",
		SingleExt:  ".TSTM",
		PackageExt: ".TSTP",
		Containers: []string{"data0.bin", "data1.bin"},
		IndexFiles: []string{"data0.idx", "data1.idx"},
		Layout: config.LayoutSpec{
			Fields:     []string{"Offset", "Size", "Compressed_Size", "Compression_Marker"},
			FieldWidth: 4,
		},
	}}))
	require.NoError(t, f.Close())

	require.NoError(t, config.Settings{
		InstallDir: c.install,
		LedgerDir:  filepath.Join(dir, "ledger"),
		Profiles:   profiles,
		Game:       "TEST",
	}.Save(c.settings))
	return c
}

// run executes modkit against the fixture's settings file.
func (c *cli) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"-config", c.settings}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (c *cli) writeMod(t *testing.T, file, name string, entries ...modfile.Entry) string {
	t.Helper()
	path := filepath.Join(c.dir, file)
	require.NoError(t, modfile.WriteFile(path, &modfile.Mod{
		Meta:    modfile.Meta{Name: name, Author: "tester", Version: "1"},
		Kind:    modfile.KindPackage,
		Entries: entries,
	}))
	return path
}

func TestRunUsage(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "disable-mod")

	stderr.Reset()
	assert.Equal(t, 2, run(context.Background(), []string{"explode"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "explode"`)

	assert.Equal(t, 0, run(context.Background(), []string{"-h"}, &stdout, &stderr))
}

func TestRunGames(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	code, out, errOut := c.run(t, "games")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "TEST")
	for _, id := range config.BuiltinIDs() {
		assert.Contains(t, out, id)
	}
}

func TestRunInit(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	code, out, errOut := c.run(t, "-game", "dw8xl", "-plain-http", "init")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, c.settings)

	s, err := config.LoadSettings(c.settings)
	require.NoError(t, err)
	assert.Equal(t, "dw8xl", s.Game)
	assert.Equal(t, c.install, s.InstallDir)
	assert.True(t, s.Registry.PlainHTTP)

	code, _, errOut = c.run(t, "-game", "NOPE", "init")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown profile")
}

func TestRunApplyListDisable(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	p0, p1 := c.pairs[0], c.pairs[1]
	mod := c.writeMod(t, "hero.TSTP", "Hero",
		p0.Entry(0, 1, testutil.Data(50, 1), taildata.MarkerPlain),
		p1.Entry(1, 2, testutil.Data(10, 2), taildata.MarkerPlain),
	)

	code, out, errOut := c.run(t, "apply", mod)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Hero: 2/2 entries applied")
	assert.Equal(t, int64(1058), p0.BlobLen(t))

	code, _, errOut = c.run(t, "apply", mod)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already applied")

	code, out, errOut = c.run(t, "list")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Hero")
	assert.Contains(t, out, "data0.idx")
	assert.Contains(t, out, "data1.idx")

	code, out, errOut = c.run(t, "list", "data0.idx")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "0x3F0")
	assert.Contains(t, out, "1000")

	code, out, errOut = c.run(t, "verify")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "checked 2 entries in 2 archives")

	code, out, errOut = c.run(t, "disable-mod", "hero")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "disabled 2 entries")

	code, out, _ = c.run(t, "list")
	require.Equal(t, 0, code)
	assert.Equal(t, 1, strings.Count(out, "\n"), out)

	code, _, errOut = c.run(t, "disable-mod", "hero")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no such mod")
}

func TestRunDisableAndDisableAll(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	p0 := c.pairs[0]
	original := p0.Index(t)
	mod := c.writeMod(t, "two.TSTP", "Two",
		p0.Entry(0, 1, testutil.Data(50, 1), taildata.MarkerPlain),
		p0.Entry(0, 3, testutil.Data(20, 3), taildata.MarkerPlain),
	)
	code, _, errOut := c.run(t, "apply", mod)
	require.Equal(t, 0, code, errOut)

	code, out, errOut := c.run(t, "disable", "data0.idx", "0", "0x30")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "disabled data0.idx/0/0x30")

	code, _, _ = c.run(t, "disable", "data0.idx", "zero", "0x10")
	assert.Equal(t, 1, code)

	code, _, errOut = c.run(t, "disable-all")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, original, p0.Index(t))
	assert.Equal(t, int64(1000), p0.BlobLen(t))
}

func TestRunVerifyFindsTampering(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	p0 := c.pairs[0]
	mod := c.writeMod(t, "one.TSTP", "One", p0.Entry(0, 1, testutil.Data(50, 1), taildata.MarkerPlain))
	code, _, errOut := c.run(t, "apply", mod)
	require.Equal(t, 0, code, errOut)

	require.NoError(t, os.Truncate(p0.BlobPath, 1010))

	code, out, errOut := c.run(t, "verify")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "blob-short")
	assert.Contains(t, errOut, "1 findings")
}

func TestRunPackAndInspect(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	p0 := c.pairs[0]
	entry := p0.Entry(0, 2, testutil.Data(30, 4), taildata.MarkerPlain)
	unpacked := filepath.Join(c.dir, "unpacked.g1t")
	require.NoError(t, os.WriteFile(unpacked, append(entry.Data, taildata.Encode(entry.Tail)...), 0o644))

	out := filepath.Join(c.dir, "packed.TSTM")
	code, stdout, errOut := c.run(t, "pack", "-o", out, "-name", "Packed", "-author", "me", "-zstd", unpacked)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, stdout, "single, 1 entries")

	code, stdout, errOut = c.run(t, "inspect", out)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, stdout, "name:    Packed")
	assert.Contains(t, stdout, "kind:    single (zstd=true)")
	assert.Contains(t, stdout, "offset=0x20")

	code, _, errOut = c.run(t, "pack", unpacked)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "-o is required")
}

func TestRunArgumentErrors(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	code, _, errOut := c.run(t, "disable", "data0.idx")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "usage: modkit disable")

	code, _, errOut = c.run(t, "pull", "registry.example.com/mods/x:v1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "nothing to do")

	code, _, _ = c.run(t, "apply", "-h")
	assert.Equal(t, 0, code)
}
