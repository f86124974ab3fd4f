//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aldnoah/modkit"
	"github.com/aldnoah/modkit/config"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/testutil"
)

// --- Registry Container Setup ---

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the shared registry address, starting the container if needed.
// The container is shared across all tests for performance.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		ctx := context.Background()
		registryAddr, registryErr = startRegistryContainer(ctx)
	})

	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}

	return registryAddr
}

// startRegistryContainer starts a registry:2 container and returns the host:port address.
func startRegistryContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	// Cleanup is left to the testcontainers reaper.

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Game Fixture ---

func testProfile() config.Profile {
	return config.Profile{
		ID:         "ITEST",
		SingleExt:  ".ITM",
		PackageExt: ".ITP",
		Containers: []string{"data0.bin", "data1.bin"},
		IndexFiles: []string{"data0.idx", "data1.idx"},
		Layout: config.LayoutSpec{
			Fields:     []string{"Offset", "Size", "Compressed_Size", "Compression_Marker"},
			FieldWidth: 4,
		},
	}
}

// game is an install directory with two archive pairs.
type game struct {
	dir     string
	install string
	pairs   [2]*testutil.Pair
}

func newGame(tb testing.TB) *game {
	tb.Helper()
	dir := tb.TempDir()
	g := &game{dir: dir, install: filepath.Join(dir, "game")}
	require.NoError(tb, os.MkdirAll(g.install, 0o755))
	g.pairs[0] = testutil.NewPair(tb, g.install, "data0", testutil.DefaultLayout(), 8, 1000)
	g.pairs[1] = testutil.NewPair(tb, g.install, "data1", testutil.DefaultLayout(), 8, 500)
	return g
}

// --- Test Client Factory ---

// newTestClient creates a client for g configured for the local test registry.
func newTestClient(tb testing.TB, g *game, opts ...modkit.Option) *modkit.Client {
	tb.Helper()

	allOpts := append([]modkit.Option{
		modkit.WithPlainHTTP(true),
		modkit.WithAnonymous(),
		modkit.WithLedgerDir(filepath.Join(g.dir, "ledger")),
	}, opts...)

	client, err := modkit.NewClient(testProfile(), g.install, allOpts...)
	require.NoError(tb, err, "create test client")

	return client
}

// --- Test Reference Helpers ---

// testRef generates a unique reference for a test to avoid collisions.
func testRef(registryAddr, testName string) string {
	return fmt.Sprintf("%s/test/%s:latest", registryAddr, testName)
}

// testRefWithTag generates a reference with a specific tag.
func testRefWithTag(registryAddr, testName, tag string) string {
	return fmt.Sprintf("%s/test/%s:%s", registryAddr, testName, tag)
}

// --- Test Data Helpers ---

// writeMod writes a package mod touching both pairs of g.
func writeMod(tb testing.TB, g *game, name string, opts ...modfile.EncodeOption) string {
	tb.Helper()
	path := filepath.Join(g.dir, name+".ITP")
	mod := &modfile.Mod{
		Meta: modfile.Meta{Name: name, Author: "integration", Version: "1.0", Description: "integration mod"},
		Kind: modfile.KindPackage,
		Entries: []modfile.Entry{
			g.pairs[0].Entry(0, 1, makeCompressibleContent(50), 0),
			g.pairs[1].Entry(1, 2, makeCompressibleContent(10), 0),
		},
	}
	require.NoError(tb, modfile.WriteFile(path, mod, opts...))
	return path
}

// makeCompressibleContent creates content that benefits from compression.
func makeCompressibleContent(size int) []byte {
	pattern := []byte("This is a repeating pattern for compression testing. ")
	result := make([]byte, 0, size)
	for len(result) < size {
		result = append(result, pattern...)
	}
	return result[:size]
}
