package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"

	"github.com/aldnoah/modkit/config"
	modcore "github.com/aldnoah/modkit/core"
	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/ledger/disk"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/record"
	"github.com/aldnoah/modkit/core/taildata"
)

const (
	ledgerMemory = "memory"
	ledgerDisk   = "disk"
)

type settings struct {
	mode        string
	archives    int
	records     int
	blobSize    int
	entries     int
	entrySize   int
	compression string
	pattern     string
	ledger      string
	fgProfile   string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	tempDir     string
	keepTemp    bool
	randomSeed  int64
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkMod    *modfile.Mod
	sinkReport *modcore.VerifyReport
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	profile, err := makeGame(dir, cfg)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}
	layout, err := profile.RecordLayout()
	if err != nil {
		log.Fatal(err)
	}
	mod, err := makeMod(cfg, layout)
	if err != nil {
		log.Fatal(err)
	}
	engine, err := newEngine(dir, profile, cfg)
	if err != nil {
		log.Fatal(err)
	}

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, engine, mod)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocognit,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg settings, engine *modcore.Engine, mod *modfile.Mod) (profileStats, error) {
	ctx := context.Background()
	start := time.Now()
	ops := 0
	var byteCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "apply-disable":
		// Disabling by mod name leaves appended bytes behind, so blobs
		// grow for the length of the run.
		for shouldContinue() {
			if _, err := engine.ApplyMod(ctx, mod); err != nil {
				return profileStats{}, err
			}
			if _, err := engine.DisableMod(ctx, mod.Name); err != nil {
				return profileStats{}, err
			}
			byteCount += mod.Size()
			ops++
		}

	case "apply-restore":
		for shouldContinue() {
			if _, err := engine.ApplyMod(ctx, mod); err != nil {
				return profileStats{}, err
			}
			archives, err := engine.Archives()
			if err != nil {
				return profileStats{}, err
			}
			for _, name := range archives {
				if err := engine.DisableAll(ctx, name); err != nil {
					return profileStats{}, err
				}
			}
			byteCount += mod.Size()
			ops++
		}

	case "verify":
		if _, err := engine.ApplyMod(ctx, mod); err != nil {
			return profileStats{}, err
		}
		start = time.Now()
		for shouldContinue() {
			report, err := engine.Verify(ctx)
			if err != nil {
				return profileStats{}, err
			}
			if !report.OK() {
				return profileStats{}, fmt.Errorf("verify found %d anomalies", len(report.Findings))
			}
			sinkReport = report
			byteCount += mod.Size()
			ops++
		}

	case "parse":
		var opts []modfile.EncodeOption
		if cfg.compression == "zstd" {
			opts = append(opts, modfile.WithZstd())
		}
		raw, err := modfile.Encode(mod, opts...)
		if err != nil {
			return profileStats{}, err
		}
		start = time.Now()
		for shouldContinue() {
			parsed, err := modfile.Parse(raw)
			if err != nil {
				return profileStats{}, err
			}
			sinkMod = parsed
			byteCount += int64(len(raw))
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:     ops,
		bytes:   byteCount,
		elapsed: time.Since(start),
	}, nil
}

func parseFlags() settings {
	var cfg settings
	flag.StringVar(&cfg.mode, "mode", "apply-restore", "mode: apply-disable, apply-restore, verify, parse")
	flag.IntVar(&cfg.archives, "archives", 4, "number of archive pairs")
	flag.IntVar(&cfg.records, "records", 4096, "index records per archive")
	flag.IntVar(&cfg.blobSize, "blob-size", 64<<20, "initial blob size in bytes")
	flag.IntVar(&cfg.entries, "entries", 256, "mod entries")
	flag.IntVar(&cfg.entrySize, "entry-size", 16<<10, "entry payload size in bytes")
	flag.StringVar(&cfg.compression, "compression", "zstd", "mod body compression for parse mode: none or zstd")
	flag.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flag.StringVar(&cfg.ledger, "ledger", ledgerDisk, "ledger: memory or disk")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()
	return cfg
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg settings) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "modkit-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func profileLayout() config.LayoutSpec {
	return config.LayoutSpec{
		Fields:     []string{"Offset", "Size", "Compressed_Size", "Compression_Marker"},
		FieldWidth: 4,
	}
}

// makeGame writes cfg.archives index/blob pairs under dir/game and returns
// a profile describing them.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func makeGame(dir string, cfg settings) (config.Profile, error) {
	install := filepath.Join(dir, "game")
	if err := os.MkdirAll(install, 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
		return config.Profile{}, err
	}
	profile := config.Profile{ID: "PROFILE", Layout: profileLayout()}
	layout, err := profile.RecordLayout()
	if err != nil {
		return config.Profile{}, err
	}

	blob := make([]byte, cfg.blobSize)
	for i := range blob {
		blob[i] = byte(i % 251)
	}
	stride := uint64(cfg.blobSize / max(cfg.records, 1)) //nolint:gosec // flag values are positive
	for a := range cfg.archives {
		index := make([]byte, 0, cfg.records*layout.EntrySize)
		for i := range cfg.records {
			rec, err := layout.Patch(make([]byte, layout.EntrySize), record.Record{
				Offset: uint64(i) * stride, //nolint:gosec // loop index is non-negative
				Size:   stride,
			})
			if err != nil {
				return config.Profile{}, err
			}
			index = append(index, rec...)
		}
		idxName := fmt.Sprintf("data%d.idx", a)
		binName := fmt.Sprintf("data%d.bin", a)
		if err := os.WriteFile(filepath.Join(install, idxName), index, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return config.Profile{}, err
		}
		if err := os.WriteFile(filepath.Join(install, binName), blob, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return config.Profile{}, err
		}
		profile.IndexFiles = append(profile.IndexFiles, idxName)
		profile.Containers = append(profile.Containers, binName)
	}
	return profile, profile.Validate()
}

// makeMod builds a package mod spreading cfg.entries over every archive,
// each entry targeting a distinct record.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func makeMod(cfg settings, layout record.Layout) (*modfile.Mod, error) {
	if cfg.entries > cfg.archives*cfg.records {
		return nil, fmt.Errorf("%d entries do not fit %d records", cfg.entries, cfg.archives*cfg.records)
	}
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional use for reproducible benchmarks

	mod := &modfile.Mod{
		Meta: modfile.Meta{Name: "profile", Author: "profiler", Version: "1"},
		Kind: modfile.KindPackage,
	}
	for i := range cfg.entries {
		content := make([]byte, cfg.entrySize)
		switch cfg.pattern {
		case "random":
			if _, err := rng.Read(content); err != nil {
				return nil, err
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
		}
		mod.Entries = append(mod.Entries, modfile.Entry{
			Data: content,
			Tail: taildata.Taildata{
				IdxMarker:      uint8(i % cfg.archives),                       //nolint:gosec // archives fit a marker
				IdxEntryOffset: uint32((i / cfg.archives) * layout.EntrySize), //nolint:gosec // bounded by records
				CompMarker:     taildata.MarkerPlain,
			},
		})
	}
	return mod, nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newEngine(dir string, profile config.Profile, cfg settings) (*modcore.Engine, error) {
	resolver, err := config.NewResolver(profile, filepath.Join(dir, "game"))
	if err != nil {
		return nil, err
	}

	var l ledger.Ledger
	switch cfg.ledger {
	case ledgerMemory:
		l = ledger.NewMemory()
	case ledgerDisk:
		dl, err := disk.Open(filepath.Join(dir, "ledger"))
		if err != nil {
			return nil, err
		}
		l = dl
	default:
		return nil, fmt.Errorf("unknown ledger: %s", cfg.ledger)
	}

	quiet := slog.New(slog.DiscardHandler)
	return modcore.NewEngine(resolver, l, modcore.WithLogger(quiet), modcore.WithAnomalyLogger(quiet))
}
