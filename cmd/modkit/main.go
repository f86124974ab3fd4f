// Command modkit applies, disables and distributes game archive mods.
//
// Usage:
//
//	modkit [global flags] <command> [args]
//
// Settings are read from modkit.ini in the user config directory (or
// -config); global flags override them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"init":        {"write the current settings to modkit.ini", runInit},
	"games":       {"list known game profiles", runGames},
	"apply":       {"apply mod files", runApply},
	"disable":     {"disable one entry: <archive> <marker> <entry offset>", runDisable},
	"disable-mod": {"disable every entry of a mod by name", runDisableMod},
	"disable-all": {"restore an archive (or every archive) and truncate its blobs", runDisableAll},
	"list":        {"list enabled mods, or the entries of one archive", runList},
	"verify":      {"cross-check the ledger against the archive files", runVerify},
	"resolve":     {"clear the inconsistency flag of an archive", runResolve},
	"inspect":     {"show the contents of a mod file", runInspect},
	"pack":        {"build a mod file from unpacked files", runPack},
	"push":        {"publish a mod file to an OCI registry", runPush},
	"pull":        {"download a mod from an OCI registry", runPull},
	"fetch":       {"show a published mod's manifest", runFetch},
	"tag":         {"tag a published mod: <ref> <digest>", runTag},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("modkit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var g globalFlags
	g.register(fs)
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		usage(fs)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "modkit: unknown command %q\n", rest[0])
		return 2
	}

	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	e := &env{
		flags:  g,
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})),
	}
	defer e.close()

	if err := cmd.run(ctx, e, rest[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "modkit %s: %v\n", rest[0], err)
		return 1
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "usage: modkit [global flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "global flags:")
	fs.PrintDefaults()
}
