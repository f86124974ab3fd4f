package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aldnoah/modkit/config"
	modcore "github.com/aldnoah/modkit/core"
	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/registry"
)

// parseArgs parses a subcommand's flags and checks its positional count.
func parseArgs(e *env, name, usage string, fs *flag.FlagSet, args []string, minArgs, maxArgs int) ([]string, error) {
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "usage: modkit %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) < minArgs || (maxArgs >= 0 && len(rest) > maxArgs) {
		fs.Usage()
		return nil, fmt.Errorf("expected %s", usage)
	}
	return rest, nil
}

func runInit(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	if _, err := parseArgs(e, "init", "", fs, args, 0, 0); err != nil {
		return err
	}
	s, err := e.settings()
	if err != nil {
		return err
	}
	if s.Game != "" {
		user, err := e.userProfiles(s)
		if err != nil {
			return err
		}
		if _, err := config.Lookup(s.Game, user); err != nil {
			return err
		}
	}
	path, err := e.settingsPath()
	if err != nil {
		return err
	}
	if err := s.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s\n", path)
	return nil
}

func runGames(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("games", flag.ContinueOnError)
	if _, err := parseArgs(e, "games", "", fs, args, 0, 0); err != nil {
		return err
	}
	s, err := e.settings()
	if err != nil {
		return err
	}
	user, err := e.userProfiles(s)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMODS\tLAYOUT")
	show := func(p config.Profile) {
		layout := "-"
		if !p.Layout.IsZero() {
			layout = strings.Join(p.Layout.Fields, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", p.ID, p.DisplayName, p.SingleExt, p.PackageExt, layout)
	}
	for _, p := range user {
		merged, err := config.Lookup(p.ID, user)
		if err != nil {
			return err
		}
		seen[strings.ToUpper(p.ID)] = true
		show(merged)
	}
	for _, id := range config.BuiltinIDs() {
		if seen[strings.ToUpper(id)] {
			continue
		}
		p, _ := config.Builtin(id)
		show(p)
	}
	return tw.Flush()
}

func runApply(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	paths, err := parseArgs(e, "apply", "<mod file>...", fs, args, 1, -1)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range paths {
		report, err := c.ApplyFile(ctx, path)
		if err != nil {
			if errors.Is(err, modcore.ErrInconsistentLedgerState) {
				return err
			}
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		printReport(e.stdout, report)
		if err := report.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func printReport(w io.Writer, report *modcore.ApplyReport) {
	fmt.Fprintf(w, "%s: %d/%d entries applied\n", report.Mod, report.Applied(), len(report.Results))
	for _, r := range report.Results {
		if r.Err != nil {
			fmt.Fprintf(w, "  #%d %s: %v\n", r.Index, r.Key, r.Err)
			continue
		}
		fmt.Fprintf(w, "  #%d %s -> %s@0x%X (%d bytes)\n", r.Index, r.Key, r.Result.Blob, r.Result.Offset, r.Result.Size)
		for _, a := range r.Result.Anomalies {
			fmt.Fprintf(w, "     note: %s %s\n", a.Kind, a.Detail)
		}
	}
}

func runDisable(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("disable", flag.ContinueOnError)
	rest, err := parseArgs(e, "disable", "<archive> <marker> <entry offset>", fs, args, 3, 3)
	if err != nil {
		return err
	}
	marker, err := strconv.ParseUint(rest[1], 0, 8)
	if err != nil {
		return fmt.Errorf("marker: %w", err)
	}
	offset, err := strconv.ParseUint(rest[2], 0, 32)
	if err != nil {
		return fmt.Errorf("entry offset: %w", err)
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	key := ledger.Key{Archive: rest[0], IdxMarker: uint8(marker), EntryOffset: uint32(offset)}
	if err := c.Disable(ctx, key); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "disabled %s\n", key)
	return nil
}

func runDisableMod(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("disable-mod", flag.ContinueOnError)
	rest, err := parseArgs(e, "disable-mod", "<mod name>", fs, args, 1, 1)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	n, err := c.DisableMod(ctx, rest[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "disabled %d entries of %s\n", n, rest[0])
	return nil
}

func runDisableAll(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("disable-all", flag.ContinueOnError)
	rest, err := parseArgs(e, "disable-all", "[archive]", fs, args, 0, 1)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	if len(rest) == 1 {
		if err := c.DisableAll(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "restored %s\n", rest[0])
		return nil
	}
	if err := c.DisableEverything(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "restored all archives")
	return nil
}

func runList(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	rest, err := parseArgs(e, "list", "[archive]", fs, args, 0, 1)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)

	if len(rest) == 1 {
		entries, err := c.Entries(rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "MARKER\tOFFSET\tMOD\tBLOB\tDATA\tSIZE\tBASELINE")
		for _, ent := range entries {
			fmt.Fprintf(tw, "%d\t0x%X\t%s\t%s\t0x%X\t%d\t%d\n",
				ent.IdxMarker, ent.EntryOffset, ent.ModName, ent.Blob,
				ent.Patched.Offset, ent.Patched.Size, ent.OriginalBinLength)
		}
		return tw.Flush()
	}

	mods, err := c.Mods()
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "MOD\tENTRIES\tARCHIVES\tAPPLIED")
	for _, m := range mods {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.Name, m.Entries, strings.Join(m.Archives, ","), m.AppliedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runVerify(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	if _, err := parseArgs(e, "verify", "", fs, args, 0, 0); err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	report, err := c.Verify(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "checked %d entries in %d archives\n", report.Entries, report.Archives)
	for _, f := range report.Findings {
		fmt.Fprintf(e.stdout, "  %s %s/%d/0x%X: %s\n", f.Kind, f.Archive, f.IdxMarker, f.EntryOffset, f.Detail)
	}
	if !report.OK() {
		return fmt.Errorf("%d findings", len(report.Findings))
	}
	return nil
}

func runResolve(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	rest, err := parseArgs(e, "resolve", "<archive>", fs, args, 1, 1)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	if err := c.ClearInconsistent(ctx, rest[0]); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "cleared %s\n", rest[0])
	return nil
}

func runInspect(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	rest, err := parseArgs(e, "inspect", "<mod file>", fs, args, 1, 1)
	if err != nil {
		return err
	}
	var opts []modfile.ParseOption
	if p, err := e.profile(); err == nil {
		if opts, err = p.ParseOptions(rest[0]); err != nil {
			return err
		}
	}
	mod, err := modfile.ReadFile(rest[0], opts...)
	if err != nil {
		return err
	}
	printMod(e.stdout, mod)
	return nil
}

func printMod(w io.Writer, mod *modfile.Mod) {
	fmt.Fprintf(w, "name:    %s\n", mod.Name)
	fmt.Fprintf(w, "author:  %s\n", mod.Author)
	fmt.Fprintf(w, "version: %s\n", mod.Version)
	if mod.Description != "" {
		fmt.Fprintf(w, "about:   %s\n", mod.Description)
	}
	fmt.Fprintf(w, "kind:    %s (zstd=%t)\n", mod.Kind, mod.Compressed)
	fmt.Fprintf(w, "entries: %d (%d bytes)\n", len(mod.Entries), mod.Size())
	for i, ent := range mod.Entries {
		fmt.Fprintf(w, "  #%d %s size=%d\n", i, ent.Tail, len(ent.Data))
	}
}

func runPack(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	var meta modfile.Meta
	out := fs.String("o", "", "output mod file (required)")
	useZstd := fs.Bool("zstd", false, "compress the mod body")
	fs.StringVar(&meta.Name, "name", "", "mod name")
	fs.StringVar(&meta.Author, "author", "", "mod author")
	fs.StringVar(&meta.Version, "version", "", "mod version")
	fs.StringVar(&meta.Description, "desc", "", "mod description")
	files, err := parseArgs(e, "pack", "-o <out> [flags] <unpacked file>...", fs, args, 1, -1)
	if err != nil {
		return err
	}
	if *out == "" {
		return errors.New("-o is required")
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	var opts []modfile.EncodeOption
	if *useZstd {
		opts = append(opts, modfile.WithZstd())
	}
	mod, err := c.Pack(meta, files, *out, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s: %s, %d entries\n", *out, mod.Kind, len(mod.Entries))
	return nil
}

// stringList collects a repeated flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func runPush(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	var tags stringList
	fs.Var(&tags, "tag", "additional tag (repeatable)")
	rest, err := parseArgs(e, "push", "[-tag t]... <ref> <mod file>", fs, args, 2, 2)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	var opts []registry.PushOption
	if len(tags) > 0 {
		opts = append(opts, registry.WithTags(tags...))
	}
	dgst, err := c.Publish(ctx, rest[0], rest[1], opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "pushed %s\n%s\n", rest[0], dgst)
	return nil
}

func runPull(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("pull", flag.ContinueOnError)
	out := fs.String("o", "", "write the mod file here")
	apply := fs.Bool("apply", false, "apply the mod after downloading")
	rest, err := parseArgs(e, "pull", "[-o file] [-apply] <ref>", fs, args, 1, 1)
	if err != nil {
		return err
	}
	if *out == "" && !*apply {
		return errors.New("nothing to do; pass -o and/or -apply")
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	if *out != "" {
		m, err := c.PullFile(ctx, rest[0], *out)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "wrote %s (%s %s)\n", *out, m.Name(), m.Digest())
	}
	if *apply {
		report, err := c.Install(ctx, rest[0])
		if err != nil {
			return err
		}
		printReport(e.stdout, report)
		return report.Err()
	}
	return nil
}

func runFetch(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	rest, err := parseArgs(e, "fetch", "<ref>", fs, args, 1, 1)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	m, err := c.Fetch(ctx, rest[0])
	if err != nil {
		return err
	}
	layer := m.ModDescriptor()
	fmt.Fprintf(e.stdout, "digest:  %s\n", m.Digest())
	fmt.Fprintf(e.stdout, "name:    %s\n", m.Name())
	fmt.Fprintf(e.stdout, "author:  %s\n", m.Author())
	fmt.Fprintf(e.stdout, "version: %s\n", m.Version())
	fmt.Fprintf(e.stdout, "kind:    %s\n", m.Kind())
	fmt.Fprintf(e.stdout, "entries: %d\n", m.Entries())
	fmt.Fprintf(e.stdout, "size:    %d\n", layer.Size)
	if created := m.Created(); !created.IsZero() {
		fmt.Fprintf(e.stdout, "created: %s\n", created.Format(time.RFC3339))
	}
	return nil
}

func runTag(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("tag", flag.ContinueOnError)
	rest, err := parseArgs(e, "tag", "<ref> <digest>", fs, args, 2, 2)
	if err != nil {
		return err
	}
	c, err := e.modClient()
	if err != nil {
		return err
	}
	if err := c.Tag(ctx, rest[0], rest[1]); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "tagged %s\n", rest[0])
	return nil
}
