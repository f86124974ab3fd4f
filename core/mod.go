package modkit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/modfile"
)

// EntryResult is the outcome of one entry of an ApplyMod call.
type EntryResult struct {
	// Index is the entry's position in the mod file.
	Index  int
	Key    ledger.Key
	Result *ApplyResult
	Err    error
}

// ApplyReport collects per-entry outcomes of ApplyMod. Entries applied
// before a failure are not rolled back.
type ApplyReport struct {
	Mod     string
	Results []EntryResult
}

// Applied returns the number of entries that were applied.
func (r *ApplyReport) Applied() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r *ApplyReport) Failed() []EntryResult {
	var out []EntryResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err joins the per-entry errors, or returns nil when every entry applied.
func (r *ApplyReport) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("entry %d (%s): %w", res.Index, res.Key, res.Err))
	}
	return errors.Join(errs...)
}

// ApplyMod applies every entry of mod under its name.
//
// The mod is validated as a whole before anything is written: an unknown
// marker, a record outside its index file or two entries targeting the same
// record abort the call with no side effects. After that, entries are applied
// in order and failures are reported per entry. ApplyMod stops early only
// when an archive becomes inconsistent, in which case the error is also
// returned.
func (e *Engine) ApplyMod(ctx context.Context, mod *modfile.Mod) (*ApplyReport, error) {
	if mod == nil || len(mod.Entries) == 0 {
		return nil, fmt.Errorf("%w: mod has no entries", ErrMalformedPayload)
	}
	name := strings.TrimSpace(mod.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: mod has no name", ErrMalformedPayload)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if live, err := e.findMod(name); err != nil {
		return nil, err
	} else if len(live) > 0 {
		return nil, fmt.Errorf("%w: mod %q has %d live entries", ErrAlreadyApplied, name, len(live))
	}

	keys, err := e.validate(mod)
	if err != nil {
		return nil, err
	}

	report := &ApplyReport{Mod: name}
	for i, entry := range mod.Entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := e.apply(ctx, name, entry)
		report.Results = append(report.Results, EntryResult{Index: i, Key: keys[i], Result: res, Err: err})
		if errors.Is(err, ErrInconsistentLedgerState) {
			return report, err
		}
		if err != nil {
			e.log().WarnContext(ctx, "entry not applied", "mod", name, "key", keys[i].String(), "error", err)
		}
	}
	e.log().InfoContext(ctx, "applied mod", "mod", name, "applied", report.Applied(), "entries", len(mod.Entries))
	return report, nil
}

// validate plans every entry of mod without writing anything.
func (e *Engine) validate(mod *modfile.Mod) ([]ledger.Key, error) {
	type recordRef struct {
		index  string
		offset uint32
	}
	keys := make([]ledger.Key, len(mod.Entries))
	seen := make(map[recordRef]int, len(mod.Entries))
	checked := make(map[string]bool)
	for i, entry := range mod.Entries {
		plan, err := e.Plan(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ref := recordRef{index: plan.Target.IndexPath, offset: plan.Key.EntryOffset}
		if j, dup := seen[ref]; dup {
			return nil, fmt.Errorf("%w: entries %d and %d both target %s", ErrMalformedPayload, j, i, plan.Key)
		}
		seen[ref] = i
		keys[i] = plan.Key

		if !checked[plan.Key.Archive] {
			if err := e.checkConsistent(plan.Key.Archive); err != nil {
				return nil, err
			}
			checked[plan.Key.Archive] = true
		}
	}
	return keys, nil
}

// DisableMod disables every live entry recorded under name, across all
// archives, newest first. It returns the number of entries disabled and
// ErrNoSuchMod if there were none.
func (e *Engine) DisableMod(ctx context.Context, name string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	live, err := e.findMod(name)
	if err != nil {
		return 0, err
	}
	if len(live) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoSuchMod, name)
	}
	for _, archiveName := range archivesOf(live) {
		if err := e.checkConsistent(archiveName); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, ent := range slices.Backward(live) {
		if err := e.disable(ctx, ent); err != nil {
			return n, fmt.Errorf("disable %s: %w", ent.Key, err)
		}
		n++
	}
	e.log().InfoContext(ctx, "disabled mod", "mod", name, "entries", n)
	return n, nil
}

// findMod returns the live entries recorded under name in apply order.
func (e *Engine) findMod(name string) ([]ledger.Entry, error) {
	archives, err := e.ledger.Archives()
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	var out []ledger.Entry
	for _, archiveName := range archives {
		entries, err := e.ledger.AllForArchive(archiveName)
		if err != nil {
			return nil, fmt.Errorf("list entries of %s: %w", archiveName, err)
		}
		for _, ent := range entries {
			if ledger.SameMod(ent.ModName, name) {
				out = append(out, ent)
			}
		}
	}
	ledger.SortEntries(out)
	return out, nil
}

// ModInfo summarizes one enabled mod.
type ModInfo struct {
	Name      string
	Entries   int
	Archives  []string
	AppliedAt time.Time
}

// Mods lists enabled mods ordered by when they were first applied.
func (e *Engine) Mods() ([]ModInfo, error) {
	archives, err := e.ledger.Archives()
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	var all []ledger.Entry
	for _, archiveName := range archives {
		entries, err := e.ledger.AllForArchive(archiveName)
		if err != nil {
			return nil, fmt.Errorf("list entries of %s: %w", archiveName, err)
		}
		all = append(all, entries...)
	}
	ledger.SortEntries(all)

	var mods []ModInfo
	index := make(map[string]int)
	for _, ent := range all {
		id := strings.ToLower(strings.TrimSpace(ent.ModName))
		i, ok := index[id]
		if !ok {
			i = len(mods)
			index[id] = i
			mods = append(mods, ModInfo{Name: ent.ModName, AppliedAt: ent.AppliedAt})
		}
		mods[i].Entries++
		if !slices.Contains(mods[i].Archives, ent.Archive) {
			mods[i].Archives = append(mods[i].Archives, ent.Archive)
		}
	}
	for i := range mods {
		slices.Sort(mods[i].Archives)
	}
	return mods, nil
}

func archivesOf(entries []ledger.Entry) []string {
	var out []string
	for _, ent := range entries {
		if !slices.Contains(out, ent.Archive) {
			out = append(out, ent.Archive)
		}
	}
	return out
}
