package modkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/aldnoah/modkit/core/codec"
	"github.com/aldnoah/modkit/core/internal/archive"
	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/record"
)

const defaultVerifyConcurrency = 4

// Engine applies and disables payload entries against archive pairs.
//
// Mutations are ordered so the ledger stays the source of truth: the blob
// append happens first, then the ledger record, then the index write. An
// Engine serializes its own operations; callers must not run a second
// Engine against the same files.
type Engine struct {
	resolver Resolver
	ledger   ledger.Ledger

	logger            *slog.Logger
	anomalies         *slog.Logger
	forceUncompressed bool
	verifyConcurrency int
	now               func() time.Time

	// writeRecord overwrites index records in place.
	writeRecord func(path string, off int64, b []byte) error

	mu sync.Mutex
}

// NewEngine returns an Engine resolving markers with resolver and keeping
// its bookkeeping in l.
func NewEngine(resolver Resolver, l ledger.Ledger, opts ...EngineOption) (*Engine, error) {
	if resolver == nil {
		return nil, errors.New("modkit: nil resolver")
	}
	if l == nil {
		return nil, errors.New("modkit: nil ledger")
	}
	e := &Engine{
		resolver:          resolver,
		ledger:            l,
		verifyConcurrency: defaultVerifyConcurrency,
		now:               func() time.Time { return time.Now().UTC() },
		writeRecord:       archive.WriteAt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// Ledger returns the ledger the engine records into.
func (e *Engine) Ledger() ledger.Ledger {
	return e.ledger
}

// ApplyResult describes one applied entry.
type ApplyResult struct {
	Key  ledger.Key
	Blob string
	// Offset is where the data landed; Padding is the number of zero bytes
	// written before it.
	Offset    int64
	Padding   int64
	Size      uint64
	Flag      uint64
	Digest    digest.Digest
	Anomalies []Anomaly
}

// Apply appends entry's data to its blob and repoints the index record at
// it, recording the change under modName.
//
// It fails with ErrAlreadyApplied if the record is already patched,
// ErrArchiveAccess if the archive pair cannot be read or written, and
// ErrInconsistentLedgerState if a partial failure could not be rolled back.
func (e *Engine) Apply(ctx context.Context, modName string, entry modfile.Entry) (*ApplyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(ctx, modName, entry)
}

func (e *Engine) apply(ctx context.Context, modName string, entry modfile.Entry) (*ApplyResult, error) {
	target, err := e.resolve(entry.Tail.IdxMarker)
	if err != nil {
		return nil, err
	}
	if err := e.checkConsistent(target.Archive); err != nil {
		return nil, err
	}
	key := ledger.Key{Archive: target.Archive, IdxMarker: entry.Tail.IdxMarker, EntryOffset: entry.Tail.IdxEntryOffset}
	if prev, err := e.ledger.Lookup(key); err == nil {
		return nil, fmt.Errorf("%w: %s by %q", ErrAlreadyApplied, key, prev.ModName)
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s: %w", key, err)
	}
	if prev, ok, err := e.liveOnRecord(target, key); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s is the record of %s by %q", ErrAlreadyApplied, key, prev.Key, prev.ModName)
	}

	plan, err := e.plan(target, entry)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, modName, plan)
}

// liveOnRecord finds a live entry that patched the same index record as key
// under a different marker. Markers that share one index file address the
// same records.
func (e *Engine) liveOnRecord(target Target, key ledger.Key) (ledger.Entry, bool, error) {
	entries, err := e.ledger.AllForArchive(target.Archive)
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("list entries of %s: %w", target.Archive, err)
	}
	for _, ent := range entries {
		if ent.EntryOffset != key.EntryOffset || ent.IdxMarker == key.IdxMarker {
			continue
		}
		other, err := e.resolve(ent.IdxMarker)
		if err != nil || other.IndexPath == target.IndexPath {
			return ent, true, nil
		}
	}
	return ledger.Entry{}, false, nil
}

func (e *Engine) execute(ctx context.Context, modName string, plan *PatchPlan) (*ApplyResult, error) {
	target := plan.Target
	key := plan.Key
	anomalies := e.probe(ctx, plan)

	off, prevLen, err := archive.Append(target.BlobPath, plan.Data, target.Layout.Alignment())
	if err != nil {
		return nil, &ArchiveError{Archive: target.Archive, Path: target.BlobPath, Op: "append blob", Err: err}
	}
	if off != plan.NewBinOffset {
		// The blob changed between planning and appending.
		if _, terr := archive.Truncate(target.BlobPath, prevLen); terr != nil {
			return nil, e.markInconsistent(ctx, target.Archive, "blob changed during apply and could not be truncated", terr)
		}
		return nil, &ArchiveError{
			Archive: target.Archive, Path: target.BlobPath, Op: "append blob",
			Err: fmt.Errorf("planned offset %d, appended at %d", plan.NewBinOffset, off),
		}
	}

	sum := digest.FromBytes(plan.Data)
	le := ledger.Entry{
		Key:            key,
		Blob:           target.BlobName,
		ModName:        modName,
		Original:       plan.Original,
		OriginalRecord: plan.OriginalRecord,
		Patched: ledger.Snapshot{
			Offset: uint64(off), //nolint:gosec // file offsets are non-negative
			Size:   plan.NewSize,
			Flag:   plan.NewFlag,
		},
		OriginalBinLength: uint64(prevLen), //nolint:gosec // file lengths are non-negative
		DataDigest:        sum,
		AppliedAt:         e.now(),
	}
	if err := e.ledger.Record(le); err != nil {
		if _, terr := archive.Truncate(target.BlobPath, prevLen); terr != nil {
			return nil, e.markInconsistent(ctx, target.Archive, "ledger record failed and blob could not be truncated", err, terr)
		}
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateActiveEntry, key)
		}
		return nil, fmt.Errorf("record %s: %w", key, err)
	}

	if err := e.writeRecord(target.IndexPath, plan.IndexRecordOffset, plan.PatchedRecord); err != nil {
		werr := &ArchiveError{Archive: target.Archive, Path: target.IndexPath, Op: "write record " + key.String(), Err: err}
		if rerr := e.rollbackApply(plan, prevLen); rerr != nil {
			return nil, e.markInconsistent(ctx, target.Archive, "index write failed and rollback failed", werr, rerr)
		}
		return nil, werr
	}

	e.log().InfoContext(ctx, "applied entry",
		"key", key.String(),
		"mod", modName,
		"blob", target.BlobName,
		"offset", off,
		"size", plan.NewSize,
		"padding", off-prevLen)

	return &ApplyResult{
		Key:       key,
		Blob:      target.BlobName,
		Offset:    off,
		Padding:   off - prevLen,
		Size:      plan.NewSize,
		Flag:      plan.NewFlag,
		Digest:    sum,
		Anomalies: anomalies,
	}, nil
}

// rollbackApply undoes an apply whose index write failed.
func (e *Engine) rollbackApply(plan *PatchPlan, prevLen int64) error {
	var errs []error
	if err := e.writeRecord(plan.Target.IndexPath, plan.IndexRecordOffset, plan.OriginalRecord); err != nil {
		cur, rerr := archive.ReadAt(plan.Target.IndexPath, plan.IndexRecordOffset, len(plan.OriginalRecord))
		if rerr != nil || !bytes.Equal(cur, plan.OriginalRecord) {
			errs = append(errs, fmt.Errorf("restore record: %w", err))
		}
	}
	if err := e.ledger.Remove(plan.Key); err != nil {
		errs = append(errs, fmt.Errorf("remove ledger entry: %w", err))
	}
	if _, err := archive.Truncate(plan.Target.BlobPath, prevLen); err != nil {
		errs = append(errs, fmt.Errorf("truncate blob: %w", err))
	}
	return errors.Join(errs...)
}

// probe checks the payload against its flag and the layout.
func (e *Engine) probe(ctx context.Context, plan *PatchPlan) []Anomaly {
	var out []Anomaly
	add := func(kind AnomalyKind, detail string) {
		a := Anomaly{
			Kind:        kind,
			Archive:     plan.Key.Archive,
			IdxMarker:   plan.Key.IdxMarker,
			EntryOffset: plan.Key.EntryOffset,
			Detail:      detail,
		}
		e.report(ctx, a)
		out = append(out, a)
	}

	format := codec.Detect(plan.Data)
	switch {
	case plan.NewFlag != 0 && !format.Compressed():
		add(AnomalyFlagCompressedDataPlain, fmt.Sprintf("flag %d but data looks %s", plan.NewFlag, format))
	case plan.NewFlag == 0 && format.Compressed():
		add(AnomalyFlagPlainDataCompressed, fmt.Sprintf("flag 0 but data looks %s", format))
	}
	if plan.NewFlag != 0 && !plan.Target.Layout.HasFlag() {
		add(AnomalyFieldMissing, fmt.Sprintf("layout has no flag field for flag %d", plan.NewFlag))
	}
	return out
}

func (e *Engine) checkConsistent(archiveName string) error {
	st, ok, err := e.ledger.Inconsistent(archiveName)
	if err != nil {
		return fmt.Errorf("read state of %s: %w", archiveName, err)
	}
	if ok {
		return inconsistentError(archiveName, st.Reason)
	}
	return nil
}

// markInconsistent persists the flag for archiveName and returns the error
// reported to the caller.
func (e *Engine) markInconsistent(ctx context.Context, archiveName, reason string, causes ...error) error {
	if err := e.ledger.MarkInconsistent(archiveName, reason); err != nil {
		causes = append(causes, fmt.Errorf("persist flag: %w", err))
	}
	e.log().ErrorContext(ctx, "archive marked inconsistent",
		"archive", archiveName,
		"reason", reason,
		"error", errors.Join(causes...))
	return inconsistentError(archiveName, reason, causes...)
}

// ClearInconsistent removes the inconsistency flag from an archive once it
// has been reconciled by hand.
func (e *Engine) ClearInconsistent(ctx context.Context, archiveName string) error {
	archiveName = NormalizeArchive(archiveName)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.ClearInconsistent(archiveName); err != nil {
		return fmt.Errorf("clear state of %s: %w", archiveName, err)
	}
	e.log().InfoContext(ctx, "inconsistency flag cleared", "archive", archiveName)
	return nil
}

// Disable restores the index record for key to its pre-apply value and
// drops the ledger entry. The appended bytes stay in the blob until
// DisableAll truncates it.
func (e *Engine) Disable(ctx context.Context, key ledger.Key) error {
	key.Archive = NormalizeArchive(key.Archive)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkConsistent(key.Archive); err != nil {
		return err
	}
	ent, err := e.ledger.Lookup(key)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNoSuchMod, key)
		}
		return fmt.Errorf("lookup %s: %w", key, err)
	}
	return e.disable(ctx, ent)
}

func (e *Engine) disable(ctx context.Context, ent ledger.Entry) error {
	target, err := e.targetFor(ent.Key)
	if err != nil {
		return err
	}
	if err := e.restore(ctx, target, ent); err != nil {
		return err
	}
	if err := e.ledger.Remove(ent.Key); err != nil {
		return e.markInconsistent(ctx, ent.Archive, "record restored but ledger entry "+ent.Key.String()+" not removed", err)
	}

	e.log().InfoContext(ctx, "disabled entry", "key", ent.Key.String(), "mod", ent.ModName)
	e.report(ctx, Anomaly{
		Kind:        AnomalyOrphanedBytes,
		Archive:     ent.Archive,
		IdxMarker:   ent.IdxMarker,
		EntryOffset: ent.EntryOffset,
		Detail:      fmt.Sprintf("%d bytes at 0x%X remain in %s until disable-all", ent.Patched.Size, ent.Patched.Offset, ent.Blob),
	})
	return nil
}

// targetFor resolves the target of a ledger key and checks it still names
// the same archive.
func (e *Engine) targetFor(key ledger.Key) (Target, error) {
	target, err := e.resolve(key.IdxMarker)
	if err != nil {
		return Target{}, err
	}
	if target.Archive != key.Archive {
		return Target{}, &ArchiveError{
			Archive: key.Archive,
			Op:      "resolve",
			Err:     fmt.Errorf("%w: marker %d now resolves to %q", ErrUnknownMarker, key.IdxMarker, target.Archive),
		}
	}
	return target, nil
}

// restore writes an entry's original record back into the index.
func (e *Engine) restore(ctx context.Context, target Target, ent ledger.Entry) error {
	layout := target.Layout
	off := int64(ent.EntryOffset)
	if len(ent.OriginalRecord) != layout.EntrySize {
		return &ArchiveError{
			Archive: target.Archive, Path: target.IndexPath, Op: "restore record " + ent.Key.String(),
			Err: fmt.Errorf("saved record is %d bytes, layout entry is %d", len(ent.OriginalRecord), layout.EntrySize),
		}
	}
	current, err := archive.ReadAt(target.IndexPath, off, layout.EntrySize)
	if err != nil {
		return &ArchiveError{Archive: target.Archive, Path: target.IndexPath, Op: "read record " + ent.Key.String(), Err: err}
	}
	if detail, ok := recordMismatch(layout, ent, current); !ok {
		e.report(ctx, Anomaly{
			Kind:        AnomalyRecordMismatch,
			Archive:     ent.Archive,
			IdxMarker:   ent.IdxMarker,
			EntryOffset: ent.EntryOffset,
			Detail:      detail,
		})
	}
	if err := e.writeRecord(target.IndexPath, off, ent.OriginalRecord); err != nil {
		return &ArchiveError{Archive: target.Archive, Path: target.IndexPath, Op: "restore record " + ent.Key.String(), Err: err}
	}
	return nil
}

// recordMismatch reports whether current still holds the bytes the apply
// wrote. When it does not, detail describes the difference.
func recordMismatch(layout record.Layout, ent ledger.Entry, current []byte) (detail string, ok bool) {
	want, err := layout.Patch(ent.OriginalRecord, record.Record{
		Offset: ent.Patched.Offset,
		Size:   ent.Patched.Size,
		Flag:   ent.Patched.Flag,
	})
	if err != nil {
		return fmt.Sprintf("cannot rebuild patched record: %v", err), false
	}
	if bytes.Equal(current, want) {
		return "", true
	}
	got, err := layout.Decode(current)
	if err != nil {
		return fmt.Sprintf("cannot decode record: %v", err), false
	}
	return fmt.Sprintf("record holds offset=0x%X size=%d flag=%d, ledger expects offset=0x%X size=%d flag=%d",
		got.Offset, got.Size, got.Flag, ent.Patched.Offset, ent.Patched.Size, ent.Patched.Flag), false
}

// DisableAll restores every live entry of an archive and truncates each of
// its blobs to the smallest pre-apply length recorded for it. An archive
// with no live entries is left untouched. A failure after the first record
// was restored marks the archive inconsistent.
func (e *Engine) DisableAll(ctx context.Context, archiveName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disableAll(ctx, NormalizeArchive(archiveName))
}

func (e *Engine) disableAll(ctx context.Context, archiveName string) error {
	if err := e.checkConsistent(archiveName); err != nil {
		return err
	}
	entries, err := e.ledger.AllForArchive(archiveName)
	if err != nil {
		return fmt.Errorf("list entries of %s: %w", archiveName, err)
	}
	if len(entries) == 0 {
		e.log().DebugContext(ctx, "nothing to disable", "archive", archiveName)
		return nil
	}

	type blobState struct {
		path   string
		name   string
		minLen uint64
	}
	var blobs []*blobState
	byPath := make(map[string]*blobState)

	// Newest first, mirroring apply order.
	restored := 0
	for _, ent := range slices.Backward(entries) {
		target, err := e.targetFor(ent.Key)
		if err == nil {
			err = e.restore(ctx, target, ent)
		}
		if err != nil {
			if restored > 0 {
				return e.markInconsistent(ctx, archiveName, fmt.Sprintf("%d records restored before %s failed", restored, ent.Key), err)
			}
			return err
		}
		restored++
		b, ok := byPath[target.BlobPath]
		if !ok {
			b = &blobState{path: target.BlobPath, name: target.BlobName, minLen: ent.OriginalBinLength}
			byPath[target.BlobPath] = b
			blobs = append(blobs, b)
		}
		b.minLen = min(b.minLen, ent.OriginalBinLength)
	}

	for _, b := range blobs {
		cut, err := archive.Truncate(b.path, int64(b.minLen)) //nolint:gosec // lengths come from stat
		if err != nil {
			return e.markInconsistent(ctx, archiveName, "records restored but blob "+b.name+" not truncated",
				&ArchiveError{Archive: archiveName, Path: b.path, Op: "truncate blob", Err: err})
		}
		e.log().InfoContext(ctx, "truncated blob", "archive", archiveName, "blob", b.name, "length", b.minLen, "changed", cut)
	}

	var errs []error
	for _, ent := range entries {
		if err := e.ledger.Remove(ent.Key); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", ent.Key, err))
		}
	}
	if len(errs) > 0 {
		return e.markInconsistent(ctx, archiveName, "files restored but ledger entries not removed", errs...)
	}
	e.log().InfoContext(ctx, "disabled all entries", "archive", archiveName, "entries", len(entries))
	return nil
}

// Entries returns the live entries of an archive in apply order.
func (e *Engine) Entries(archiveName string) ([]ledger.Entry, error) {
	archiveName = NormalizeArchive(archiveName)
	entries, err := e.ledger.AllForArchive(archiveName)
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", archiveName, err)
	}
	return entries, nil
}

// Archives returns the archives the ledger knows about.
func (e *Engine) Archives() ([]string, error) {
	names, err := e.ledger.Archives()
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	return names, nil
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}
