package modkit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/aldnoah/modkit/core/internal/archive"
	"github.com/aldnoah/modkit/core/ledger"
)

// VerifyReport lists what Verify found.
type VerifyReport struct {
	Archives int
	Entries  int
	Findings []Anomaly
}

// OK reports whether nothing was found.
func (r *VerifyReport) OK() bool {
	return len(r.Findings) == 0
}

// Verify cross-checks every live ledger entry against the archive files.
// It detects records changed behind the ledger's back, blobs cut short,
// appended data that no longer matches its digest and archives flagged
// inconsistent. Nothing is repaired.
func (e *Engine) Verify(ctx context.Context) (*VerifyReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	archives, err := e.ledger.Archives()
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}

	results := make([][]Anomaly, len(archives))
	counts := make([]int, len(archives))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.verifyConcurrency)
	for i, name := range archives {
		g.Go(func() error {
			found, n, err := e.verifyArchive(gctx, name)
			if err != nil {
				return fmt.Errorf("verify %s: %w", name, err)
			}
			results[i] = found
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &VerifyReport{Archives: len(archives)}
	for i := range archives {
		report.Entries += counts[i]
		report.Findings = append(report.Findings, results[i]...)
	}
	for _, a := range report.Findings {
		e.report(ctx, a)
	}
	e.log().InfoContext(ctx, "verify finished",
		"archives", report.Archives,
		"entries", report.Entries,
		"findings", len(report.Findings))
	return report, nil
}

func (e *Engine) verifyArchive(ctx context.Context, name string) ([]Anomaly, int, error) {
	var found []Anomaly
	st, flagged, err := e.ledger.Inconsistent(name)
	if err != nil {
		return nil, 0, err
	}
	if flagged {
		found = append(found, Anomaly{Kind: AnomalyInconsistent, Archive: name, Detail: st.Reason})
	}

	entries, err := e.ledger.AllForArchive(name)
	if err != nil {
		return nil, 0, err
	}
	for _, ent := range entries {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		a, err := e.verifyEntry(ent)
		if err != nil {
			return nil, 0, err
		}
		found = append(found, a...)
	}
	return found, len(entries), nil
}

func (e *Engine) verifyEntry(ent ledger.Entry) ([]Anomaly, error) {
	var found []Anomaly
	add := func(kind AnomalyKind, detail string) {
		found = append(found, Anomaly{
			Kind:        kind,
			Archive:     ent.Archive,
			IdxMarker:   ent.IdxMarker,
			EntryOffset: ent.EntryOffset,
			Detail:      detail,
		})
	}

	target, err := e.targetFor(ent.Key)
	if err != nil {
		return nil, err
	}

	current, err := archive.ReadAt(target.IndexPath, int64(ent.EntryOffset), target.Layout.EntrySize)
	if err != nil {
		add(AnomalyRecordMismatch, fmt.Sprintf("record unreadable: %v", err))
	} else if detail, ok := recordMismatch(target.Layout, ent, current); !ok {
		add(AnomalyRecordMismatch, detail)
	}

	blobLen, err := archive.Length(target.BlobPath)
	if err != nil {
		return nil, &ArchiveError{Archive: target.Archive, Path: target.BlobPath, Op: "stat blob", Err: err}
	}
	if uint64(blobLen) < ent.End() { //nolint:gosec // lengths are non-negative
		add(AnomalyBlobShort, fmt.Sprintf("blob is %d bytes, entry ends at %d", blobLen, ent.End()))
		return found, nil
	}

	if ent.DataDigest == "" {
		return found, nil
	}
	if err := ent.DataDigest.Validate(); err != nil {
		add(AnomalyDigestMismatch, fmt.Sprintf("ledger digest unusable: %v", err))
		return found, nil
	}
	data, err := archive.ReadAt(target.BlobPath, int64(ent.Patched.Offset), int(ent.Patched.Size)) //nolint:gosec // bounded by the length check above
	if err != nil {
		return nil, &ArchiveError{Archive: target.Archive, Path: target.BlobPath, Op: "read data", Err: err}
	}
	if got := ent.DataDigest.Algorithm().FromBytes(data); got != ent.DataDigest {
		add(AnomalyDigestMismatch, fmt.Sprintf("data hashes to %s, ledger has %s", got, ent.DataDigest))
	}
	return found, nil
}
