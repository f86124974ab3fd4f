package modkit

import (
	"context"
	"log/slog"
)

// AnomalyKind classifies a non-fatal observation about an archive pair.
type AnomalyKind string

// Anomaly kinds.
const (
	// AnomalyFlagCompressedDataPlain: the new flag says compressed but the
	// payload does not look compressed.
	AnomalyFlagCompressedDataPlain AnomalyKind = "flag-compressed-data-plain"
	// AnomalyFlagPlainDataCompressed: the new flag says plain but the
	// payload carries a compression header.
	AnomalyFlagPlainDataCompressed AnomalyKind = "flag-plain-data-compressed"
	// AnomalyRecordMismatch: an index record no longer holds the values
	// the ledger says were written.
	AnomalyRecordMismatch AnomalyKind = "record-mismatch"
	// AnomalyBlobShort: a blob is shorter than a live entry's data end.
	AnomalyBlobShort AnomalyKind = "blob-short"
	// AnomalyOrphanedBytes: appended data stays in a blob after its entry
	// was disabled.
	AnomalyOrphanedBytes AnomalyKind = "orphaned-bytes"
	// AnomalyFieldMissing: the layout lacks a field the patch would set.
	AnomalyFieldMissing AnomalyKind = "field-missing"
	// AnomalyDigestMismatch: appended bytes no longer hash to the
	// recorded digest.
	AnomalyDigestMismatch AnomalyKind = "digest-mismatch"
	// AnomalyInconsistent: the archive carries an inconsistency flag.
	AnomalyInconsistent AnomalyKind = "inconsistent"
)

// Anomaly is one finding reported by Apply, Disable or Verify.
type Anomaly struct {
	Kind        AnomalyKind
	Archive     string
	IdxMarker   uint8
	EntryOffset uint32
	Detail      string
}

func (e *Engine) anomalyLog() *slog.Logger {
	if e.anomalies != nil {
		return e.anomalies
	}
	return e.log()
}

func (e *Engine) report(ctx context.Context, a Anomaly) {
	e.anomalyLog().LogAttrs(ctx, slog.LevelWarn, "anomaly",
		slog.String("kind", string(a.Kind)),
		slog.String("archive", a.Archive),
		slog.Int("marker", int(a.IdxMarker)),
		slog.String("entry_offset", hex32(a.EntryOffset)),
		slog.String("detail", a.Detail),
	)
}
