package modkit

import (
	"errors"
	"fmt"

	"github.com/aldnoah/modkit/core/internal/archive"
	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/record"
	"github.com/aldnoah/modkit/core/taildata"
)

// PatchPlan is the computed effect of applying one payload entry. Building
// a plan reads the archive pair but never mutates it.
type PatchPlan struct {
	Key    ledger.Key
	Target Target

	// IndexRecordOffset is where the record lives in the index file.
	IndexRecordOffset int64
	// NewBinOffset is where the data will be appended in the blob.
	NewBinOffset int64
	NewSize      uint64
	NewFlag      uint64

	// Original is the record before patching and OriginalRecord its raw
	// bytes; PatchedRecord is the replacement.
	Original       ledger.Snapshot
	OriginalRecord []byte
	PatchedRecord  []byte

	// OriginalBinLength is the blob length the append starts from.
	OriginalBinLength int64

	Data []byte
}

// Padding returns the number of zero bytes written before the data.
func (p *PatchPlan) Padding() int64 {
	return p.NewBinOffset - p.OriginalBinLength
}

// Plan computes the patch for entry without touching any file.
func (e *Engine) Plan(entry modfile.Entry) (*PatchPlan, error) {
	target, err := e.resolve(entry.Tail.IdxMarker)
	if err != nil {
		return nil, err
	}
	return e.plan(target, entry)
}

func (e *Engine) resolve(marker uint8) (Target, error) {
	target, err := e.resolver.Resolve(marker)
	if err != nil {
		return Target{}, &ArchiveError{
			Archive: fmt.Sprintf("marker %d", marker),
			Op:      "resolve",
			Err:     fmt.Errorf("%w: %v", ErrUnknownMarker, err),
		}
	}
	target.Archive = NormalizeArchive(target.Archive)
	if target.Archive == "" || target.IndexPath == "" || target.BlobPath == "" {
		return Target{}, &ArchiveError{
			Archive: fmt.Sprintf("marker %d", marker),
			Op:      "resolve",
			Err:     fmt.Errorf("%w: incomplete target %+v", ErrUnknownMarker, target),
		}
	}
	if target.BlobName == "" {
		target.BlobName = target.BlobPath
	}
	return target, nil
}

func (e *Engine) plan(target Target, entry modfile.Entry) (*PatchPlan, error) {
	layout := target.Layout
	key := ledger.Key{
		Archive:     target.Archive,
		IdxMarker:   entry.Tail.IdxMarker,
		EntryOffset: entry.Tail.IdxEntryOffset,
	}

	// Taildata is an untrusted pointer: the record must exist in full.
	recOff := int64(entry.Tail.IdxEntryOffset)
	raw, err := archive.ReadAt(target.IndexPath, recOff, layout.EntrySize)
	if err != nil {
		return nil, &ArchiveError{Archive: target.Archive, Path: target.IndexPath, Op: "read record " + key.String(), Err: err}
	}
	current, err := layout.Decode(raw)
	if err != nil {
		return nil, &ArchiveError{Archive: target.Archive, Path: target.IndexPath, Op: "decode record " + key.String(), Err: err}
	}

	binLen, err := archive.Length(target.BlobPath)
	if err != nil {
		return nil, &ArchiveError{Archive: target.Archive, Path: target.BlobPath, Op: "stat blob", Err: err}
	}
	newOff := archive.AlignUp(binLen, layout.Alignment())

	newFlag := uint64(entry.Tail.CompMarker)
	if e.forceUncompressed {
		newFlag = uint64(taildata.MarkerPlain)
	}

	patched, err := layout.Patch(raw, record.Record{
		Offset: uint64(newOff), //nolint:gosec // file lengths are non-negative
		Size:   uint64(len(entry.Data)),
		Flag:   newFlag,
	})
	if err != nil {
		if errors.Is(err, record.ErrFieldOverflow) {
			return nil, fmt.Errorf("%w: %s: %v", ErrFieldOverflow, key, err)
		}
		return nil, fmt.Errorf("patch record %s: %w", key, err)
	}

	return &PatchPlan{
		Key:               key,
		Target:            target,
		IndexRecordOffset: recOff,
		NewBinOffset:      newOff,
		NewSize:           uint64(len(entry.Data)),
		NewFlag:           newFlag,
		Original: ledger.Snapshot{
			Offset: current.Offset,
			Size:   current.Size,
			Flag:   current.Flag,
		},
		OriginalRecord:    raw,
		PatchedRecord:     patched,
		OriginalBinLength: binLen,
		Data:              entry.Data,
	}, nil
}
