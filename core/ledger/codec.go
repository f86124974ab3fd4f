package ledger

import (
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/opencontainers/go-digest"

	"github.com/aldnoah/modkit/core/internal/fb"
)

// MarshalEntry encodes e as a FlatBuffers LedgerEntry.
func MarshalEntry(e *Entry) []byte {
	builder := flatbuffers.NewBuilder(256)

	archive := builder.CreateString(e.Archive)
	blob := builder.CreateString(e.Blob)
	modName := builder.CreateString(e.ModName)
	dataDigest := builder.CreateString(e.DataDigest.String())
	fb.LedgerEntryStartOriginalRecordVector(builder, len(e.OriginalRecord))
	for i := len(e.OriginalRecord) - 1; i >= 0; i-- {
		builder.PrependByte(e.OriginalRecord[i])
	}
	originalRecord := builder.EndVector(len(e.OriginalRecord))

	fb.LedgerEntryStart(builder)
	fb.LedgerEntryAddArchive(builder, archive)
	fb.LedgerEntryAddBlob(builder, blob)
	fb.LedgerEntryAddIdxMarker(builder, e.IdxMarker)
	fb.LedgerEntryAddEntryOffset(builder, e.EntryOffset)
	fb.LedgerEntryAddModName(builder, modName)
	fb.LedgerEntryAddOriginalOffset(builder, e.Original.Offset)
	fb.LedgerEntryAddOriginalSize(builder, e.Original.Size)
	fb.LedgerEntryAddOriginalFlag(builder, e.Original.Flag)
	fb.LedgerEntryAddOriginalRecord(builder, originalRecord)
	fb.LedgerEntryAddNewOffset(builder, e.Patched.Offset)
	fb.LedgerEntryAddNewSize(builder, e.Patched.Size)
	fb.LedgerEntryAddNewFlag(builder, e.Patched.Flag)
	fb.LedgerEntryAddOriginalBinLength(builder, e.OriginalBinLength)
	fb.LedgerEntryAddDataDigest(builder, dataDigest)
	if !e.AppliedAt.IsZero() {
		fb.LedgerEntryAddAppliedAtNs(builder, e.AppliedAt.UnixNano())
	}
	fb.FinishLedgerEntryBuffer(builder, fb.LedgerEntryEnd(builder))
	return builder.FinishedBytes()
}

// UnmarshalEntry decodes a buffer produced by MarshalEntry.
func UnmarshalEntry(data []byte) (e Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			e = Entry{}
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return Entry{}, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}

	root := fb.GetRootAsLedgerEntry(data, 0)
	e = Entry{
		Key: Key{
			Archive:     string(root.Archive()),
			IdxMarker:   root.IdxMarker(),
			EntryOffset: root.EntryOffset(),
		},
		Blob:    string(root.Blob()),
		ModName: string(root.ModName()),
		Original: Snapshot{
			Offset: root.OriginalOffset(),
			Size:   root.OriginalSize(),
			Flag:   root.OriginalFlag(),
		},
		OriginalRecord: append([]byte(nil), root.OriginalRecordBytes()...),
		Patched: Snapshot{
			Offset: root.NewOffset(),
			Size:   root.NewSize(),
			Flag:   root.NewFlag(),
		},
		OriginalBinLength: root.OriginalBinLength(),
	}
	if ns := root.AppliedAtNs(); ns != 0 {
		e.AppliedAt = time.Unix(0, ns).UTC()
	}
	if d := root.DataDigest(); len(d) > 0 {
		e.DataDigest = digest.Digest(d)
		if verr := e.DataDigest.Validate(); verr != nil {
			return Entry{}, fmt.Errorf("%w: data digest: %v", ErrCorrupt, verr)
		}
	}
	if e.Archive == "" {
		return Entry{}, fmt.Errorf("%w: missing archive name", ErrCorrupt)
	}
	return e, nil
}

// MarshalState encodes s as a FlatBuffers ArchiveState.
func MarshalState(s *ArchiveState) []byte {
	builder := flatbuffers.NewBuilder(128)
	archive := builder.CreateString(s.Archive)
	reason := builder.CreateString(s.Reason)
	fb.ArchiveStateStart(builder)
	fb.ArchiveStateAddArchive(builder, archive)
	fb.ArchiveStateAddReason(builder, reason)
	fb.ArchiveStateAddMarkedAtNs(builder, s.MarkedAt.UnixNano())
	fb.FinishArchiveStateBuffer(builder, fb.ArchiveStateEnd(builder))
	return builder.FinishedBytes()
}

// UnmarshalState decodes a buffer produced by MarshalState.
func UnmarshalState(data []byte) (s ArchiveState, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = ArchiveState{}
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()
	if len(data) < flatbuffers.SizeUOffsetT {
		return ArchiveState{}, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(data))
	}
	root := fb.GetRootAsArchiveState(data, 0)
	return ArchiveState{
		Archive:  string(root.Archive()),
		Reason:   string(root.Reason()),
		MarkedAt: time.Unix(0, root.MarkedAtNs()).UTC(),
	}, nil
}
