package modkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/record"
	"github.com/aldnoah/modkit/core/testutil"
)

type fixture struct {
	pair      *testutil.Pair
	ledger    *testutil.MockLedger
	engine    *Engine
	anomalies *bytes.Buffer
	origIndex []byte
	origBlob  []byte
}

func newFixture(t *testing.T, layout record.Layout, blobLen int, opts ...EngineOption) *fixture {
	t.Helper()
	dir := t.TempDir()
	pair := testutil.NewPair(t, dir, "data0", layout, 8, blobLen)
	l := testutil.NewMockLedger()
	resolver := ResolverFunc(func(marker uint8) (Target, error) {
		if marker != 0 {
			return Target{}, fmt.Errorf("marker %d not configured", marker)
		}
		return Target{
			Archive:   pair.Name,
			IndexPath: pair.IndexPath,
			BlobName:  "data0.bin",
			BlobPath:  pair.BlobPath,
			Layout:    pair.Layout,
		}, nil
	})

	var buf bytes.Buffer
	opts = append([]EngineOption{WithAnomalyLogger(slog.New(slog.NewTextHandler(&buf, nil)))}, opts...)
	e, err := NewEngine(resolver, l, opts...)
	require.NoError(t, err)

	return &fixture{
		pair:      pair,
		ledger:    l,
		engine:    e,
		anomalies: &buf,
		origIndex: pair.Index(t),
		origBlob:  pair.Blob(t),
	}
}

func (f *fixture) key(i int) ledger.Key {
	return ledger.Key{Archive: f.pair.Name, IdxMarker: 0, EntryOffset: f.pair.RecordOffset(i)}
}

func (f *fixture) assertPristine(t *testing.T) {
	t.Helper()
	assert.Equal(t, f.origIndex, f.pair.Index(t), "index changed")
	assert.Equal(t, f.origBlob, f.pair.Blob(t), "blob changed")
}

func TestApplyDisableAllScenario(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	a := testutil.Data(50, 0x41)
	resA, err := f.engine.Apply(ctx, "Mod A", f.pair.Entry(0, 0, a, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1008), resA.Offset)
	assert.Equal(t, int64(8), resA.Padding)
	assert.Equal(t, int64(1058), f.pair.BlobLen(t))

	entA, err := f.ledger.Lookup(f.key(0))
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), entA.OriginalBinLength)
	assert.Equal(t, ledger.Snapshot{Offset: 0, Size: 0x20, Flag: 0}, entA.Original)
	assert.Equal(t, "Mod A", entA.ModName)

	b := testutil.Data(10, 0x61)
	resB, err := f.engine.Apply(ctx, "Mod B", f.pair.Entry(0, 1, b, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1072), resB.Offset)
	assert.Equal(t, int64(1082), f.pair.BlobLen(t))

	entB, err := f.ledger.Lookup(f.key(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1058), entB.OriginalBinLength)

	rec := f.pair.Record(t, 0)
	assert.Equal(t, record.Record{Offset: 1008, Size: 50, CompressedSize: 50, Flag: 0}, rec)
	blob := f.pair.Blob(t)
	assert.Equal(t, a, blob[1008:1058])
	assert.Equal(t, make([]byte, 8), blob[1000:1008], "padding must be zero")
	assert.Equal(t, b, blob[1072:1082])

	require.NoError(t, f.engine.DisableAll(ctx, f.pair.Name))
	f.assertPristine(t)

	entries, err := f.engine.Entries(f.pair.Name)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDisableAllIdempotent(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	require.NoError(t, f.engine.DisableAll(ctx, f.pair.Name))
	f.assertPristine(t)

	_, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 2, testutil.Data(33, 0x41), 0))
	require.NoError(t, err)
	require.NoError(t, f.engine.DisableAll(ctx, f.pair.Name))
	require.NoError(t, f.engine.DisableAll(ctx, f.pair.Name))
	f.assertPristine(t)
}

func TestArchiveNamesNormalized(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 1, testutil.Data(20, 0x41), 0))
	require.NoError(t, err)
	_, err = f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 2, testutil.Data(20, 0x42), 0))
	require.NoError(t, err)

	entries, err := f.engine.Entries("/data0")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	key := f.key(2)
	key.Archive = `.\data0`
	require.NoError(t, f.engine.Disable(ctx, key))

	require.NoError(t, f.engine.DisableAll(ctx, "data0/"))
	f.assertPristine(t)
}

func TestResolverArchiveNameNormalized(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	raw := `LINKDATA\data0.idx`
	e, err := NewEngine(ResolverFunc(func(uint8) (Target, error) {
		return Target{Archive: raw, IndexPath: f.pair.IndexPath, BlobPath: f.pair.BlobPath, Layout: f.pair.Layout}, nil
	}), f.ledger)
	require.NoError(t, err)

	res, err := e.Apply(ctx, "Mod", f.pair.Entry(0, 0, testutil.Data(20, 0x41), 0))
	require.NoError(t, err)
	assert.Equal(t, "LINKDATA/data0.idx", res.Key.Archive)
	_, err = e.Apply(ctx, "Mod", f.pair.Entry(0, 1, testutil.Data(20, 0x42), 0))
	require.NoError(t, err)

	require.NoError(t, e.Disable(ctx, ledger.Key{Archive: raw, EntryOffset: f.pair.RecordOffset(0)}))
	require.NoError(t, e.DisableAll(ctx, raw))
	f.assertPristine(t)

	archives, err := e.Archives()
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestDisableAllSizeOrderIndependent(t *testing.T) {
	sizes := [][]int{
		{300, 5, 77},
		{5, 77, 300},
		{77, 300, 5},
	}
	for _, order := range sizes {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			f := newFixture(t, testutil.DefaultLayout(), 1000)
			ctx := context.Background()
			for i, n := range order {
				_, err := f.engine.Apply(ctx, fmt.Sprintf("Mod %d", i), f.pair.Entry(0, i, testutil.Data(n, 0x41), 0))
				require.NoError(t, err)
			}
			require.NoError(t, f.engine.DisableAll(ctx, f.pair.Name))
			f.assertPristine(t)
		})
	}
}

func TestApplyRejectsDoubleApply(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, "First", f.pair.Entry(0, 0, testutil.Data(20, 0x41), 0))
	require.NoError(t, err)
	length := f.pair.BlobLen(t)
	index := f.pair.Index(t)

	_, err = f.engine.Apply(ctx, "Second", f.pair.Entry(0, 0, testutil.Data(40, 0x61), 0))
	require.ErrorIs(t, err, ErrAlreadyApplied)
	assert.Equal(t, length, f.pair.BlobLen(t))
	assert.Equal(t, index, f.pair.Index(t))
}

func TestDisableRestoresRecordAndKeepsBytes(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 3, testutil.Data(50, 0x41), 0))
	require.NoError(t, err)

	require.NoError(t, f.engine.Disable(ctx, f.key(3)))
	assert.Equal(t, f.origIndex, f.pair.Index(t))
	assert.Equal(t, int64(1058), f.pair.BlobLen(t), "single disable leaves appended bytes")
	assert.Contains(t, f.anomalies.String(), string(AnomalyOrphanedBytes))

	_, err = f.ledger.Lookup(f.key(3))
	require.ErrorIs(t, err, ledger.ErrNotFound)

	err = f.engine.Disable(ctx, f.key(3))
	require.ErrorIs(t, err, ErrNoSuchMod)

	// Re-applying after disable is allowed and appends again.
	res, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 3, testutil.Data(10, 0x41), 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1072), res.Offset)
}

func TestDisableReportsRecordMismatch(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0))
	require.NoError(t, err)

	// Something else rewrote the record.
	idx := f.pair.Index(t)
	idx[4] = 0x77
	require.NoError(t, os.WriteFile(f.pair.IndexPath, idx, 0o644))

	require.NoError(t, f.engine.Disable(ctx, f.key(0)))
	assert.Contains(t, f.anomalies.String(), string(AnomalyRecordMismatch))
	assert.Equal(t, f.origIndex, f.pair.Index(t))
}

func TestApplyUnknownMarker(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)

	_, err := f.engine.Apply(context.Background(), "Mod", f.pair.Entry(9, 0, testutil.Data(10, 0x41), 0))
	require.ErrorIs(t, err, ErrUnknownMarker)
	require.ErrorIs(t, err, ErrArchiveAccess)

	var ae *ArchiveError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "resolve", ae.Op)
	f.assertPristine(t)
}

func TestApplyRecordOutsideIndex(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)

	entry := f.pair.Entry(0, 0, testutil.Data(10, 0x41), 0)
	entry.Tail.IdxEntryOffset = f.pair.RecordOffset(f.pair.Records) - 4
	_, err := f.engine.Apply(context.Background(), "Mod", entry)
	require.ErrorIs(t, err, ErrArchiveAccess)
	f.assertPristine(t)
}

func TestApplyFieldOverflow(t *testing.T) {
	layout := testutil.DefaultLayout()
	layout.FieldWidth = 2
	layout.EntrySize = 0
	f := newFixture(t, layout, 70000)

	_, err := f.engine.Apply(context.Background(), "Mod", f.pair.Entry(0, 0, testutil.Data(10, 0x41), 0))
	require.ErrorIs(t, err, ErrFieldOverflow)
	f.assertPristine(t)
}

func TestApplyShiftedOffsets(t *testing.T) {
	layout := testutil.DefaultLayout()
	layout.ShiftBits = 11
	f := newFixture(t, layout, 1000)

	res, err := f.engine.Apply(context.Background(), "Mod", f.pair.Entry(0, 1, testutil.Data(10, 0x41), 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2048), res.Offset)
	assert.Equal(t, uint64(2048), f.pair.Record(t, 1).Offset)
	assert.Equal(t, byte(1), f.pair.RecordBytes(t, 1)[0], "stored offset is in blocks")

	require.NoError(t, f.engine.DisableAll(context.Background(), f.pair.Name))
	f.assertPristine(t)
}

func TestApplyFlag(t *testing.T) {
	zstdLike := append([]byte{0x28, 0xB5, 0x2F, 0xFD}, testutil.Data(20, 0x41)...)

	tests := []struct {
		name     string
		data     []byte
		comp     uint8
		force    bool
		wantFlag uint64
		wantKind AnomalyKind
	}{
		{name: "plain", data: testutil.Data(20, 0x41), comp: 0, wantFlag: 0},
		{name: "compressed", data: zstdLike, comp: 1, wantFlag: 1},
		{name: "flag without compression", data: testutil.Data(20, 0x41), comp: 1, wantFlag: 1, wantKind: AnomalyFlagCompressedDataPlain},
		{name: "compression without flag", data: zstdLike, comp: 0, wantFlag: 0, wantKind: AnomalyFlagPlainDataCompressed},
		{name: "forced uncompressed", data: testutil.Data(20, 0x41), comp: 1, force: true, wantFlag: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testutil.DefaultLayout(), 1000, WithForceUncompressed(tt.force))
			res, err := f.engine.Apply(context.Background(), "Mod", f.pair.Entry(0, 0, tt.data, tt.comp))
			require.NoError(t, err)
			assert.Equal(t, tt.wantFlag, res.Flag)
			assert.Equal(t, tt.wantFlag, f.pair.Record(t, 0).Flag)
			if tt.wantKind == "" {
				assert.Empty(t, res.Anomalies)
				return
			}
			require.Len(t, res.Anomalies, 1)
			assert.Equal(t, tt.wantKind, res.Anomalies[0].Kind)
			assert.Contains(t, f.anomalies.String(), string(tt.wantKind))
		})
	}
}

func TestApplyLedgerFailureRollsBackBlob(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	f.ledger.FailRecord(errors.New("disk full"))

	_, err := f.engine.Apply(context.Background(), "Mod", f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInconsistentLedgerState)
	f.assertPristine(t)

	_, flagged, err := f.ledger.Inconsistent(f.pair.Name)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestDisableLedgerFailureMarksInconsistent(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0))
	require.NoError(t, err)

	f.ledger.FailRemove(errors.New("read-only ledger"))
	err = f.engine.Disable(ctx, f.key(0))
	require.ErrorIs(t, err, ErrInconsistentLedgerState)

	st, flagged, err := f.ledger.Inconsistent(f.pair.Name)
	require.NoError(t, err)
	require.True(t, flagged)
	assert.NotEmpty(t, st.Reason)

	// The archive is blocked until the flag is cleared.
	_, err = f.engine.Apply(ctx, "Other", f.pair.Entry(0, 1, testutil.Data(5, 0x41), 0))
	require.ErrorIs(t, err, ErrInconsistentLedgerState)
	require.ErrorIs(t, f.engine.DisableAll(ctx, f.pair.Name), ErrInconsistentLedgerState)

	f.ledger.FailRemove(nil)
	require.NoError(t, f.engine.ClearInconsistent(ctx, f.pair.Name))
	require.NoError(t, f.engine.DisableAll(ctx, f.pair.Name))
	f.assertPristine(t)
}

func TestApplyIndexWriteFailureRollsBack(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	f.engine.writeRecord = func(string, int64, []byte) error { return errors.New("i/o error") }

	_, err := f.engine.Apply(context.Background(), "Mod", f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0))
	var aerr *ArchiveError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, f.pair.IndexPath, aerr.Path)
	assert.NotErrorIs(t, err, ErrInconsistentLedgerState)
	f.assertPristine(t)

	_, err = f.ledger.Lookup(f.key(0))
	require.ErrorIs(t, err, ledger.ErrNotFound)
	_, flagged, err := f.ledger.Inconsistent(f.pair.Name)
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestApplyTornIndexWriteRestoresRecord(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	calls := 0
	f.engine.writeRecord = func(path string, off int64, b []byte) error {
		calls++
		if calls == 1 {
			// Half the record reaches the disk.
			if err := os.WriteFile(path, append(f.pair.Index(t)[:off], b[:len(b)/2]...), 0o644); err != nil {
				return err
			}
			return errors.New("short write")
		}
		return os.WriteFile(path, f.origIndex, 0o644)
	}

	_, err := f.engine.Apply(context.Background(), "Mod", f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInconsistentLedgerState)
	assert.Equal(t, 2, calls)
	f.assertPristine(t)
}

func TestApplyRollbackFailureMarksInconsistent(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()
	f.engine.writeRecord = func(string, int64, []byte) error { return errors.New("i/o error") }
	f.ledger.FailRemove(errors.New("read-only ledger"))

	_, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0))
	require.ErrorIs(t, err, ErrInconsistentLedgerState)

	// The blob is cut back even though the ledger entry could not be removed.
	f.assertPristine(t)
	_, err = f.ledger.Lookup(f.key(0))
	require.NoError(t, err)

	st, flagged, err := f.ledger.Inconsistent(f.pair.Name)
	require.NoError(t, err)
	require.True(t, flagged)
	assert.Contains(t, st.Reason, "rollback failed")

	_, err = f.engine.Apply(ctx, "Other", f.pair.Entry(0, 1, testutil.Data(5, 0x41), 0))
	require.ErrorIs(t, err, ErrInconsistentLedgerState)
}

func TestDisableAllTruncateFailureMarksInconsistent(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, "Mod", f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0))
	require.NoError(t, err)
	patched := f.pair.Blob(t)

	// A directory in place of the blob cannot be truncated.
	require.NoError(t, os.Remove(f.pair.BlobPath))
	require.NoError(t, os.Mkdir(f.pair.BlobPath, 0o755))

	err = f.engine.DisableAll(ctx, f.pair.Name)
	require.ErrorIs(t, err, ErrInconsistentLedgerState)
	assert.Equal(t, f.origIndex, f.pair.Index(t), "records are restored before truncation")
	_, err = f.ledger.Lookup(f.key(0))
	require.NoError(t, err, "entries stay recorded until the blob is truncated")
	_, flagged, err := f.ledger.Inconsistent(f.pair.Name)
	require.NoError(t, err)
	require.True(t, flagged)

	require.NoError(t, os.Remove(f.pair.BlobPath))
	require.NoError(t, os.WriteFile(f.pair.BlobPath, patched, 0o644))
	require.NoError(t, f.engine.ClearInconsistent(ctx, f.pair.Name))
	require.NoError(t, f.engine.DisableAll(ctx, f.pair.Name))
	f.assertPristine(t)
}

func TestApplyMod(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	mod := &modfile.Mod{
		Meta: modfile.Meta{Name: "Armor Pack"},
		Kind: modfile.KindPackage,
		Entries: []modfile.Entry{
			f.pair.Entry(0, 0, testutil.Data(50, 0x41), 0),
			f.pair.Entry(0, 1, testutil.Data(10, 0x61), 0),
		},
	}
	report, err := f.engine.ApplyMod(ctx, mod)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Applied())
	assert.Equal(t, int64(1072), report.Results[1].Result.Offset)

	_, err = f.engine.ApplyMod(ctx, mod)
	require.ErrorIs(t, err, ErrAlreadyApplied)

	mods, err := f.engine.Mods()
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, "Armor Pack", mods[0].Name)
	assert.Equal(t, 2, mods[0].Entries)
	assert.Equal(t, []string{"data0"}, mods[0].Archives)

	n, err := f.engine.DisableMod(ctx, "armor pack")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, f.origIndex, f.pair.Index(t))

	_, err = f.engine.DisableMod(ctx, "Armor Pack")
	require.ErrorIs(t, err, ErrNoSuchMod)
}

func TestApplyModPartialSuccess(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	_, err := f.engine.Apply(ctx, "Other", f.pair.Entry(0, 1, testutil.Data(10, 0x41), 0))
	require.NoError(t, err)

	mod := &modfile.Mod{
		Meta: modfile.Meta{Name: "Pack"},
		Kind: modfile.KindPackage,
		Entries: []modfile.Entry{
			f.pair.Entry(0, 0, testutil.Data(20, 0x41), 0),
			f.pair.Entry(0, 1, testutil.Data(20, 0x61), 0),
			f.pair.Entry(0, 2, testutil.Data(20, 0x41), 0),
		},
	}
	report, err := f.engine.ApplyMod(ctx, mod)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied())
	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Index)
	require.ErrorIs(t, failed[0].Err, ErrAlreadyApplied)
	require.ErrorIs(t, report.Err(), ErrAlreadyApplied)
}

func TestApplyModValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)
	ctx := context.Background()

	tests := []struct {
		name    string
		entries []modfile.Entry
		wantErr error
	}{
		{
			name: "duplicate target",
			entries: []modfile.Entry{
				f.pair.Entry(0, 0, testutil.Data(20, 0x41), 0),
				f.pair.Entry(0, 0, testutil.Data(30, 0x41), 0),
			},
			wantErr: ErrMalformedPayload,
		},
		{
			name: "unknown marker in second entry",
			entries: []modfile.Entry{
				f.pair.Entry(0, 0, testutil.Data(20, 0x41), 0),
				f.pair.Entry(3, 1, testutil.Data(30, 0x41), 0),
			},
			wantErr: ErrUnknownMarker,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := &modfile.Mod{Meta: modfile.Meta{Name: "Bad"}, Kind: modfile.KindPackage, Entries: tt.entries}
			_, err := f.engine.ApplyMod(ctx, mod)
			require.ErrorIs(t, err, tt.wantErr)
			f.assertPristine(t)
		})
	}

	_, err := f.engine.ApplyMod(ctx, &modfile.Mod{Kind: modfile.KindSingle, Entries: []modfile.Entry{
		f.pair.Entry(0, 0, testutil.Data(20, 0x41), 0),
	}})
	require.ErrorIs(t, err, ErrMalformedPayload, "unnamed mod")
}

func TestModsOrderedByApplyTime(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	f := newFixture(t, testutil.DefaultLayout(), 1000, WithClock(clock))
	ctx := context.Background()

	for i, name := range []string{"Zeta", "Alpha", "Zeta"} {
		_, err := f.engine.Apply(ctx, name, f.pair.Entry(0, i, testutil.Data(8, 0x41), 0))
		require.NoError(t, err)
	}

	mods, err := f.engine.Mods()
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "Zeta", mods[0].Name)
	assert.Equal(t, 2, mods[0].Entries)
	assert.True(t, base.Add(time.Minute).Equal(mods[0].AppliedAt))
	assert.Equal(t, "Alpha", mods[1].Name)
}

func TestPlanDoesNotMutate(t *testing.T) {
	f := newFixture(t, testutil.DefaultLayout(), 1000)

	plan, err := f.engine.Plan(f.pair.Entry(0, 2, testutil.Data(50, 0x41), 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1008), plan.NewBinOffset)
	assert.Equal(t, int64(8), plan.Padding())
	assert.Equal(t, int64(1000), plan.OriginalBinLength)
	assert.Equal(t, uint64(1), plan.NewFlag)
	assert.Equal(t, ledger.Snapshot{Offset: 0x80, Size: 0x20}, plan.Original)
	assert.Equal(t, f.pair.RecordBytes(t, 2), plan.OriginalRecord)

	patched, err := f.pair.Layout.Decode(plan.PatchedRecord)
	require.NoError(t, err)
	assert.Equal(t, record.Record{Offset: 1008, Size: 50, CompressedSize: 50, Flag: 1}, patched)
	f.assertPristine(t)
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	_, err := NewEngine(nil, ledger.NewMemory())
	require.Error(t, err)
	_, err = NewEngine(ResolverFunc(func(uint8) (Target, error) { return Target{}, nil }), nil)
	require.Error(t, err)
}
