// Package testutil builds archive pairs and ledgers for tests.
package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aldnoah/modkit/core/ledger"
	"github.com/aldnoah/modkit/core/modfile"
	"github.com/aldnoah/modkit/core/record"
	"github.com/aldnoah/modkit/core/taildata"
)

// DefaultLayout returns a resolved 16-byte layout of four 32-bit fields.
func DefaultLayout() record.Layout {
	l, err := record.Layout{
		Fields:     []string{"Offset", "Size", "Compressed_Size", "Compression_Marker"},
		FieldWidth: 4,
	}.Resolve()
	if err != nil {
		panic(err)
	}
	return l
}

// Pair is an index file and blob written to disk.
type Pair struct {
	Name      string
	IndexPath string
	BlobPath  string
	Layout    record.Layout
	Records   int
}

// NewPair writes an index of n records and a blob of blobLen bytes under
// dir. Record i points at offset i*0x40 with size 0x20.
func NewPair(tb testing.TB, dir, name string, layout record.Layout, n, blobLen int) *Pair {
	tb.Helper()
	layout, err := layout.Resolve()
	if err != nil {
		tb.Fatalf("resolve layout: %v", err)
	}

	index := make([]byte, 0, n*layout.EntrySize)
	for i := range n {
		rec, err := layout.Patch(make([]byte, layout.EntrySize), record.Record{
			Offset: uint64(i) * 0x40 << layout.ShiftBits,
			Size:   0x20,
		})
		if err != nil {
			tb.Fatalf("build record %d: %v", i, err)
		}
		index = append(index, rec...)
	}

	blob := make([]byte, blobLen)
	for i := range blob {
		blob[i] = byte(i % 251)
	}

	p := &Pair{
		Name:      name,
		IndexPath: filepath.Join(dir, name+".idx"),
		BlobPath:  filepath.Join(dir, name+".bin"),
		Layout:    layout,
		Records:   n,
	}
	if err := os.WriteFile(p.IndexPath, index, 0o644); err != nil {
		tb.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(p.BlobPath, blob, 0o644); err != nil {
		tb.Fatalf("write blob: %v", err)
	}
	return p
}

// RecordOffset returns the index file offset of record i.
func (p *Pair) RecordOffset(i int) uint32 {
	return uint32(i * p.Layout.EntrySize) //nolint:gosec // test sizes are small
}

// RecordBytes returns the raw bytes of record i.
func (p *Pair) RecordBytes(tb testing.TB, i int) []byte {
	tb.Helper()
	data, err := os.ReadFile(p.IndexPath)
	if err != nil {
		tb.Fatalf("read index: %v", err)
	}
	off := i * p.Layout.EntrySize
	return data[off : off+p.Layout.EntrySize]
}

// Record returns the decoded record i.
func (p *Pair) Record(tb testing.TB, i int) record.Record {
	tb.Helper()
	r, err := p.Layout.Decode(p.RecordBytes(tb, i))
	if err != nil {
		tb.Fatalf("decode record %d: %v", i, err)
	}
	return r
}

// Index returns the whole index file.
func (p *Pair) Index(tb testing.TB) []byte {
	tb.Helper()
	data, err := os.ReadFile(p.IndexPath)
	if err != nil {
		tb.Fatalf("read index: %v", err)
	}
	return data
}

// Blob returns the whole blob file.
func (p *Pair) Blob(tb testing.TB) []byte {
	tb.Helper()
	data, err := os.ReadFile(p.BlobPath)
	if err != nil {
		tb.Fatalf("read blob: %v", err)
	}
	return data
}

// BlobLen returns the blob length.
func (p *Pair) BlobLen(tb testing.TB) int64 {
	tb.Helper()
	info, err := os.Stat(p.BlobPath)
	if err != nil {
		tb.Fatalf("stat blob: %v", err)
	}
	return info.Size()
}

// Entry returns a payload entry targeting record i of an index with the
// given marker.
func (p *Pair) Entry(marker uint8, i int, data []byte, comp uint8) modfile.Entry {
	return modfile.Entry{
		Data: data,
		Tail: taildata.Taildata{
			IdxMarker:      marker,
			IdxEntryOffset: p.RecordOffset(i),
			CompMarker:     comp,
		},
	}
}

// Data returns n bytes filled with seed.
func Data(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%7)
	}
	return b
}

// MockLedger wraps an in-memory ledger and fails selected operations.
type MockLedger struct {
	*ledger.Memory

	mu         sync.Mutex
	failRecord error
	failRemove error
	failMark   error
}

// NewMockLedger returns a MockLedger that fails nothing.
func NewMockLedger() *MockLedger {
	return &MockLedger{Memory: ledger.NewMemory()}
}

// FailRecord makes every Record call return err. Nil restores normal behavior.
func (m *MockLedger) FailRecord(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRecord = err
}

// FailRemove makes every Remove call return err.
func (m *MockLedger) FailRemove(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRemove = err
}

// FailMark makes every MarkInconsistent call return err.
func (m *MockLedger) FailMark(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failMark = err
}

func (m *MockLedger) Record(e ledger.Entry) error {
	m.mu.Lock()
	err := m.failRecord
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Memory.Record(e)
}

func (m *MockLedger) Remove(k ledger.Key) error {
	m.mu.Lock()
	err := m.failRemove
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Memory.Remove(k)
}

func (m *MockLedger) MarkInconsistent(archive, reason string) error {
	m.mu.Lock()
	err := m.failMark
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.Memory.MarkInconsistent(archive, reason)
}

var _ ledger.Ledger = (*MockLedger)(nil)
