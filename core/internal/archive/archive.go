// Package archive performs the raw file mutations on an archive pair: blob
// appends and truncation, and fixed-size index record reads and writes.
//
// Index files are patched in place; they are never rewritten or extended.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const filePerm = 0o644

// ErrOutOfBounds is returned when a record range lies outside its file.
var ErrOutOfBounds = errors.New("archive: range out of bounds")

// AlignUp rounds n up to the next multiple of align.
func AlignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	if r := n % align; r != 0 {
		return n + align - r
	}
	return n
}

// Length returns the current size of the file at path.
func Length(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%s: not a regular file", path)
	}
	return info.Size(), nil
}

// Append writes zero padding up to the next multiple of align followed by
// data. It returns the offset data landed at and the length the blob had
// before the call.
//
// When the write fails the blob is truncated back to its previous length.
func Append(path string, data []byte, align int64) (offset, prevLen int64, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, filePerm) //nolint:gosec // path comes from the archive resolver
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	prevLen = info.Size()
	offset = AlignUp(prevLen, align)

	buf := make([]byte, int(offset-prevLen)+len(data))
	copy(buf[offset-prevLen:], data)
	if _, err = f.WriteAt(buf, prevLen); err != nil {
		_ = f.Truncate(prevLen) //nolint:errcheck // best-effort rollback
		return 0, prevLen, err
	}
	if err = f.Sync(); err != nil {
		_ = f.Truncate(prevLen) //nolint:errcheck // best-effort rollback
		return 0, prevLen, err
	}
	return offset, prevLen, nil
}

// Truncate shrinks the file at path to size. Files already at or below
// size are left alone; the returned bool reports whether bytes were cut.
func Truncate(path string, size int64) (bool, error) {
	cur, err := Length(path)
	if err != nil {
		return false, err
	}
	if cur <= size {
		return false, nil
	}
	if err := os.Truncate(path, size); err != nil {
		return false, err
	}
	return true, nil
}

// ReadAt reads exactly n bytes at off.
func ReadAt(path string, off int64, n int) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the archive resolver
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if off < 0 || n < 0 || off+int64(n) > info.Size() {
		return nil, fmt.Errorf("%w: [%d,%d) in %d-byte file", ErrOutOfBounds, off, off+int64(n), info.Size())
	}

	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

// WriteAt overwrites len(b) bytes at off. The range must already exist.
func WriteAt(path string, off int64, b []byte) (err error) {
	f, err := os.OpenFile(path, os.O_RDWR, filePerm) //nolint:gosec // path comes from the archive resolver
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if off < 0 || off+int64(len(b)) > info.Size() {
		return fmt.Errorf("%w: [%d,%d) in %d-byte file", ErrOutOfBounds, off, off+int64(len(b)), info.Size())
	}
	if _, err = f.WriteAt(b, off); err != nil {
		return err
	}
	return f.Sync()
}
