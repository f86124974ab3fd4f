// Package codec classifies payload bytes by compression format.
//
// The probe only answers "does this look compressed"; it never inflates a
// whole payload. It feeds the anomaly log when an index record's compression
// flag disagrees with the data it points at.
package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Format is a detected payload encoding.
type Format int

const (
	// Plain data matched no known compressed format.
	Plain Format = iota
	// Zlib data starts with a valid zlib stream.
	Zlib
	// Zstd data starts with a zstd frame magic.
	Zstd
)

func (f Format) String() string {
	switch f {
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	default:
		return "plain"
	}
}

// Compressed reports whether f is a compressed format.
func (f Format) Compressed() bool {
	return f != Plain
}

// probeLen bounds how much output the trial inflate produces.
const probeLen = 64

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Detect classifies data. A zlib verdict requires a valid header and a
// trial inflate that yields output without a stream error.
func Detect(data []byte) Format {
	if bytes.HasPrefix(data, zstdMagic) {
		return Zstd
	}
	if looksZlib(data) {
		return Zlib
	}
	return Plain
}

// HasZlibHeader reports whether data begins with a deflate zlib header.
func HasZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	if cmf&0x0F != 8 || cmf>>4 > 7 {
		return false
	}
	return (uint16(cmf)<<8|uint16(flg))%31 == 0
}

func looksZlib(data []byte) bool {
	if !HasZlibHeader(data) {
		return false
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return false
	}
	defer zr.Close()

	n, err := io.ReadFull(zr, make([]byte, probeLen))
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		// Short streams are fine as long as they produced output.
		return n > 0
	default:
		return false
	}
}
