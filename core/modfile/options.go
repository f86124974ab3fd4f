package modfile

import "github.com/aldnoah/modkit/core/taildata"

// DefaultMaxDecodedSize caps the decompressed body of a zstd mod file.
const DefaultMaxDecodedSize = 4 << 30 // 4 GiB

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	codec          taildata.Codec
	legacyKind     Kind
	maxDecodedSize uint64
}

func defaultParseConfig() parseConfig {
	return parseConfig{
		codec:          taildata.LittleEndian,
		legacyKind:     KindPackage,
		maxDecodedSize: DefaultMaxDecodedSize,
	}
}

// WithTaildataCodec sets the codec used to decode entry trailers.
func WithTaildataCodec(c taildata.Codec) ParseOption {
	return func(cfg *parseConfig) {
		cfg.codec = c
	}
}

// WithLegacyKind sets the kind assumed for legacy files, which do not record
// it. Legacy tools told the kinds apart by file extension. Defaults to
// KindPackage, which accepts any entry count.
func WithLegacyKind(k Kind) ParseOption {
	return func(cfg *parseConfig) {
		cfg.legacyKind = k
	}
}

// WithMaxDecodedSize limits the decompressed size of zstd bodies.
// Set limit to 0 to use DefaultMaxDecodedSize.
func WithMaxDecodedSize(limit uint64) ParseOption {
	return func(cfg *parseConfig) {
		if limit == 0 {
			limit = DefaultMaxDecodedSize
		}
		cfg.maxDecodedSize = limit
	}
}

// EncodeOption configures Encode.
type EncodeOption func(*encodeConfig)

type encodeConfig struct {
	codec taildata.Codec
	zstd  bool
}

// WithZstd compresses the body with zstd.
func WithZstd() EncodeOption {
	return func(cfg *encodeConfig) {
		cfg.zstd = true
	}
}

// WithEncodeTaildataCodec sets the codec used to encode entry trailers.
func WithEncodeTaildataCodec(c taildata.Codec) EncodeOption {
	return func(cfg *encodeConfig) {
		cfg.codec = c
	}
}
