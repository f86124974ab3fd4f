package modfile

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

func compress(body []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(body, make([]byte, 0, len(body)/2)), nil
}

func decompress(body []byte, limit uint64) ([]byte, error) {
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd body: %v", ErrMalformed, err)
	}
	return out, nil
}
