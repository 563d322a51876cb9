package bundle

import (
	"github.com/pierrec/lz4/v4"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
)

// DefaultCompressionLevel is the LZ4 level used when none is configured.
const DefaultCompressionLevel = 9

var compressionLevels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1,
	lz4.Level2,
	lz4.Level3,
	lz4.Level4,
	lz4.Level5,
	lz4.Level6,
	lz4.Level7,
	lz4.Level8,
	lz4.Level9,
}

// lz4Level maps a 0..9 level onto the library's levels; larger values clamp to 9.
func lz4Level(level uint32) lz4.CompressionLevel {
	if int(level) >= len(compressionLevels) {
		return compressionLevels[len(compressionLevels)-1]
	}
	return compressionLevels[level]
}

// compress returns the LZ4 block holding src. Level 0 uses the fast
// compressor, higher levels the HC one at the mapped depth.
func compress(src []byte, level uint32) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	var (
		n   int
		err error
	)
	if depth := lz4Level(level); depth == lz4.Fast {
		n, err = lz4.CompressBlock(src, dst, nil)
	} else {
		n, err = lz4.CompressBlockHC(src, dst, depth, nil, nil)
	}
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindIO, err, "lz4 encoding %d bytes", len(src))
	}
	if n == 0 {
		return nil, bakeerr.New(bakeerr.KindIO, "lz4 produced no block for %d bytes", len(src))
	}
	return dst[:n], nil
}

// decompress expands an LZ4 block that must hold exactly size bytes.
func decompress(block []byte, size int) ([]byte, error) {
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(block, out)
	if err != nil {
		return nil, bakeerr.Wrap(bakeerr.KindDecode, err, "lz4 decoding %d bytes", size)
	}
	if n != size {
		return nil, bakeerr.New(bakeerr.KindDecode, "lz4 block holds %d bytes, want %d", n, size)
	}
	return out, nil
}

// lz4Bytes writes an LZ4-wrapped byte field: raw length, then the block.
func (w *writer) lz4Bytes(b []byte) {
	if w.err != nil {
		return
	}
	w.length(len(b))
	if len(b) == 0 {
		w.bytes(nil)
		return
	}
	block, err := compress(b, w.level)
	if err != nil {
		w.err = err
		return
	}
	w.bytes(block)
}

func (r *reader) lz4Bytes() []byte {
	size := r.u64()
	block := r.bytes()
	if r.err != nil {
		return nil
	}
	if size == 0 {
		if len(block) != 0 {
			r.fail("lz4 payload for empty field")
		}
		return nil
	}
	// LZ4 expands by at most ~255x, anything beyond is corrupt.
	if size > uint64(len(block))*255+64 {
		r.fail("lz4 field claims %d bytes from %d byte block", size, len(block))
		return nil
	}
	out, err := decompress(block, int(size))
	if err != nil {
		r.err = err
		return nil
	}
	return out
}
