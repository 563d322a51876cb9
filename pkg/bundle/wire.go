package bundle

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/bazhenovc/malwerks-sub001/pkg/bakeerr"
)

// writer emits the little-endian framing. The first error is sticky and all
// later writes are no-ops.
type writer struct {
	w       *bufio.Writer
	err     error
	level   uint32
	scratch [8]byte
}

func newWriter(w io.Writer, level uint32) *writer {
	return &writer{w: bufio.NewWriterSize(w, 1<<16), level: level}
}

func (w *writer) raw(b []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.err = bakeerr.Wrap(bakeerr.KindIO, err, "writing bundle")
	}
}

func (w *writer) u8(v uint8) {
	w.scratch[0] = v
	w.raw(w.scratch[:1])
}

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	w.raw(w.scratch[:4])
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	w.raw(w.scratch[:8])
}

func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) vec3(v [3]float32) {
	for _, f := range v {
		w.f32(f)
	}
}

func (w *writer) length(n int) {
	w.u64(uint64(n))
}

func (w *writer) bytes(b []byte) {
	w.length(len(b))
	w.raw(b)
}

func (w *writer) str(s string) {
	w.length(len(s))
	if w.err == nil {
		if _, err := w.w.WriteString(s); err != nil {
			w.err = bakeerr.Wrap(bakeerr.KindIO, err, "writing bundle")
		}
	}
}

func (w *writer) words(words []uint32) {
	w.length(len(words))
	for _, word := range words {
		w.u32(word)
	}
}

func (w *writer) optional(o OptionalIndex) {
	w.boolean(o.Valid)
	if o.Valid {
		w.u32(o.Index)
	}
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		return bakeerr.Wrap(bakeerr.KindIO, err, "flushing bundle")
	}
	return nil
}

// reader decodes the framing from an in-memory buffer. Lengths are checked
// against the remaining input before anything is allocated.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = bakeerr.New(bakeerr.KindDecode, "offset %d: %s", r.pos, fmt.Sprintf(format, args...))
	}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data)-r.pos {
		r.fail("need %d bytes, %d remaining", n, len(r.data)-r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) boolean() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("invalid bool byte %d", v)
		return false
	}
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) vec3() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}

// length reads a sequence length whose elements occupy at least minSize bytes each.
func (r *reader) length(minSize int) int {
	n := r.u64()
	if r.err != nil {
		return 0
	}
	remaining := uint64(len(r.data) - r.pos)
	if minSize > 0 && n > remaining/uint64(minSize) {
		r.fail("sequence of %d elements exceeds remaining %d bytes", n, remaining)
		return 0
	}
	if minSize == 0 && n > remaining {
		r.fail("sequence of %d elements exceeds remaining %d bytes", n, remaining)
		return 0
	}
	return int(n)
}

func (r *reader) bytes() []byte {
	n := r.length(1)
	b := r.take(n)
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *reader) str() string {
	n := r.length(1)
	return string(r.take(n))
}

func (r *reader) words() []uint32 {
	n := r.length(4)
	if r.err != nil || n == 0 {
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = r.u32()
	}
	return out
}

// readSeq reads a length-prefixed sequence. Empty sequences decode as nil.
func readSeq[T any](r *reader, minSize int, read func() T) []T {
	n := r.length(minSize)
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, read())
	}
	return out
}

func writeSeq[T any](w *writer, items []T, write func(*T)) {
	w.length(len(items))
	for i := range items {
		write(&items[i])
	}
}

func (r *reader) optional() OptionalIndex {
	if !r.boolean() {
		return None
	}
	return Some(r.u32())
}

func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.pos != len(r.data) {
		return bakeerr.New(bakeerr.KindDecode, "%d trailing bytes", len(r.data)-r.pos)
	}
	return nil
}
