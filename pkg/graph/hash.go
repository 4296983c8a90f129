package graph

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// HashWriter accumulates a 64-bit content hash over a little-endian encoding
// of its inputs. Field order matters; callers must write fields in a fixed
// order for the hash to be stable across runs and platforms.
type HashWriter struct {
	d   *xxhash.Digest
	buf [8]byte
}

// NewHashWriter returns an empty writer.
func NewHashWriter() *HashWriter {
	return &HashWriter{d: xxhash.New()}
}

func (w *HashWriter) Uint8(v uint8) *HashWriter {
	w.buf[0] = v
	_, _ = w.d.Write(w.buf[:1])
	return w
}

func (w *HashWriter) Uint32(v uint32) *HashWriter {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	_, _ = w.d.Write(w.buf[:4])
	return w
}

func (w *HashWriter) Uint64(v uint64) *HashWriter {
	binary.LittleEndian.PutUint64(w.buf[:], v)
	_, _ = w.d.Write(w.buf[:])
	return w
}

func (w *HashWriter) Int(v int) *HashWriter {
	return w.Uint64(uint64(int64(v)))
}

func (w *HashWriter) Bool(v bool) *HashWriter {
	if v {
		return w.Uint8(1)
	}
	return w.Uint8(0)
}

// Float64 writes f with -0 folded to +0 and all NaNs folded to one pattern.
func (w *HashWriter) Float64(f float64) *HashWriter {
	switch {
	case f == 0:
		f = 0
	case math.IsNaN(f):
		f = math.NaN()
	}
	return w.Uint64(math.Float64bits(f))
}

func (w *HashWriter) Vec(v v3.Vec) *HashWriter {
	return w.Float64(v.X).Float64(v.Y).Float64(v.Z)
}

func (w *HashWriter) String(s string) *HashWriter {
	w.Int(len(s))
	_, _ = w.d.WriteString(s)
	return w
}

// Sum returns the hash of everything written so far.
func (w *HashWriter) Sum() uint64 { return w.d.Sum64() }

// Combine hashes an ordered sequence of hashes into one.
func Combine(hashes ...uint64) uint64 {
	w := NewHashWriter()
	for _, h := range hashes {
		w.Uint64(h)
	}
	return w.Sum()
}
