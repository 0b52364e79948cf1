// Package testutil provides deterministic test data and expected-state
// oracles for sequence file tests.
//
// DatumGenerator produces seeded key/value byte strings whose lengths follow
// a log-uniform distribution between 11 and 1009 bytes, so that a few
// thousand records fill a one megabyte sort buffer several times over.
// Replaying a generator with the same seed yields the same records, which is
// how readers, sorters and mergers are checked against what was written.
package testutil

import (
	"math"
	"math/rand"
)

const (
	minDatumLen = 10
	// Lengths are minDatumLen + 10^(3u) for u uniform in [0, 1).
	datumLenDecades = 3.0
)

// Datum is one generated key/value pair.
type Datum struct {
	Key   []byte
	Value []byte
}

// DatumGenerator generates a reproducible sequence of records.
// It is not safe for concurrent use.
type DatumGenerator struct {
	rng   *rand.Rand
	key   []byte
	value []byte
}

// NewDatumGenerator returns a generator seeded with seed.
func NewDatumGenerator(seed int64) *DatumGenerator {
	return &DatumGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Next generates the next key and value.
func (g *DatumGenerator) Next() {
	g.key = g.datum(g.key)
	g.value = g.datum(g.value)
}

// Key returns the current key. The slice is reused by the next call to Next.
func (g *DatumGenerator) Key() []byte { return g.key }

// Value returns the current value. The slice is reused by the next call to
// Next.
func (g *DatumGenerator) Value() []byte { return g.value }

// Datum returns a copy of the current record.
func (g *DatumGenerator) Datum() Datum {
	return Datum{
		Key:   append([]byte(nil), g.key...),
		Value: append([]byte(nil), g.value...),
	}
}

func (g *DatumGenerator) datum(buf []byte) []byte {
	n := minDatumLen + int(math.Pow(10, g.rng.Float64()*datumLenDecades))
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	g.rng.Read(buf)
	return buf
}

// Generate returns the first count records produced by seed.
func Generate(seed int64, count int) []Datum {
	g := NewDatumGenerator(seed)
	out := make([]Datum, count)
	for i := range out {
		g.Next()
		out[i] = g.Datum()
	}
	return out
}
