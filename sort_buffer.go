package seqfile

import (
	"slices"

	"github.com/aalhour/seqfile/internal/compression"
)

// sortRecordOverhead is the per-record cost counted against the sort
// memory budget in addition to the key and value bytes. It is the size of a
// sortEntry.
const sortRecordOverhead = 40

// sortEntry locates one record in the sort buffer's arena.
type sortEntry struct {
	keyOff, keyLen int
	valOff, valLen int
	codec          int // index into sortBuffer.codecs, -1 if uncompressed
}

// sortBuffer accumulates raw records in a single byte arena so that a
// buffer of many records costs a handful of allocations. The capacity of
// the arena plus the entry index never exceeds limit.
type sortBuffer struct {
	arena   []byte
	entries []sortEntry
	codecs  []compression.Codec
	limit   int64
	value   ValueBytes
}

func newSortBuffer(limit int64) *sortBuffer {
	return &sortBuffer{limit: limit}
}

func recordCost(rec *RawRecord) int64 {
	return int64(len(rec.Key)+rec.Value.Size()) + sortRecordOverhead
}

// footprint is the memory held by the arena and the entry index.
func (b *sortBuffer) footprint() int64 {
	return int64(cap(b.arena)) + int64(cap(b.entries))*sortRecordOverhead
}

// projected is the footprint after adding rec without spare capacity.
func (b *sortBuffer) projected(rec *RawRecord) int64 {
	arena := max(cap(b.arena), len(b.arena)+len(rec.Key)+rec.Value.Size())
	entries := max(cap(b.entries), len(b.entries)+1)
	return int64(arena) + int64(entries)*sortRecordOverhead
}

// fits reports whether rec can be added without exceeding the budget. An
// empty buffer accepts any record whose cost is within the budget.
func (b *sortBuffer) fits(rec *RawRecord) bool {
	if len(b.entries) == 0 {
		return recordCost(rec) <= b.limit
	}
	return b.projected(rec) <= b.limit
}

// add appends rec. It must only be called after fits returned true.
func (b *sortBuffer) add(rec *RawRecord) {
	if b.projected(rec) > b.limit {
		// Empty, but holding capacity from earlier runs.
		b.arena, b.entries = nil, nil
	}
	spare := b.limit - b.projected(rec)
	n := len(rec.Key) + rec.Value.Size()
	if need := len(b.arena) + n; need > cap(b.arena) {
		c := min(max(2*cap(b.arena), need), need+int(spare))
		spare -= int64(c - need)
		b.arena = append(make([]byte, 0, c), b.arena...)
	}
	if len(b.entries) == cap(b.entries) {
		c := min(max(2*cap(b.entries), 16), len(b.entries)+1+int(spare/sortRecordOverhead))
		b.entries = append(make([]sortEntry, 0, c), b.entries...)
	}

	e := sortEntry{
		keyOff: len(b.arena),
		keyLen: len(rec.Key),
		codec:  -1,
	}
	b.arena = append(b.arena, rec.Key...)
	e.valOff = len(b.arena)
	e.valLen = rec.Value.Size()
	b.arena = append(b.arena, rec.Value.Bytes()...)
	if rec.Value.Compressed() {
		e.codec = b.codecIndex(rec.Value.codec)
	}
	b.entries = append(b.entries, e)
}

func (b *sortBuffer) codecIndex(c compression.Codec) int {
	for i, known := range b.codecs {
		if known.Name() == c.Name() {
			return i
		}
	}
	b.codecs = append(b.codecs, c)
	return len(b.codecs) - 1
}

func (b *sortBuffer) len() int { return len(b.entries) }

func (b *sortBuffer) key(e sortEntry) []byte {
	return b.arena[e.keyOff : e.keyOff+e.keyLen]
}

// sort orders the entries by key. Equal keys keep insertion order.
func (b *sortBuffer) sort(cmp Comparator) {
	slices.SortStableFunc(b.entries, func(x, y sortEntry) int {
		return cmp(b.key(x), b.key(y))
	})
}

// writeTo hands the entries, in their current order, to out.
func (b *sortBuffer) writeTo(out recordSink) error {
	for _, e := range b.entries {
		b.value.data = b.arena[e.valOff : e.valOff+e.valLen]
		b.value.codec = nil
		if e.codec >= 0 {
			b.value.codec = b.codecs[e.codec]
		}
		if err := out.add(b.key(e), &b.value); err != nil {
			return err
		}
	}
	return out.finish()
}

func (b *sortBuffer) reset() {
	b.arena = b.arena[:0]
	b.entries = b.entries[:0]
	b.value.data = nil
}
