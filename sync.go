package seqfile

import (
	"encoding/hex"
	"os"
	"sync/atomic"
	"time"

	"github.com/aalhour/seqfile/internal/encoding"
	"github.com/zeebo/xxh3"
)

// SyncMarker is the 16-byte value that identifies resynchronization points
// within one file.
type SyncMarker [SyncMarkerSize]byte

// String returns the marker in hex.
func (m SyncMarker) String() string {
	return hex.EncodeToString(m[:])
}

var syncSeq atomic.Uint64

// NewSyncMarker returns a marker unique to this process, time and call.
// Record data is not escaped, so a key or value may contain the marker; see
// Reader.SeekToSync.
func NewSyncMarker() SyncMarker {
	var seed [24]byte
	encoding.PutUint64(seed[0:], uint64(time.Now().UnixNano()))
	encoding.PutUint64(seed[8:], uint64(os.Getpid()))
	encoding.PutUint64(seed[16:], syncSeq.Add(1))
	return SyncMarkerFor(seed[:])
}

// SyncMarkerFor derives a marker from seed. Files written with the same
// marker, options and records are byte-identical.
func SyncMarkerFor(seed []byte) SyncMarker {
	h := xxh3.Hash128(seed)
	var m SyncMarker
	encoding.PutUint64(m[0:], h.Hi)
	encoding.PutUint64(m[8:], h.Lo)
	return m
}

// frame returns the escape followed by the marker.
func (m SyncMarker) frame() [syncFrameSize]byte {
	var f [syncFrameSize]byte
	encoding.PutUint32(f[:4], syncEscape)
	copy(f[4:], m[:])
	return f
}
