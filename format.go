package seqfile

// format.go defines the on-disk layout shared by Writer and Reader.
//
// Header:
//
//	magic "SEQ" | version:1 | keyType:str | valueType:str |
//	compressed:1 | blockCompressed:1 | [codec:str] |
//	metadataCount:varint | {key:str value:str}* | syncMarker:16
//
// where str is a varint length followed by the bytes, and metadata entries
// are written in sorted key order.
//
// Record (CompressionNone, CompressionRecord):
//
//	recordLength:u32 | keyLength:u32 | key | value
//
// Block (CompressionBlock):
//
//	escape:u32 | syncMarker:16 | recordCount:varint |
//	4 x {compressedLength:varint | compressed column}
//
// with the columns holding key lengths (varints), keys, value lengths
// (varints) and values. Fixed-width integers are big-endian.

import (
	"slices"
	"strings"

	"github.com/aalhour/seqfile/internal/encoding"
)

const (
	magic = "SEQ"

	// Version is the format version written into new files.
	Version byte = 6

	// SyncMarkerSize is the size of the per-file sync marker.
	SyncMarkerSize = 16

	// syncEscape precedes every sync marker in the record stream. It can
	// never be a valid record length.
	syncEscape uint32 = 0xFFFFFFFF

	// syncFrameSize is the size of an escape plus marker.
	syncFrameSize = 4 + SyncMarkerSize

	// recordHeaderSize is the size of the two length fields of a record.
	recordHeaderSize = 8

	// DefaultSyncInterval is the minimum number of bytes between sync
	// markers in record-framed files.
	DefaultSyncInterval = 100 * syncFrameSize

	// DefaultBlockSize is the uncompressed size at which a block is flushed.
	DefaultBlockSize = 1_000_000
)

// CompressionType selects how records are stored.
type CompressionType int

const (
	// CompressionNone stores keys and values as-is.
	CompressionNone CompressionType = iota
	// CompressionRecord compresses each value independently.
	CompressionRecord
	// CompressionBlock buffers records and compresses them column-wise.
	CompressionBlock
)

// String returns the name of the compression type.
func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "NONE"
	case CompressionRecord:
		return "RECORD"
	case CompressionBlock:
		return "BLOCK"
	default:
		return "UNKNOWN"
	}
}

// ParseCompressionType parses NONE, RECORD or BLOCK, ignoring case.
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToUpper(s) {
	case "NONE":
		return CompressionNone, nil
	case "RECORD":
		return CompressionRecord, nil
	case "BLOCK":
		return CompressionBlock, nil
	}
	return CompressionNone, configf("seqfile: unknown compression type %q", s)
}

func (c CompressionType) valid() bool {
	return c >= CompressionNone && c <= CompressionBlock
}

// Metadata is the string mapping stored in a file header.
type Metadata map[string]string

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// header is the decoded form of a file header.
type header struct {
	version     byte
	keyType     string
	valueType   string
	compression CompressionType
	codec       string
	metadata    Metadata
	sync        SyncMarker
}

// appendTo appends the encoded header to dst.
func (h *header) appendTo(dst []byte) []byte {
	dst = append(dst, magic...)
	dst = append(dst, h.version)
	dst = encoding.AppendLengthPrefixedString(dst, h.keyType)
	dst = encoding.AppendLengthPrefixedString(dst, h.valueType)
	dst = append(dst, boolByte(h.compression != CompressionNone))
	dst = append(dst, boolByte(h.compression == CompressionBlock))
	if h.compression != CompressionNone {
		dst = encoding.AppendLengthPrefixedString(dst, h.codec)
	}
	dst = encoding.AppendVarint64(dst, uint64(len(h.metadata)))
	for _, k := range h.metadata.Keys() {
		dst = encoding.AppendLengthPrefixedString(dst, k)
		dst = encoding.AppendLengthPrefixedString(dst, h.metadata[k])
	}
	return append(dst, h.sync[:]...)
}

// decodeHeader reads a header from the start of in.
func decodeHeader(in *input) (*header, error) {
	var fixed [len(magic) + 1]byte
	if err := in.readFull(fixed[:]); err != nil {
		return nil, in.frameErr(err, "header")
	}
	if string(fixed[:len(magic)]) != magic {
		return nil, corruptionf("seqfile: bad magic %q, not a sequence file", fixed[:len(magic)])
	}
	h := &header{version: fixed[len(magic)]}
	if h.version != Version {
		return nil, corruptionf("seqfile: unsupported version %d (want %d)", h.version, Version)
	}

	var err error
	if h.keyType, err = in.readString("key type"); err != nil {
		return nil, err
	}
	if h.valueType, err = in.readString("value type"); err != nil {
		return nil, err
	}
	compressed, err := in.readBool("compressed flag")
	if err != nil {
		return nil, err
	}
	block, err := in.readBool("block flag")
	if err != nil {
		return nil, err
	}
	switch {
	case block && !compressed:
		return nil, corruptionf("seqfile: block compression flag set without compression")
	case block:
		h.compression = CompressionBlock
	case compressed:
		h.compression = CompressionRecord
	}
	if compressed {
		if h.codec, err = in.readString("codec"); err != nil {
			return nil, err
		}
	}

	count, err := in.readUvarint("metadata count")
	if err != nil {
		return nil, err
	}
	// Each entry takes at least two bytes.
	if count > uint64(in.remaining())/2 {
		return nil, truncatedf("seqfile: metadata count %d exceeds remaining %d bytes", count, in.remaining())
	}
	if count > 0 {
		h.metadata = make(Metadata, count)
	}
	for i := uint64(0); i < count; i++ {
		k, err := in.readString("metadata key")
		if err != nil {
			return nil, err
		}
		v, err := in.readString("metadata value")
		if err != nil {
			return nil, err
		}
		h.metadata[k] = v
	}

	if err := in.readFull(h.sync[:]); err != nil {
		return nil, in.frameErr(err, "header sync marker")
	}
	return h, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
