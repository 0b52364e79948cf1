package seqfile

// options.go implements writer, reader, merger and sorter configuration.

import (
	"runtime"

	"github.com/aalhour/seqfile/internal/compression"
	"github.com/aalhour/seqfile/internal/logging"
	"github.com/aalhour/seqfile/internal/serde"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
)

// Logger is an alias for the logging.Logger interface.
// This allows users to pass their own logger implementation.
type Logger = logging.Logger

// FS is an alias for the filesystem interface files are read from and
// written to.
type FS = vfs.FS

// Codec is an alias for the compression codec interface.
type Codec = compression.Codec

// Serializer is an alias for the key/value serializer interface.
type Serializer = serde.Serializer

// Serializer type tags of the built-in serializers.
const (
	BytesType  = serde.BytesType
	StringType = serde.StringType
	Int64Type  = serde.Int64Type
	Uint64Type = serde.Uint64Type
)

// Names of the built-in codecs.
const (
	CodecDeflate = compression.Deflate
	CodecGzip    = compression.Gzip
	CodecSnappy  = compression.Snappy
	CodecLZ4     = compression.LZ4
	CodecZstd    = compression.Zstd
	CodecS2      = compression.S2
)

// Comparator orders serialized keys.
type Comparator func(a, b []byte) int

// DefaultFS returns the OS filesystem.
func DefaultFS() FS { return vfs.Default() }

// NewMemFS returns an empty in-memory filesystem.
func NewMemFS() *vfs.MemFS { return vfs.NewMem() }

// WriterOptions configures a Writer.
type WriterOptions struct {
	// KeyType and ValueType are serializer type tags. Default: bytes.
	KeyType   string
	ValueType string

	// Compression selects the storage regime. Default: CompressionNone.
	Compression CompressionType

	// Codec names the compression codec. It must be empty for
	// CompressionNone and defaults to deflate otherwise.
	Codec string

	// Metadata is stored in the header.
	Metadata Metadata

	// SyncInterval is the minimum number of bytes between sync markers in
	// record-framed files. Default: DefaultSyncInterval.
	SyncInterval int

	// BlockSize is the uncompressed size at which a block is flushed.
	// Default: DefaultBlockSize.
	BlockSize int

	// BlockRecords, if positive, also flushes a block once it holds this
	// many records.
	BlockRecords int

	// SyncMarker fixes the file's marker. Default: NewSyncMarker().
	SyncMarker *SyncMarker

	// Serializers resolves type tags. Default: serde.Default().
	Serializers *serde.Registry

	// Codecs resolves codec names. Default: compression.Default().
	Codecs *compression.Registry

	// Logger receives informational messages. Default: logging.Discard.
	Logger Logger

	// Metrics, if set, is updated as records are written.
	Metrics *Metrics
}

// DefaultWriterOptions returns options for an uncompressed bytes/bytes file.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		KeyType:      serde.BytesType,
		ValueType:    serde.BytesType,
		SyncInterval: DefaultSyncInterval,
		BlockSize:    DefaultBlockSize,
	}
}

// ensureDefaults fills unset fields.
func (o *WriterOptions) ensureDefaults() {
	if o.KeyType == "" {
		o.KeyType = serde.BytesType
	}
	if o.ValueType == "" {
		o.ValueType = serde.BytesType
	}
	if o.Compression != CompressionNone && o.Codec == "" {
		o.Codec = compression.DefaultCodecName
	}
	if o.SyncInterval == 0 {
		o.SyncInterval = DefaultSyncInterval
	}
	if o.BlockSize == 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.Serializers == nil {
		o.Serializers = serde.Default()
	}
	if o.Codecs == nil {
		o.Codecs = compression.Default()
	}
	o.Logger = logging.OrDiscard(o.Logger)
}

// resolved holds the collaborators named by validated writer options.
type resolved struct {
	keySer serde.Serializer
	valSer serde.Serializer
	codec  compression.Codec
}

// validate checks the options and resolves serializers and codec. It must be
// called after ensureDefaults.
func (o *WriterOptions) validate() (resolved, error) {
	var res resolved
	if !o.Compression.valid() {
		return res, configf("seqfile: invalid compression type %d", int(o.Compression))
	}
	if o.Compression == CompressionNone && o.Codec != "" {
		return res, configf("seqfile: codec %q given for compression type NONE", o.Codec)
	}
	if o.SyncInterval < 0 {
		return res, configf("seqfile: negative sync interval %d", o.SyncInterval)
	}
	if o.BlockSize < 0 || o.BlockRecords < 0 {
		return res, configf("seqfile: negative block size %d or record limit %d", o.BlockSize, o.BlockRecords)
	}
	var err error
	if res.keySer, err = o.Serializers.Lookup(o.KeyType); err != nil {
		return res, errors.Mark(err, ErrConfig)
	}
	if res.valSer, err = o.Serializers.Lookup(o.ValueType); err != nil {
		return res, errors.Mark(err, ErrConfig)
	}
	if o.Compression != CompressionNone {
		if res.codec, err = o.Codecs.Lookup(o.Codec); err != nil {
			return res, errors.Mark(err, ErrConfig)
		}
		// Store the canonical name so aliases resolve to one spelling.
		o.Codec = res.codec.Name()
	}
	return res, nil
}

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// Serializers resolves the header's type tags. Default: serde.Default().
	Serializers *serde.Registry

	// Codecs resolves the header's codec name. Default: compression.Default().
	Codecs *compression.Registry

	// BufferSize is the read buffer size. Default: 64 KiB.
	BufferSize int

	// Logger receives informational messages. Default: logging.Discard.
	Logger Logger

	// Metrics, if set, is updated as records are read.
	Metrics *Metrics
}

const defaultReadBufferSize = 64 << 10

func (o *ReaderOptions) ensureDefaults() {
	if o.Serializers == nil {
		o.Serializers = serde.Default()
	}
	if o.Codecs == nil {
		o.Codecs = compression.Default()
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultReadBufferSize
	}
	o.Logger = logging.OrDiscard(o.Logger)
}

// MergerOptions configures a Merger. The sorter uses the same options for
// its merge passes.
type MergerOptions struct {
	// Comparator orders serialized keys. Default: the key serializer's
	// Compare.
	Comparator Comparator

	// Combiner, if set, receives every run of equal keys in the final
	// merge pass and emits the values that replace it.
	Combiner CombineFunc

	// ConfigureOutput adjusts the output writer options, which are otherwise
	// copied from the first input (types, compression, codec, metadata).
	ConfigureOutput func(*WriterOptions)

	// SyncMarker fixes the output's sync marker.
	SyncMarker *SyncMarker

	// Serializers and Codecs are shared by the readers and writers opened
	// for the merge.
	Serializers *serde.Registry
	Codecs      *compression.Registry

	// Logger receives progress messages. Default: logging.Discard.
	Logger Logger

	// Metrics, if set, is updated during the merge.
	Metrics *Metrics
}

func (o *MergerOptions) ensureDefaults() {
	if o.Serializers == nil {
		o.Serializers = serde.Default()
	}
	if o.Codecs == nil {
		o.Codecs = compression.Default()
	}
	o.Logger = logging.OrDiscard(o.Logger)
}

func (o *MergerOptions) readerOptions() ReaderOptions {
	return ReaderOptions{
		Serializers: o.Serializers,
		Codecs:      o.Codecs,
		Logger:      o.Logger,
		Metrics:     o.Metrics,
	}
}

// outputOptions derives the options of a file holding the records of the
// file read by r. Only final outputs take the configured sync marker and
// ConfigureOutput adjustments.
func (o *MergerOptions) outputOptions(r *Reader, final bool) WriterOptions {
	wo := WriterOptions{
		KeyType:     r.KeyType(),
		ValueType:   r.ValueType(),
		Compression: r.Compression(),
		Codec:       r.CodecName(),
		Metadata:    r.Metadata(),
		Serializers: o.Serializers,
		Codecs:      o.Codecs,
		Logger:      o.Logger,
		Metrics:     o.Metrics,
	}
	if final {
		wo.SyncMarker = o.SyncMarker
		if o.ConfigureOutput != nil {
			o.ConfigureOutput(&wo)
		}
	}
	return wo
}

const (
	// DefaultSortMemory is the default sort buffer budget.
	DefaultSortMemory = 100 << 20

	// DefaultSortFactor is the default merge fan-in.
	DefaultSortFactor = 100
)

// SorterOptions configures a Sorter.
type SorterOptions struct {
	MergerOptions

	// Memory is the sort buffer budget in bytes, counting key and value
	// bytes plus a fixed per-record overhead.
	Memory int64

	// Factor is the maximum number of segments merged in one pass.
	Factor int

	// TempDir holds spill and intermediate segments. Default: the directory
	// of the output file.
	TempDir string

	// Parallelism bounds the number of concurrent sorts in SortEach.
	// Default: GOMAXPROCS.
	Parallelism int
}

// DefaultSorterOptions returns options with the default memory budget and
// fan-in.
func DefaultSorterOptions() SorterOptions {
	return SorterOptions{
		Memory: DefaultSortMemory,
		Factor: DefaultSortFactor,
	}
}

func (o *SorterOptions) validate() error {
	if o.Memory <= 0 {
		return configf("seqfile: sort memory must be positive, got %d", o.Memory)
	}
	if o.Factor < 2 {
		return configf("seqfile: merge factor must be at least 2, got %d", o.Factor)
	}
	if o.Parallelism < 0 {
		return configf("seqfile: negative parallelism %d", o.Parallelism)
	}
	return nil
}

func (o *SorterOptions) ensureDefaults() {
	o.MergerOptions.ensureDefaults()
	if o.Parallelism == 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
}
