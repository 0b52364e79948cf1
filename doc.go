/*
Package seqfile implements SequenceFile: a binary flat-file container for
ordered key/value records, together with the writer, reader, external sorter
and k-way merger that produce and consume it.

# File layout

A file starts with a header (magic, version, key and value type tags,
compression regime, codec name, metadata and a 16-byte sync marker) followed
by records. Records are framed individually (CompressionNone and
CompressionRecord) or grouped into column-compressed blocks
(CompressionBlock). Sync markers are interleaved with the records so that a
reader positioned at an arbitrary offset can resynchronize, which is what
lets a large file be split across independent consumers.

# Usage

	w, err := seqfile.Create(fs, "part-0.seq", seqfile.WriterOptions{
		KeyType:     seqfile.StringType,
		ValueType:   seqfile.Int64Type,
		Compression: seqfile.CompressionBlock,
	})
	...
	err = w.Append("apple", int64(3))
	...
	err = w.Close()

	s, err := seqfile.NewSorter(fs, seqfile.DefaultSorterOptions())
	...
	err = s.Sort("part-0.seq", "part-0.sorted.seq")

# Concurrency

Writers and Readers are not safe for concurrent use. Several Readers may
read the same closed file concurrently. Sorters and Mergers keep no state
between calls, so independent sorts may run in parallel (see
Sorter.SortEach).
*/
package seqfile
