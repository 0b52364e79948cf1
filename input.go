package seqfile

import (
	"bufio"
	"io"

	"github.com/aalhour/seqfile/internal/encoding"
	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
)

// input is a buffered view of a random access file that tracks the offset
// of the next unread byte.
type input struct {
	name string
	f    vfs.RandomAccessFile
	size int64
	br   *bufio.Reader
	pos  int64
}

func newInput(name string, f vfs.RandomAccessFile, bufSize int) *input {
	in := &input{
		name: name,
		f:    f,
		size: f.Size(),
		br:   bufio.NewReaderSize(nil, bufSize),
	}
	in.seek(0)
	return in
}

// seek discards buffered data and positions in at pos.
func (in *input) seek(pos int64) {
	in.br.Reset(io.NewSectionReader(in.f, pos, in.size-pos))
	in.pos = pos
}

func (in *input) remaining() int64 {
	return in.size - in.pos
}

// readFull reads exactly len(p) bytes. It returns io.EOF only if no byte
// was available.
func (in *input) readFull(p []byte) error {
	n, err := io.ReadFull(in.br, p)
	in.pos += int64(n)
	return err
}

// ReadByte implements io.ByteReader.
func (in *input) ReadByte() (byte, error) {
	b, err := in.br.ReadByte()
	if err == nil {
		in.pos++
	}
	return b, err
}

// frameErr converts an error hit while reading a framed item into a
// truncation, corruption or wrapped storage error.
func (in *input) frameErr(err error, what string) error {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, encoding.ErrVarintTermination):
		return truncatedf("seqfile: %s: %s truncated at offset %d of %d", in.name, what, in.pos, in.size)
	case errors.Is(err, encoding.ErrVarintOverflow):
		return corruptionf("seqfile: %s: %s: varint overflow at offset %d", in.name, what, in.pos)
	default:
		return errors.Wrapf(err, "seqfile: %s: read %s at offset %d", in.name, what, in.pos)
	}
}

func (in *input) readUvarint(what string) (uint64, error) {
	v, err := encoding.ReadVarint64(in)
	if err != nil {
		return 0, in.frameErr(err, what)
	}
	return v, nil
}

// readLength reads a varint length and checks it against the bytes left.
func (in *input) readLength(what string) (int, error) {
	n, err := in.readUvarint(what)
	if err != nil {
		return 0, err
	}
	if n > uint64(in.remaining()) {
		return 0, truncatedf("seqfile: %s: %s length %d exceeds remaining %d bytes at offset %d",
			in.name, what, n, in.remaining(), in.pos)
	}
	return int(n), nil
}

func (in *input) readString(what string) (string, error) {
	n, err := in.readLength(what)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := in.readFull(buf); err != nil {
		return "", in.frameErr(err, what)
	}
	return string(buf), nil
}

func (in *input) readBool(what string) (bool, error) {
	b, err := in.ReadByte()
	if err != nil {
		return false, in.frameErr(err, what)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, corruptionf("seqfile: %s: invalid %s byte %d at offset %d", in.name, what, b, in.pos-1)
}

// readUint32 reads a big-endian uint32 into buf. Errors are returned as-is
// so that callers can tell a clean end of file from a partial frame.
func (in *input) readUint32(buf []byte) (uint32, error) {
	if err := in.readFull(buf[:4]); err != nil {
		return 0, err
	}
	return encoding.Uint32(buf[:4]), nil
}
