package seqfile

// errors.go defines the error taxonomy: storage errors are wrapped and
// propagated, decode failures are marked ErrCorruption (ErrTruncated for a
// partial tail), and option validation failures are marked ErrConfig.

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrCorruption marks malformed file contents: bad magic or version,
	// inconsistent length fields, sync marker mismatches or undecodable
	// block columns.
	ErrCorruption = errors.New("seqfile: corruption")

	// ErrTruncated marks a file that ends inside a record or block. Errors
	// marked ErrTruncated also match ErrCorruption.
	ErrTruncated = errors.New("seqfile: truncated file")

	// ErrConfig marks invalid options. It is returned before any data is
	// read or written.
	ErrConfig = errors.New("seqfile: invalid configuration")

	// ErrClosed is returned by operations on a closed Writer or Reader.
	ErrClosed = errors.New("seqfile: closed")

	// ErrOutOfOrder is returned by CheckSorted when consecutive keys are
	// not in comparator order.
	ErrOutOfOrder = errors.New("seqfile: records out of order")
)

func corruptionf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

func truncatedf(format string, args ...any) error {
	return errors.Mark(errors.Mark(errors.Newf(format, args...), ErrTruncated), ErrCorruption)
}

func configf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// markCorruption marks err as corruption unless it is already marked.
func markCorruption(err error) error {
	if err == nil || errors.Is(err, ErrCorruption) {
		return err
	}
	return errors.Mark(err, ErrCorruption)
}
