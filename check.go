package seqfile

import (
	"bytes"

	"github.com/aalhour/seqfile/internal/vfs"
	"github.com/cockroachdb/errors"
)

// CheckSorted reads name and verifies that its keys are in non-decreasing
// order under cmp, or under the key serializer's order if cmp is nil. It
// returns the number of records read. Values are not decoded.
func CheckSorted(fs vfs.FS, name string, cmp Comparator, opts ReaderOptions) (n int64, err error) {
	r, err := Open(fs, name, opts)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.CombineErrors(err, r.Close())
	}()
	if cmp == nil {
		cmp = r.KeySerializer().Compare
	}
	var rec RawRecord
	var prev []byte
	for {
		pos := r.Position()
		ok, err := r.NextRawKey(&rec)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		if n > 0 && cmp(prev, rec.Key) > 0 {
			return n, errors.Mark(
				errors.Newf("seqfile: %s: record %d near offset %d sorts before its predecessor", name, n, pos),
				ErrOutOfOrder)
		}
		prev = append(prev[:0], rec.Key...)
		n++
	}
}

// MaterializedComparator returns a Comparator that decodes both keys with s
// and orders the decoded values with cmp. Keys that fail to decode are
// compared bytewise.
func MaterializedComparator[K any](s Serializer, cmp func(a, b K) int) Comparator {
	return func(a, b []byte) int {
		var ka, kb K
		if s.Decode(a, &ka) != nil || s.Decode(b, &kb) != nil {
			return bytes.Compare(a, b)
		}
		return cmp(ka, kb)
	}
}
