package testutil

import (
	"bytes"
	"slices"

	"github.com/cockroachdb/errors"
)

// ExpectedState is the oracle a sorted or merged file is checked against.
// It holds every record that went into the operation, in the order the
// output must reproduce.
type ExpectedState struct {
	records []Datum
}

// NewExpectedState returns the state for records in input order.
func NewExpectedState(records []Datum) *ExpectedState {
	return &ExpectedState{records: records}
}

// Sorted returns the state a stable sort by cmp must produce: records with
// equal keys keep their input order.
func (s *ExpectedState) Sorted(cmp func(a, b []byte) int) *ExpectedState {
	sorted := slices.Clone(s.records)
	slices.SortStableFunc(sorted, func(a, b Datum) int { return cmp(a.Key, b.Key) })
	return &ExpectedState{records: sorted}
}

// Len returns the number of expected records.
func (s *ExpectedState) Len() int { return len(s.records) }

// At returns the i-th expected record.
func (s *ExpectedState) At(i int) Datum { return s.records[i] }

// Records returns a copy of the expected records in order.
func (s *ExpectedState) Records() []Datum { return slices.Clone(s.records) }

// Verify compares the i-th expected record with key and value and returns a
// descriptive error on mismatch.
func (s *ExpectedState) Verify(i int, key, value []byte) error {
	if i >= len(s.records) {
		return errors.Newf("unexpected record %d beyond %d expected", i, len(s.records))
	}
	want := s.records[i]
	if !bytes.Equal(want.Key, key) {
		return errors.Newf("wrong key at %d: got %d bytes, want %d bytes", i, len(key), len(want.Key))
	}
	if !bytes.Equal(want.Value, value) {
		return errors.Newf("wrong value at %d: got %d bytes, want %d bytes", i, len(value), len(want.Value))
	}
	return nil
}
