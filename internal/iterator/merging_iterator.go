// Package iterator merges sorted record streams.
//
// MergingIterator yields the union of several sorted child cursors in
// comparator order using a binary min-heap of child indices. Equal keys are
// yielded in child order, so merging consecutive sorted runs of one input is
// stable.
package iterator

// Cursor is a forward-only sorted stream of keys.
type Cursor interface {
	// Next advances to the next entry and reports whether one exists. It
	// returns false at the end of the stream or on error.
	Next() bool

	// Key returns the current key. It is valid until the next call to Next.
	Key() []byte

	// Err returns the error that stopped the cursor, if any.
	Err() error
}

// MergingIterator merges sorted cursors into one sorted stream.
//
// The children are the arena; the heap holds indices into it, ordered by
// (key, index). Callers read the record at the top through the child
// returned by Index.
type MergingIterator struct {
	children []Cursor
	cmp      func(a, b []byte) int
	heap     []int
	current  int // index of the child at the top, -1 if invalid
	started  bool
	err      error
}

// NewMergingIterator creates a merging iterator over children. The iterator
// is positioned before the first entry.
func NewMergingIterator(children []Cursor, cmp func(a, b []byte) int) *MergingIterator {
	return &MergingIterator{
		children: children,
		cmp:      cmp,
		heap:     make([]int, 0, len(children)),
		current:  -1,
	}
}

// Next advances to the smallest remaining entry across all children and
// reports whether one exists.
func (mi *MergingIterator) Next() bool {
	if mi.err != nil {
		return false
	}
	if !mi.started {
		mi.started = true
		for i, child := range mi.children {
			if child.Next() {
				mi.heap = append(mi.heap, i)
			} else if err := child.Err(); err != nil {
				return mi.fail(err)
			}
		}
		for i := len(mi.heap)/2 - 1; i >= 0; i-- {
			mi.down(i)
		}
		return mi.top()
	}
	if mi.current < 0 {
		return false
	}

	child := mi.children[mi.current]
	if child.Next() {
		mi.down(0)
	} else {
		if err := child.Err(); err != nil {
			return mi.fail(err)
		}
		last := len(mi.heap) - 1
		mi.heap[0] = mi.heap[last]
		mi.heap = mi.heap[:last]
		if last > 0 {
			mi.down(0)
		}
	}
	return mi.top()
}

// Valid returns true if the iterator is positioned at an entry.
func (mi *MergingIterator) Valid() bool {
	return mi.current >= 0
}

// Index returns the index of the child holding the current entry.
func (mi *MergingIterator) Index() int {
	return mi.current
}

// Key returns the current key.
func (mi *MergingIterator) Key() []byte {
	if mi.current < 0 {
		return nil
	}
	return mi.children[mi.current].Key()
}

// Live returns the number of children that still have entries.
func (mi *MergingIterator) Live() int {
	return len(mi.heap)
}

// Error returns the first child error encountered.
func (mi *MergingIterator) Error() error {
	return mi.err
}

func (mi *MergingIterator) fail(err error) bool {
	mi.err = err
	mi.current = -1
	return false
}

func (mi *MergingIterator) top() bool {
	if len(mi.heap) == 0 {
		mi.current = -1
		return false
	}
	mi.current = mi.heap[0]
	return true
}

func (mi *MergingIterator) less(a, b int) bool {
	ia, ib := mi.heap[a], mi.heap[b]
	if c := mi.cmp(mi.children[ia].Key(), mi.children[ib].Key()); c != 0 {
		return c < 0
	}
	return ia < ib
}

func (mi *MergingIterator) down(i int) {
	n := len(mi.heap)
	for {
		smallest := i
		if l := 2*i + 1; l < n && mi.less(l, smallest) {
			smallest = l
		}
		if r := 2*i + 2; r < n && mi.less(r, smallest) {
			smallest = r
		}
		if smallest == i {
			return
		}
		mi.heap[i], mi.heap[smallest] = mi.heap[smallest], mi.heap[i]
		i = smallest
	}
}
