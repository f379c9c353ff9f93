package types

import "golang.org/x/exp/constraints"

// BitName pairs a bit value with a printable name.
type BitName[T constraints.Unsigned] struct {
	Bit  T
	Name string
}

// BitIter is a zero-alloc iterator over set bits in a value, filtered by a table.
// Caller advances with Next(); no callbacks, no closures.
type BitIter[T constraints.Unsigned] struct {
	v     T
	i     int
	table []BitName[T]
}

// NewBitIter constructs an iterator over set bits present in v that also exist in table.
func NewBitIter[T constraints.Unsigned](v T, table []BitName[T]) BitIter[T] {
	return BitIter[T]{v: v, table: table}
}

// Next returns the next SET bit: (name, ok). ok=false when done.
func (it *BitIter[T]) Next() (string, bool) {
	for it.i < len(it.table) {
		e := it.table[it.i]
		it.i++
		if it.v&e.Bit != 0 {
			return e.Name, true
		}
	}
	return "", false
}

// Reset allows reusing the iterator.
func (it *BitIter[T]) Reset() { it.i = 0 }

// Names collects the names of every set bit.
func Names[T constraints.Unsigned](v T, table []BitName[T]) []string {
	var out []string
	it := NewBitIter(v, table)
	for {
		n, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, n)
	}
}

// -----------------------------
// Link error byte
// -----------------------------

// LinkErrorBits is the error byte in the last telemetry slot as seen by
// the host. A healthy link reports exactly LinkErrNone.
type LinkErrorBits uint8

const (
	LinkErrNone       LinkErrorBits = 1 << 0
	LinkErrOverflow   LinkErrorBits = 1 << 1
	LinkErrOverwrite  LinkErrorBits = 1 << 2
	LinkErrOutOfIndex LinkErrorBits = 1 << 3
	LinkErrSequence   LinkErrorBits = 1 << 4
)

var LinkErrorTable = [...]BitName[LinkErrorBits]{
	{LinkErrNone, "none"},
	{LinkErrOverflow, "overflow"},
	{LinkErrOverwrite, "overwrite"},
	{LinkErrOutOfIndex, "out_of_index"},
	{LinkErrSequence, "sequence"},
}

// Clean reports a healthy error byte.
func (b LinkErrorBits) Clean() bool { return b == LinkErrNone }

func (b LinkErrorBits) Names() []string { return Names(b, LinkErrorTable[:]) }
