// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package table

import (
	"errors"

	"github.com/shenwei356/kgraph/kgraph/kmer"
)

// ErrKOverflow means K > 128.
var ErrKOverflow = errors.New("k-mer table: k-mer size [1, 128] overflow")

// ErrUnconfigured means the table is created with k == 0.
var ErrUnconfigured = errors.New("k-mer table: unconfigured table (k = 0)")

// ErrTierMismatch means the two tables save k-mers in different widths.
var ErrTierMismatch = errors.New("k-mer table: k-mer width mismatch")

// ErrAbundanceOverflow means the accumulated abundance of a k-mer exceeds 2^32-1.
var ErrAbundanceOverflow = errors.New("k-mer table: abundance overflow")

const lowHalf = 1<<32 - 1

// Table is a list of k-mer and value pairs, sorted by k-mers after calling Sort().
//
// K-mers are saved in the narrowest one of four widths (1-4 64-bit words)
// according to k, so small k-mers use less memory.
// The value is opaque to the table, except that the lowest 32 bits are
// treated as the abundance in ExtractUniqueAbove.
//
// A Table is not safe for concurrent writing. Once built, it can be read
// by multiple goroutines.
type Table struct {
	k    int
	tier int // number of words of a k-mer
	b    backing
}

// New creates a table for k-mers of size k.
// A table of k == 0 is unusable, all methods modifying it fail.
func New(k int) (*Table, error) {
	if k < 0 || k > kmer.MaxK {
		return nil, ErrKOverflow
	}
	if k == 0 {
		return &Table{}, nil
	}
	tier := kmer.Words(k)
	return &Table{k: k, tier: tier, b: newBacking(tier)}, nil
}

// K returns the k-mer size.
func (t *Table) K() int { return t.k }

// Tier returns the number of words used to save a k-mer, 0 for unconfigured table.
func (t *Table) Tier() int { return t.tier }

// Size returns the number of entries.
func (t *Table) Size() int {
	if t.b == nil {
		return 0
	}
	return t.b.len()
}

func (t *Table) mustConfigured() {
	if t.b == nil {
		panic(ErrUnconfigured)
	}
}

func (t *Table) compatible(o *Table) error {
	if t.b == nil || o.b == nil {
		return ErrUnconfigured
	}
	if t.tier != o.tier {
		return ErrTierMismatch
	}
	return nil
}

// Grow preallocates space for another n entries.
func (t *Table) Grow(n int) {
	t.mustConfigured()
	t.b.grow(n)
}

// PushBack appends a k-mer and its value.
// It panics with ErrUnconfigured for an unconfigured table.
func (t *Table) PushBack(x kmer.Kmer, v uint64) {
	t.mustConfigured()
	t.b.pushBack(x, v)
}

// PushBackElementsFrom appends all entries of another table.
func (t *Table) PushBackElementsFrom(o *Table) error {
	if err := t.compatible(o); err != nil {
		return err
	}
	t.b.appendFrom(o.b)
	return nil
}

// Swap exchanges the entries of two tables of the same width.
func (t *Table) Swap(o *Table) error {
	if err := t.compatible(o); err != nil {
		return err
	}
	t.b.swap(o.b)
	t.k, o.k = o.k, t.k
	return nil
}

// Sort sorts entries by k-mers in ascending order. Values are not compared.
// It panics with ErrUnconfigured for an unconfigured table.
func (t *Table) Sort() {
	t.mustConfigured()
	t.b.sort()
}

// ExtractUniqueAbove collapses runs of identical k-mers of a sorted table
// into out, which is overwritten.
//
// For each run, the abundances (lowest 32 bits of values) are summed up,
// and the last entry of the run is kept with its abundance replaced by the sum,
// while other bits of the value are kept. Runs with a sum < minCount are dropped.
// A sum bigger than 2^32-1 stops the extraction with ErrAbundanceOverflow.
//
// The table needs to be sorted, it is not checked.
func (t *Table) ExtractUniqueAbove(minCount uint64, out *Table) error {
	if err := t.compatible(out); err != nil {
		return err
	}
	out.k = t.k
	return t.b.extractUniqueAbove(minCount, out.b)
}

// MergeSorted merges another sorted table into this sorted one.
// Identical k-mers are kept, entries of this table go first.
func (t *Table) MergeSorted(o *Table) error {
	if err := t.compatible(o); err != nil {
		return err
	}
	t.b.mergeSorted(o.b)
	return nil
}

// Find returns the index of a k-mer with a binary search, Size() for absent k-mer.
// The table needs to be sorted, it is not checked.
func (t *Table) Find(x kmer.Kmer) int {
	if t.b == nil {
		return 0
	}
	return t.b.find(x)
}

// Get returns the k-mer and value of the ith entry. i is not checked.
func (t *Table) Get(i int) (kmer.Kmer, uint64) {
	return t.b.get(i)
}

// GetValue returns the value of the ith entry. i is not checked.
func (t *Table) GetValue(i int) uint64 {
	return t.b.value(i)
}

// SetValue sets the value of the ith entry. i is not checked.
func (t *Table) SetValue(v uint64, i int) {
	t.mustConfigured()
	t.b.setValue(v, i)
}

// Walk visits all entries in order. Returning true in f stops the walk.
func (t *Table) Walk(f func(x kmer.Kmer, v uint64) bool) {
	n := t.Size()
	var x kmer.Kmer
	var v uint64
	for i := 0; i < n; i++ {
		x, v = t.b.get(i)
		if f(x, v) {
			return
		}
	}
}
