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

package counter

import (
	"fmt"
	"sync"

	"github.com/shenwei356/kgraph/kgraph/graph"
	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/shenwei356/kgraph/kgraph/reads"
	"github.com/shenwei356/kgraph/kgraph/table"
	"github.com/shenwei356/kgraph/kgraph/util"
)

// Options contains the options of k-mer counting.
type Options struct {
	K        int // k-mer size
	MinCount int // minimum abundance of a k-mer to keep
	Threads  int // maximum number of stores counted at the same time
}

// CheckOptions checks the options.
func CheckOptions(opt *Options) error {
	if opt.K < 1 || opt.K > kmer.MaxK {
		return fmt.Errorf("invalid k value: %d, valid range: [1, %d]", opt.K, kmer.MaxK)
	}
	if opt.MinCount < 1 {
		return fmt.Errorf("invalid minimum count: %d, should be >= 1", opt.MinCount)
	}
	if opt.Threads < 1 {
		return fmt.Errorf("invalid number of threads: %d, should be >= 1", opt.Threads)
	}
	return nil
}

// Count counts canonical k-mers of reads in all stores.
// Every store is counted into a sorted and deduplicated table by one goroutine,
// then the tables are merged, and k-mers with abundance < MinCount are dropped.
//
// Values of the returned table hold abundances only, call Annotate to fill
// the other fields for building a graph.
func Count(stores []*reads.Store, opt *Options) (*table.Table, error) {
	if err := CheckOptions(opt); err != nil {
		return nil, err
	}

	tables := make([]*table.Table, len(stores))
	errs := make([]error, len(stores))

	var wg sync.WaitGroup
	tokens := make(chan int, opt.Threads) // control the max concurrency number
	for i, s := range stores {
		tokens <- 1
		wg.Add(1)

		go func(i int, s *reads.Store) {
			defer func() {
				wg.Done()
				<-tokens
			}()

			tables[i], errs[i] = countStore(s, opt.K)
		}(i, s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// merge tables in pairs, round by round
	for len(tables) > 1 {
		n := len(tables) >> 1
		for i := 0; i < n; i++ {
			tokens <- 1
			wg.Add(1)

			go func(i int) {
				defer func() {
					wg.Done()
					<-tokens
				}()

				a, b := tables[i<<1], tables[i<<1+1]
				if errs[i] = a.MergeSorted(b); errs[i] != nil {
					return
				}
				errs[i] = a.ExtractUniqueAbove(1, a)
			}(i)
		}
		wg.Wait()

		for _, err := range errs[:n] {
			if err != nil {
				return nil, err
			}
		}

		merged := make([]*table.Table, 0, n+1)
		for i := 0; i < n; i++ {
			merged = append(merged, tables[i<<1])
		}
		if len(tables)&1 == 1 {
			merged = append(merged, tables[len(tables)-1])
		}
		tables = merged
	}

	if len(tables) == 0 {
		return table.New(opt.K)
	}

	t := tables[0]
	if err := t.ExtractUniqueAbove(uint64(opt.MinCount), t); err != nil {
		return nil, err
	}
	return t, nil
}

func countStore(s *reads.Store, k int) (*table.Table, error) {
	t, err := table.New(k)
	if err != nil {
		return nil, err
	}
	iter, err := s.Kmers(k)
	if err != nil {
		return nil, err
	}

	n := s.NumBases() - s.NumReads()*(k-1)
	if n > 0 {
		t.Grow(n)
	}
	for iter.Next() {
		t.PushBack(iter.Kmer().Canonical(k), 1)
	}

	t.Sort()
	if err = t.ExtractUniqueAbove(1, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Annotate fills successor masks and strand fractions of k-mers in a table
// built by Count, by scanning all reads again.
//
// For two consecutive k-mers x and y of a read, both in the table,
// the last base of y is recorded as a successor of x, and the complement of the
// first base of x is recorded as a successor of the reverse complement of y.
// The fraction of occurrences in the saved orientation of every k-mer
// is scaled to [0, 65535].
//
// Annotate modifies the table in place and needs exclusive access.
func Annotate(t *table.Table, stores []*reads.Store) error {
	k := t.K()
	if k == 0 {
		return table.ErrUnconfigured
	}
	g := graph.New(t)
	mask := kmer.Mask(k)
	n := t.Size()
	plus := make([]uint32, n)
	total := make([]uint32, n)
	branches := make([]uint8, n)

	var x, pre kmer.Kmer
	var node, preNode graph.Node
	var code, first uint8
	var i, valid int
	for _, s := range stores {
		iter := s.Reads()
		for iter.Next() {
			valid = 0
			preNode = 0
			for _, b := range iter.Read() {
				code = kmer.Code[b] & 3
				if valid == k {
					first = pre.BaseAt(k, 0)
				}
				x = x.ShiftAppend(code, mask)
				if valid < k {
					valid++
				}
				if valid < k {
					pre = x
					continue
				}

				node = g.GetNode(x)
				if node > 0 {
					i = node.Index()
					total[i]++
					if !node.Minus() {
						plus[i]++
					}

					if preNode > 0 {
						// x -> y
						branches[preNode.Index()] |= successorBit(preNode, code)
						// rc(y) -> rc(x)
						rc := graph.ReverseComplement(node)
						branches[i] |= successorBit(rc, 3-first)
					}
				}

				pre = x
				preNode = node
			}
		}
	}

	var v uint64
	for i = 0; i < n; i++ {
		// a palindromic k-mer is always queried as an even node,
		// while edges from its reverse complement went to the high bits.
		if k&1 == 0 {
			if x, _ = t.Get(i); x == x.RevComp(k) {
				branches[i] |= branches[i] >> 4
				branches[i] |= branches[i] << 4
			}
		}

		v = t.GetValue(i)
		v &^= graph.BranchMask | uint64(1<<16-1)<<graph.PlusShift
		v |= uint64(branches[i]) << graph.BranchShift
		v |= util.ScaleFraction(uint64(plus[i]), uint64(total[i])) << graph.PlusShift
		t.SetValue(v, i)
	}
	return nil
}

// successorBit returns the bit of a base in the 8-bit branch mask of a node.
func successorBit(n graph.Node, code uint8) uint8 {
	if n.Minus() {
		return 1 << (code + 4)
	}
	return 1 << code
}

// Merge merges tables of the same k into the first one, and drops k-mers
// with abundance < minCount. Successor masks of a k-mer are combined,
// and strand fractions are averaged by abundances. Visited flags are cleared.
func Merge(tables []*table.Table, minCount int) (*table.Table, error) {
	if len(tables) == 0 {
		return nil, table.ErrUnconfigured
	}
	t := tables[0]
	for _, o := range tables[1:] {
		if o.K() != t.K() {
			return nil, fmt.Errorf("k-mer sizes unmatched: %d != %d", t.K(), o.K())
		}
		if err := t.MergeSorted(o); err != nil {
			return nil, err
		}
	}

	// write combined metadata into the last entry of each run
	n := t.Size()
	var x, y kmer.Kmer
	var v uint64
	var i, j int
	var branches, abundance, plus uint64
	for i < n {
		x, v = t.Get(i)
		branches = v & graph.BranchMask
		abundance = v & graph.AbundanceMask
		plus = (v >> graph.PlusShift) * abundance
		for j = i + 1; j < n; j++ {
			if y, v = t.Get(j); y != x {
				break
			}
			branches |= v & graph.BranchMask
			abundance += v & graph.AbundanceMask
			plus += (v >> graph.PlusShift) * (v & graph.AbundanceMask)
		}
		if j-i > 1 {
			v = t.GetValue(j - 1)
			v &= graph.AbundanceMask
			v |= branches
			if abundance > 0 {
				v |= (plus + abundance>>1) / abundance << graph.PlusShift
			}
			t.SetValue(v, j-1)
		} else if v = t.GetValue(i); v&graph.VisitedBit > 0 {
			t.SetValue(v&^graph.VisitedBit, i)
		}
		i = j
	}

	if err := t.ExtractUniqueAbove(uint64(minCount), t); err != nil {
		return nil, err
	}
	return t, nil
}
