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
	"sort"

	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/twotwotwo/sorts"
)

// backing is what a table of a fixed k-mer width can do.
// All the methods are implemented once in pairs.
type backing interface {
	len() int
	grow(n int)
	pushBack(x kmer.Kmer, v uint64)
	appendFrom(o backing)
	swap(o backing)
	sort()
	find(x kmer.Kmer) int
	get(i int) (kmer.Kmer, uint64)
	value(i int) uint64
	setValue(v uint64, i int)
	mergeSorted(o backing)
	extractUniqueAbove(minCount uint64, out backing) error
}

// key is a k-mer saved in 1-4 words.
type key[K any] interface {
	comparable
	Less(K) bool
	Wide() kmer.Kmer
}

type pair[K key[K]] struct {
	kmer  K
	value uint64
}

type pairs[K key[K]] struct {
	data   []pair[K]
	narrow func(kmer.Kmer) K
}

func newBacking(tier int) backing {
	switch tier {
	case 1:
		return &pairs[kmer.K1]{narrow: kmer.Kmer.K1}
	case 2:
		return &pairs[kmer.K2]{narrow: kmer.Kmer.K2}
	case 3:
		return &pairs[kmer.K3]{narrow: kmer.Kmer.K3}
	case 4:
		return &pairs[kmer.K4]{narrow: kmer.Kmer.K4}
	}
	return nil
}

func (p *pairs[K]) len() int { return len(p.data) }

func (p *pairs[K]) grow(n int) {
	if cap(p.data)-len(p.data) < n {
		data := make([]pair[K], len(p.data), len(p.data)+n)
		copy(data, p.data)
		p.data = data
	}
}

func (p *pairs[K]) pushBack(x kmer.Kmer, v uint64) {
	p.data = append(p.data, pair[K]{kmer: p.narrow(x), value: v})
}

func (p *pairs[K]) appendFrom(o backing) {
	p.data = append(p.data, o.(*pairs[K]).data...)
}

func (p *pairs[K]) swap(o backing) {
	q := o.(*pairs[K])
	p.data, q.data = q.data, p.data
}

type byKmer[K key[K]] []pair[K]

func (s byKmer[K]) Len() int           { return len(s) }
func (s byKmer[K]) Less(i, j int) bool { return s[i].kmer.Less(s[j].kmer) }
func (s byKmer[K]) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func (p *pairs[K]) sort() {
	sorts.Quicksort(byKmer[K](p.data))
}

func (p *pairs[K]) find(x kmer.Kmer) int {
	q := p.narrow(x)
	i := sort.Search(len(p.data), func(i int) bool { return !p.data[i].kmer.Less(q) })
	if i < len(p.data) && p.data[i].kmer == q {
		return i
	}
	return len(p.data)
}

func (p *pairs[K]) get(i int) (kmer.Kmer, uint64) {
	return p.data[i].kmer.Wide(), p.data[i].value
}

func (p *pairs[K]) value(i int) uint64 { return p.data[i].value }

func (p *pairs[K]) setValue(v uint64, i int) { p.data[i].value = v }

func (p *pairs[K]) mergeSorted(o backing) {
	a, b := p.data, o.(*pairs[K]).data
	merged := make([]pair[K], 0, len(a)+len(b))

	var i, j int
	for i < len(a) && j < len(b) {
		if b[j].kmer.Less(a[i].kmer) {
			merged = append(merged, b[j])
			j++
		} else {
			merged = append(merged, a[i])
			i++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)

	p.data = merged
}

func (p *pairs[K]) extractUniqueAbove(minCount uint64, out backing) error {
	// out could be p itself, the writing position never passes the reading one.
	data := p.data
	n := len(data)
	o := out.(*pairs[K])
	o.data = o.data[:0]

	var i, j int
	var x K
	var sum uint64
	var last pair[K]
	for i < n {
		x = data[i].kmer
		sum = data[i].value & lowHalf
		for j = i + 1; j < n && data[j].kmer == x; j++ {
			sum += data[j].value & lowHalf
		}
		if sum > lowHalf {
			return ErrAbundanceOverflow
		}

		if sum >= minCount {
			last = data[j-1]
			last.value = last.value&^lowHalf | sum
			o.data = append(o.data, last)
		}
		i = j
	}
	return nil
}
