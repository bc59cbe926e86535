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

package reads

import (
	"errors"

	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/shenwei356/kgraph/kgraph/util"
)

// MaxReadLen is the maximum length of a read.
const MaxReadLen = 1<<16 - 1

// ErrReadTooLong means the read is longer than 65535 bp.
var ErrReadTooLong = errors.New("packed reads: read longer than 65535 bp")

// Store holds reads in a 2bit-packed format.
//
// Bases of all reads are saved contiguously in a list of uint64,
// without any padding between reads. Each read is saved in reverse order,
// starting from the last base, the lowest two bits of a word come first.
// So a k-mer is just a shift-and-mask of one or a few words.
//
// A Store is append-only.
type Store struct {
	storage []uint64
	lengths []uint16
	total   int // the total number of bases
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		storage: make([]uint64, 0, 1024),
		lengths: make([]uint16, 0, 1024),
	}
}

// InsertRead appends a read. Bases out of "ACGTacgt" are not checked.
func (s *Store) InsertRead(seq []byte) error {
	if len(seq) > MaxReadLen {
		return ErrReadTooLong
	}

	var pos int
	for i := len(seq) - 1; i >= 0; i-- {
		pos = s.total << 1
		if pos>>6 == len(s.storage) {
			s.storage = append(s.storage, 0)
		}
		s.storage[pos>>6] |= uint64(kmer.Code[seq[i]]&3) << (pos & 63)
		s.total++
	}
	s.lengths = append(s.lengths, uint16(len(seq)))
	return nil
}

// NumReads returns the number of reads.
func (s *Store) NumReads() int {
	return len(s.lengths)
}

// NumBases returns the number of bases of all reads.
func (s *Store) NumBases() int {
	return s.total
}

// Len returns the length of the ith read.
func (s *Store) Len(i int) int {
	return int(s.lengths[i])
}

// MemSize returns the number of bytes of the data.
func (s *Store) MemSize() int {
	return len(s.storage)<<3 + len(s.lengths)<<1
}

// kmerAt returns the k-mer whose last base is saved at base offset b.
func (s *Store) kmerAt(b int, words int, mask kmer.Kmer) kmer.Kmer {
	var x kmer.Kmer
	pos := b << 1
	word := pos >> 6
	shift := pos & 63

	if shift == 0 {
		copy(x[:words], s.storage[word:word+words])
		return x.And(mask)
	}

	// x[i] gets the high bits of word+i and the low bits of word+i+1.
	n := len(s.storage)
	for i := 0; i < words; i++ {
		x[i] = s.storage[word+i] >> shift
		if word+i+1 < n {
			x[i] |= s.storage[word+i+1] << (64 - shift)
		}
	}
	return x.And(mask)
}

// KmerIterator iterates all k-mers of reads.
// Reads shorter than k are skipped.
// K-mers of a read are returned from left to right, reads in insertion order.
type KmerIterator struct {
	s     *Store
	k     int
	words int
	mask  kmer.Kmer

	read      int // index of the next read
	offset    int // base offset of the next read
	cur       int // base offset of the next k-mer
	remaining int // k-mers left in the current read

	kmer kmer.Kmer
}

// Kmers returns an iterator of k-mers.
func (s *Store) Kmers(k int) (*KmerIterator, error) {
	if k < 1 || k > kmer.MaxK {
		return nil, kmer.ErrKOverflow
	}
	return &KmerIterator{
		s:     s,
		k:     k,
		words: kmer.Words(k),
		mask:  kmer.Mask(k),
	}, nil
}

// Next moves to the next k-mer, it returns false when all k-mers are visited.
func (it *KmerIterator) Next() bool {
	var l int
	for it.remaining == 0 {
		if it.read >= len(it.s.lengths) {
			return false
		}

		l = int(it.s.lengths[it.read])
		if l >= it.k {
			// the read is reversed, the leftmost k-mer has the biggest offset.
			it.cur = it.offset + l - it.k
			it.remaining = l - it.k + 1
		}
		it.offset += l
		it.read++
	}

	it.kmer = it.s.kmerAt(it.cur, it.words, it.mask)
	it.cur--
	it.remaining--
	return true
}

// Kmer returns the current k-mer.
func (it *KmerIterator) Kmer() kmer.Kmer {
	return it.kmer
}

// K returns the k-mer size.
func (it *KmerIterator) K() int {
	return it.k
}

// ReadIterator iterates all reads.
type ReadIterator struct {
	s      *Store
	read   int
	offset int
	seq    []byte
}

// Reads returns an iterator of reads.
func (s *Store) Reads() *ReadIterator {
	return &ReadIterator{s: s, read: -1}
}

// Next moves to the next read.
func (it *ReadIterator) Next() bool {
	if it.read >= len(it.s.lengths) {
		return false
	}
	if it.read >= 0 {
		it.offset += int(it.s.lengths[it.read])
	}
	it.read++
	if it.read >= len(it.s.lengths) {
		it.seq = nil
		return false
	}

	l := int(it.s.lengths[it.read])
	seq := make([]byte, l)
	var pos int
	for i := 0; i < l; i++ {
		pos = (it.offset + i) << 1
		seq[i] = kmer.Bases[it.s.storage[pos>>6]>>(pos&63)&3]
	}
	util.ReverseBytes(seq)
	it.seq = seq
	return true
}

// Read returns the current read. The slice is not reused.
func (it *ReadIterator) Read() []byte {
	return it.seq
}

// Index returns the index of the current read.
func (it *ReadIterator) Index() int {
	return it.read
}
