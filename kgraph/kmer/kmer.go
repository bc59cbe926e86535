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

package kmer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shenwei356/kmers"
)

// MaxWords is the number of 64-bit words of the widest k-mer.
const MaxWords = 4

// MaxK is the maximum k-mer size.
const MaxK = MaxWords << 5

// ErrIllegalBase means that a base beyond "ACGT" is given.
var ErrIllegalBase = errors.New("kmer: illegal base")

// ErrKOverflow means K < 1 or K > 128.
var ErrKOverflow = errors.New("kmer: k-mer size [1, 128] overflow")

// Bases maps 2-bit codes to bases. The order defines the order of k-mers.
var Bases = [4]byte{'A', 'C', 'G', 'T'}

// Invalid is the code of a byte not in "ACGTacgt" in Code.
const Invalid uint8 = 4

// Code maps a base to its 2-bit code, Invalid for other bytes.
var Code = [256]uint8{
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 0, 4, 1, 4, 4, 4, 2, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 3, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 0, 4, 1, 4, 4, 4, 2, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 3, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
}

// Kmer is a bit-packed k-mer of at most 128 bases.
// Word 0 holds the lowest 64 bits, i.e., the last 32 bases,
// and the first base occupies the highest used bits.
//
// A Kmer does not know its own k, all methods needing it take k.
type Kmer [MaxWords]uint64

// Words returns the number of 64-bit words needed for a k-mer of size k,
// i.e., the storage tier.
func Words(k int) int {
	return (k + 31) >> 5
}

// Parse encodes a k-mer. Both upper and lower cases are accepted.
func Parse(s []byte) (Kmer, error) {
	var x Kmer
	if len(s) == 0 || len(s) > MaxK {
		return x, ErrKOverflow
	}
	var c uint8
	for _, b := range s {
		c = Code[b]
		if c == Invalid {
			return x, ErrIllegalBase
		}
		x = x.Shl2()
		x[0] |= uint64(c)
	}
	return x, nil
}

// MustParse is like Parse, but panics on error.
func MustParse(s []byte) Kmer {
	x, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return x
}

// FromCode creates a k-mer from a small integer.
func FromCode(code uint64) Kmer {
	return Kmer{code}
}

// Mask returns a k-mer with the lowest 2k bits set.
func Mask(k int) Kmer {
	var m Kmer
	n := k << 1
	for i := 0; i < MaxWords && n > 0; i++ {
		if n >= 64 {
			m[i] = ^uint64(0)
		} else {
			m[i] = 1<<n - 1
		}
		n -= 64
	}
	return m
}

// Shl2 shifts the k-mer left by one base. Bits beyond 256 are dropped.
func (x Kmer) Shl2() Kmer {
	x[3] = x[3]<<2 | x[2]>>62
	x[2] = x[2]<<2 | x[1]>>62
	x[1] = x[1]<<2 | x[0]>>62
	x[0] <<= 2
	return x
}

// Add adds a small value, with carry.
func (x Kmer) Add(v uint64) Kmer {
	for i := 0; i < MaxWords; i++ {
		s := x[i] + v
		carry := s < x[i]
		x[i] = s
		if !carry {
			break
		}
		v = 1
	}
	return x
}

// And returns the bitwise AND.
func (x Kmer) And(m Kmer) Kmer {
	x[0] &= m[0]
	x[1] &= m[1]
	x[2] &= m[2]
	x[3] &= m[3]
	return x
}

// ShiftAppend drops the first base and appends a base of the 2-bit code.
func (x Kmer) ShiftAppend(code uint8, mask Kmer) Kmer {
	x = x.Shl2().And(mask)
	x[0] |= uint64(code)
	return x
}

// Compare returns -1, 0 or 1.
func (x Kmer) Compare(y Kmer) int {
	for i := MaxWords - 1; i >= 0; i-- {
		if x[i] < y[i] {
			return -1
		}
		if x[i] > y[i] {
			return 1
		}
	}
	return 0
}

// Less tells if x < y.
func (x Kmer) Less(y Kmer) bool {
	return x.Compare(y) < 0
}

// BaseAt returns the code of the base in position i (0-based).
func (x Kmer) BaseAt(k int, i int) uint8 {
	off := (k - i - 1) << 1
	return uint8(x[off>>6] >> (off & 63) & 3)
}

// RevComp returns the reverse complement.
func (x Kmer) RevComp(k int) Kmer {
	if k <= 32 {
		return Kmer{kmers.RevComp(x[0], k)}
	}

	var y Kmer
	var off int
	for i := 0; i < k; i++ { // from the last base
		y = y.Shl2()
		off = i << 1
		y[0] |= 3 - (x[off>>6] >> (off & 63) & 3)
	}
	return y
}

// Canonical returns the smaller one of the k-mer and its reverse complement.
func (x Kmer) Canonical(k int) Kmer {
	rc := x.RevComp(k)
	if rc.Less(x) {
		return rc
	}
	return x
}

// Decode converts the k-mer back to bases.
func (x Kmer) Decode(k int) []byte {
	if k <= 32 {
		return kmers.MustDecode(x[0], k)
	}

	s := make([]byte, k)
	for i := range s {
		s[i] = Bases[x.BaseAt(k, i)]
	}
	return s
}

// String returns the words in hexadecimal, only for debugging.
func (x Kmer) String() string {
	return fmt.Sprintf("%016x-%016x-%016x-%016x", x[3], x[2], x[1], x[0])
}

// PutBytes writes the lowest n words into buf in little-endian order.
// buf needs at least 8*n bytes.
func (x Kmer) PutBytes(buf []byte, n int) {
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(buf[i<<3:], x[i])
	}
}

// FromBytes reads n little-endian words.
func FromBytes(buf []byte, n int) Kmer {
	var x Kmer
	for i := 0; i < n; i++ {
		x[i] = binary.LittleEndian.Uint64(buf[i<<3:])
	}
	return x
}
