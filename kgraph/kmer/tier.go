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

// K1, K2, K3 and K4 are the storage forms of k-mers of 1-4 words,
// i.e., k <= 32, 64, 96 and 128. Word 0 is the lowest.
type K1 [1]uint64

// K2 stores a k-mer of 33-64 bases.
type K2 [2]uint64

// K3 stores a k-mer of 65-96 bases.
type K3 [3]uint64

// K4 stores a k-mer of 97-128 bases.
type K4 [4]uint64

// K1 narrows the k-mer to one word.
func (x Kmer) K1() K1 { return K1{x[0]} }

// K2 narrows the k-mer to two words.
func (x Kmer) K2() K2 { return K2{x[0], x[1]} }

// K3 narrows the k-mer to three words.
func (x Kmer) K3() K3 { return K3{x[0], x[1], x[2]} }

// K4 narrows the k-mer to four words.
func (x Kmer) K4() K4 { return K4(x) }

func (a K1) Wide() Kmer { return Kmer{a[0]} }
func (a K2) Wide() Kmer { return Kmer{a[0], a[1]} }
func (a K3) Wide() Kmer { return Kmer{a[0], a[1], a[2]} }
func (a K4) Wide() Kmer { return Kmer(a) }

func (a K1) Less(b K1) bool { return a[0] < b[0] }

func (a K2) Less(b K2) bool {
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[0] < b[0]
}

func (a K3) Less(b K3) bool {
	if a[2] != b[2] {
		return a[2] < b[2]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[0] < b[0]
}

func (a K4) Less(b K4) bool {
	return Kmer(a).Less(Kmer(b))
}
