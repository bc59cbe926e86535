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
	"bytes"
	"math/rand"
	"os"
	"testing"

	"github.com/shenwei356/kgraph/kgraph/kmer"
)

var _seqs = [][]byte{
	[]byte("ACGTACGT"),
	[]byte("A"),
	[]byte("CA"),
	[]byte("CAT"),
	[]byte("CATGCCACG"),
	[]byte("ACCCTCGAGCGACTAG"),
	[]byte("ACTAGACGACGTACGCGTACGTAGTACGATGCTCGA"),
	[]byte("ACGCAGTCGTCATCATGCGTGTCGCATGAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAACATGCTGCATGCAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAATGCTGTGATGCGTCTCAGTAGATGAT"),
	[]byte("GT"),
}

func newStore(t *testing.T, seqs [][]byte) *Store {
	s := NewStore()
	for _, seq := range seqs {
		if err := s.InsertRead(seq); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

// slidingKmers returns all k-mers of the reads, from left to right.
func slidingKmers(seqs [][]byte, k int) []kmer.Kmer {
	list := make([]kmer.Kmer, 0, 1024)
	for _, seq := range seqs {
		for i := 0; i+k <= len(seq); i++ {
			list = append(list, kmer.MustParse(seq[i:i+k]))
		}
	}
	return list
}

func checkKmers(t *testing.T, s *Store, seqs [][]byte, k int) bool {
	expected := slidingKmers(seqs, k)

	it, err := s.Kmers(k)
	if err != nil {
		t.Error(err)
		return false
	}
	var i int
	for it.Next() {
		if i >= len(expected) {
			t.Errorf("k=%d, more k-mers than expected: %d", k, len(expected))
			return false
		}
		if it.Kmer() != expected[i] {
			t.Errorf("k=%d, #%d k-mer, expected: %s, result: %s",
				k, i, expected[i].Decode(k), it.Kmer().Decode(k))
			return false
		}
		i++
	}
	if i != len(expected) {
		t.Errorf("k=%d, number of k-mers: %d, expected: %d", k, i, len(expected))
		return false
	}
	if it.Next() {
		t.Errorf("k=%d, exhausted iterator should stay exhausted", k)
		return false
	}
	return true
}

func TestKmerIterator(t *testing.T) {
	s := newStore(t, [][]byte{[]byte("ACGTACGT")})

	it, err := s.Kmers(3)
	if err != nil {
		t.Error(err)
		return
	}
	expected := []string{"ACG", "CGT", "GTA", "TAC", "ACG", "CGT"}
	var result []string
	for it.Next() {
		result = append(result, string(it.Kmer().Decode(3)))
	}
	if len(result) != len(expected) {
		t.Errorf("expected: %s, result: %s", expected, result)
		return
	}
	for i, e := range expected {
		if result[i] != e {
			t.Errorf("expected: %s, result: %s", expected, result)
			return
		}
	}

	s = newStore(t, _seqs)
	for _, k := range []int{1, 2, 3, 5, 16, 31, 32, 33} {
		if !checkKmers(t, s, _seqs, k) {
			return
		}
	}

	// all reads are shorter than k
	it, _ = s.Kmers(kmer.MaxK)
	if it.Next() {
		t.Errorf("no k-mers expected")
	}

	if _, err = s.Kmers(0); err == nil {
		t.Errorf("k=0 should not be accepted")
	}
}

func TestKmerIteratorRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	seqs := make([][]byte, 200)
	for i := range seqs {
		seqs[i] = make([]byte, r.Intn(300))
		for j := range seqs[i] {
			seqs[i][j] = kmer.Bases[r.Intn(4)]
		}
	}
	s := newStore(t, seqs)

	for _, k := range []int{7, 21, 31, 32, 33, 55, 63, 64, 65, 96, 97, 127, 128} {
		if !checkKmers(t, s, seqs, k) {
			return
		}
	}
}

func TestReadIterator(t *testing.T) {
	s := newStore(t, _seqs)

	if s.NumReads() != len(_seqs) {
		t.Errorf("number of reads: %d, expected: %d", s.NumReads(), len(_seqs))
	}
	var n int
	for _, seq := range _seqs {
		n += len(seq)
	}
	if s.NumBases() != n {
		t.Errorf("number of bases: %d, expected: %d", s.NumBases(), n)
	}

	it := s.Reads()
	var i int
	for it.Next() {
		if !bytes.Equal(it.Read(), _seqs[i]) {
			t.Errorf("#%d read, expected: %s, result: %s", i, _seqs[i], it.Read())
			return
		}
		if it.Index() != i || s.Len(i) != len(_seqs[i]) {
			t.Errorf("#%d read, unexpected index or length", i)
		}
		i++
	}
	if i != len(_seqs) {
		t.Errorf("number of reads: %d, expected: %d", i, len(_seqs))
	}
	if it.Next() || it.Next() {
		t.Errorf("an exhausted iterator should keep returning false")
	}

	it = NewStore().Reads()
	if it.Next() || it.Next() {
		t.Errorf("an empty store has no reads")
	}

	// lower case bases
	s = newStore(t, [][]byte{[]byte("acgTTg")})
	it = s.Reads()
	if !it.Next() || string(it.Read()) != "ACGTTG" {
		t.Errorf("lower case bases should be converted")
	}

	if err := s.InsertRead(make([]byte, MaxReadLen+1)); err != ErrReadTooLong {
		t.Errorf("long read not detected")
	}
}

func TestSerialization(t *testing.T) {
	s := newStore(t, _seqs)

	file := "t.2bitrds.gz"
	_, err := s.WriteToFile(file)
	if err != nil {
		t.Error(err)
		return
	}

	s2, err := NewFromFile(file)
	if err != nil {
		t.Error(err)
		return
	}

	if s2.NumReads() != s.NumReads() || s2.NumBases() != s.NumBases() {
		t.Errorf("numbers of reads or bases unmatched")
		return
	}
	it := s2.Reads()
	var i int
	for it.Next() {
		if !bytes.Equal(it.Read(), _seqs[i]) {
			t.Errorf("#%d read, expected: %s, result: %s", i, _seqs[i], it.Read())
			return
		}
		i++
	}

	_, err = Read(bytes.NewReader([]byte("not a reads file")))
	if err != ErrInvalidFileFormat {
		t.Errorf("invalid file format not detected: %v", err)
	}

	if os.RemoveAll(file) != nil {
		t.Errorf("failed to remove the file: %s", file)
		return
	}
}

func TestBrokenFiles(t *testing.T) {
	s := newStore(t, _seqs)
	var buf bytes.Buffer
	if _, err := s.Write(&buf); err != nil {
		t.Error(err)
		return
	}
	data := buf.Bytes()

	if _, err := Read(bytes.NewReader(nil)); err != ErrBrokenFile {
		t.Errorf("empty file not detected: %v", err)
	}
	if _, err := Read(bytes.NewReader(data[:len(data)-3])); err != ErrBrokenFile {
		t.Errorf("broken file not detected: %v", err)
	}

	// header: magic, versions, reads, bases, words
	for _, c := range []struct {
		off   int
		value uint64
		err   error
	}{
		{16, 1<<64 - 1, ErrBrokenFile},
		{16, 1 << 62, ErrBrokenFile},
		{16, 1 << 40, ErrBrokenFile},
		{24, 1<<64 - 1, ErrInvalidTwoBitData},
		{32, 1<<64 - 1, ErrInvalidTwoBitData},
		{32, 1 << 40, ErrInvalidTwoBitData},
	} {
		broken := make([]byte, len(data))
		copy(broken, data)
		be.PutUint64(broken[c.off:], c.value)
		if _, err := Read(bytes.NewReader(broken)); err != c.err {
			t.Errorf("header field at %d of %d: %v, expected: %v", c.off, c.value, err, c.err)
		}
	}
}

