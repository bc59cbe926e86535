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
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/shenwei356/kgraph/kgraph/kmer"
)

func sameTables(t *testing.T, a, b *Table) bool {
	if a.K() != b.K() || a.Tier() != b.Tier() {
		t.Errorf("Ks unmatched: %d vs %d", a.K(), b.K())
		return false
	}
	if a.Size() != b.Size() {
		t.Errorf("sizes unmatched: %d vs %d", a.Size(), b.Size())
		return false
	}
	var x1, x2 kmer.Kmer
	var v1, v2 uint64
	for i := 0; i < a.Size(); i++ {
		x1, v1 = a.Get(i)
		x2, v2 = b.Get(i)
		if x1 != x2 || v1 != v2 {
			t.Errorf("#%d entry unmatched: (%s, %d) vs (%s, %d)", i, x1, v1, x2, v2)
			return false
		}
	}
	return true
}

func TestSerialization(t *testing.T) {
	for _, k := range testKs {
		tb := newTable(t, k, randKmers(k, 5000, int64(k)))
		for i := 0; i < tb.Size(); i++ {
			tb.SetValue(uint64(i)<<33|uint64(i), i)
		}

		// in memory
		for _, raw := range []bool{true, false} {
			var buf bytes.Buffer
			var N int
			var err error
			if raw {
				N, err = tb.Save(&buf)
			} else {
				N, err = tb.Write(&buf)
			}
			if err != nil {
				t.Error(err)
				return
			}
			if N != buf.Len() {
				t.Errorf("k=%d, number of bytes: %d, expected: %d", k, N, buf.Len())
			}

			var tb2 *Table
			if raw {
				tb2, err = Load(bytes.NewReader(buf.Bytes()))
			} else {
				tb2, err = Read(bytes.NewReader(buf.Bytes()))
			}
			if err != nil {
				t.Error(err)
				return
			}
			if !sameTables(t, tb, tb2) {
				return
			}

			tb3, err := ReadAny(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Error(err)
				return
			}
			if !sameTables(t, tb, tb3) {
				return
			}
		}

		// files
		for _, raw := range []bool{true, false} {
			file := "t.kmertab.gz"
			_, err := tb.WriteToFile(file, raw)
			if err != nil {
				t.Errorf("writing the table to file: %s", err)
				return
			}
			tb2, err := NewFromFile(file)
			if err != nil {
				t.Errorf("new table from file: %s", err)
				return
			}
			if !sameTables(t, tb, tb2) {
				return
			}
			if os.RemoveAll(file) != nil {
				t.Errorf("failed to remove the file: %s", file)
				return
			}
		}
	}
}

func TestRawLayout(t *testing.T) {
	tb, _ := New(40) // two words
	x := kmer.Kmer{0x0102030405060708, 0x1112}
	tb.PushBack(x, 0xabcd)

	var buf bytes.Buffer
	if _, err := tb.Save(&buf); err != nil {
		t.Error(err)
		return
	}

	expected := make([]byte, 4+8+24)
	binary.LittleEndian.PutUint32(expected[0:], 40)
	binary.LittleEndian.PutUint64(expected[4:], 1)
	binary.LittleEndian.PutUint64(expected[12:], x[0])
	binary.LittleEndian.PutUint64(expected[20:], x[1])
	binary.LittleEndian.PutUint64(expected[28:], 0xabcd)
	if !bytes.Equal(buf.Bytes(), expected) {
		t.Errorf("unexpected raw bytes:\n%x\nexpected:\n%x", buf.Bytes(), expected)
	}
}

func TestPortableOrder(t *testing.T) {
	tb := newTable(t, 70, randKmers(70, 100, 1))
	tb.Sort()

	var buf bytes.Buffer
	if _, err := tb.Write(&buf); err != nil {
		t.Error(err)
		return
	}
	data := buf.Bytes()[24:]
	size := (tb.Tier() + 1) << 3
	for i := size; i < len(data); i += size {
		if bytes.Compare(data[i-size:i-8], data[i:i+size-8]) > 0 {
			t.Errorf("bytes of sorted k-mers should be sorted")
			return
		}
	}
}

func TestBrokenFiles(t *testing.T) {
	tb := newTable(t, 21, randKmers(21, 10, 1))
	var buf bytes.Buffer
	tb.Write(&buf)
	data := buf.Bytes()

	if _, err := Read(bytes.NewReader(data[:len(data)-3])); err != ErrBrokenFile {
		t.Errorf("broken file not detected: %v", err)
	}

	data[0] = 'x'
	if _, err := Read(bytes.NewReader(data)); err != ErrInvalidFileFormat {
		t.Errorf("invalid file format not detected: %v", err)
	}

	buf.Reset()
	tb.Save(&buf)
	data = buf.Bytes()
	if _, err := Load(bytes.NewReader(data[:len(data)-1])); err != ErrBrokenFile {
		t.Errorf("broken file not detected: %v", err)
	}

	// wrong numbers of entries
	for _, n := range []uint64{1<<64 - 1, 1 << 62, 1 << 40, 11} {
		broken := make([]byte, len(data))
		copy(broken, data)
		binary.LittleEndian.PutUint64(broken[4:], n)
		if _, err := Load(bytes.NewReader(broken)); err != ErrBrokenFile {
			t.Errorf("raw format, %d entries: %v, expected: %v", n, err, ErrBrokenFile)
		}
	}

	binary.LittleEndian.PutUint32(data, 200)
	if _, err := Load(bytes.NewReader(data)); err != ErrKOverflow {
		t.Errorf("k overflow not detected: %v", err)
	}

	buf.Reset()
	tb.Write(&buf)
	data = buf.Bytes()
	for _, n := range []uint64{1<<64 - 1, 1 << 62, 1 << 40, 11} {
		broken := make([]byte, len(data))
		copy(broken, data)
		binary.BigEndian.PutUint64(broken[16:], n)
		if _, err := Read(bytes.NewReader(broken)); err != ErrBrokenFile {
			t.Errorf("portable format, %d entries: %v, expected: %v", n, err, ErrBrokenFile)
		}
		if _, err := ReadAny(bytes.NewReader(broken)); err != ErrBrokenFile {
			t.Errorf("portable format, %d entries: %v, expected: %v", n, err, ErrBrokenFile)
		}
	}

	for _, data := range [][]byte{nil, Magic[:5]} {
		if _, err := Read(bytes.NewReader(data)); err != ErrBrokenFile {
			t.Errorf("empty or short file not detected: %v", err)
		}
	}

	// an unconfigured table
	empty, _ := New(0)
	buf.Reset()
	empty.Save(&buf)
	tb2, err := Load(&buf)
	if err != nil {
		t.Error(err)
		return
	}
	if tb2.K() != 0 || tb2.Size() != 0 {
		t.Errorf("unexpected table")
	}
}
