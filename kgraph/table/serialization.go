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
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/shenwei356/xopen"
)

var be = binary.BigEndian
var le = binary.LittleEndian

// Magic number for checking file format
var Magic = [8]byte{'.', 'k', 'm', 'e', 'r', 't', 'a', 'b'}

// MainVersion is use for checking compatibility
var MainVersion uint8 = 0

// MinorVersion is less important
var MinorVersion uint8 = 1

// BufferSize is size of reading and writing buffer
var BufferSize = 65536 // os.Getpagesize()

// MaxPrealloc is the maximum number of entries allocated ahead when reading,
// bigger tables grow while the entries are read.
var MaxPrealloc = 1 << 20

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("k-mer table: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("k-mer table: broken file")

// ErrVersionMismatch means version mismatch between files and program
var ErrVersionMismatch = errors.New("k-mer table: version mismatch")

// NewFromFile reads a table from a file in either format,
// optional with file extension of .gz, .xz, .zst, .bz2.
func NewFromFile(file string) (*Table, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return ReadAny(fh)
}

// WriteToFile writes the table to a file, in the raw format if raw is true.
func (t *Table) WriteToFile(file string, raw bool) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}
	defer outfh.Close()

	if raw {
		return t.Save(outfh)
	}
	return t.Write(outfh)
}

// ReadAny reads a table in the portable format or the raw format,
// by checking the magic number.
func ReadAny(r io.Reader) (*Table, error) {
	br := bufio.NewReaderSize(r, BufferSize)
	buf, err := br.Peek(8)
	if err != nil && len(buf) < 4 { // the raw format has at least 4 bytes.
		return nil, ErrBrokenFile
	}
	if bytes.Equal(buf, Magic[:]) {
		return Read(br)
	}
	return Load(br)
}

// Save writes the table in the raw format, which is the memory image of
// the entries on a little-endian 64-bit machine:
//
//	K, 4 bytes, int32.
//	Number of entries, 8 bytes.
//	Entries: words of the k-mer (lowest word first), 8 bytes each; value, 8 bytes.
//
// All numbers are little-endian. There is no magic number or version,
// please use Write for files to keep.
func (t *Table) Save(w io.Writer) (int, error) {
	var N int
	var err error

	bw := bufio.NewWriterSize(w, BufferSize)

	buf := make([]byte, (kmer.MaxWords+1)<<3)

	le.PutUint32(buf[:4], uint32(int32(t.k)))
	_, err = bw.Write(buf[:4])
	if err != nil {
		return N, err
	}
	N += 4

	n := t.Size()
	le.PutUint64(buf[:8], uint64(n))
	_, err = bw.Write(buf[:8])
	if err != nil {
		return N, err
	}
	N += 8

	size := (t.tier + 1) << 3
	off := t.tier << 3
	var x kmer.Kmer
	var v uint64
	for i := 0; i < n; i++ {
		x, v = t.b.get(i)
		x.PutBytes(buf, t.tier)
		le.PutUint64(buf[off:], v)
		_, err = bw.Write(buf[:size])
		if err != nil {
			return N, err
		}
		N += size
	}

	return N, bw.Flush()
}

// Load reads a table in the raw format.
func Load(r io.Reader) (*Table, error) {
	br := bufio.NewReaderSize(r, BufferSize)
	buf := make([]byte, (kmer.MaxWords+1)<<3)

	_, err := io.ReadFull(br, buf[:4])
	if err != nil {
		return nil, ErrBrokenFile
	}
	k := int(int32(le.Uint32(buf[:4])))

	t, err := New(k)
	if err != nil {
		return nil, err
	}

	_, err = io.ReadFull(br, buf[:8])
	if err != nil {
		return nil, ErrBrokenFile
	}
	n, err := entries(le.Uint64(buf[:8]))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return t, nil
	}
	if t.b == nil {
		return nil, ErrUnconfigured
	}

	size := (t.tier + 1) << 3
	off := t.tier << 3
	t.b.grow(min(n, MaxPrealloc))
	for i := 0; i < n; i++ {
		_, err = io.ReadFull(br, buf[:size])
		if err != nil {
			return nil, ErrBrokenFile
		}
		t.b.pushBack(kmer.FromBytes(buf, t.tier), le.Uint64(buf[off:]))
	}

	return t, nil
}

// Write writes the table in the portable format.
//
// Header (24 bytes):
//
//	Magic number, 8 bytes, .kmertab
//	Main and minor versions, 2 bytes
//	K, 1 byte
//	Number of words of a k-mer, 1 byte
//	Blank, 4 bytes
//	Number of entries, 8 bytes
//
// Entries:
//
//	Words of the k-mer, highest word first, 8 bytes each.
//	Value, 8 bytes.
//
// All numbers are big-endian, so the bytes of sorted entries are also sorted.
func (t *Table) Write(w io.Writer) (int, error) {
	var N int
	var err error

	bw := bufio.NewWriterSize(w, BufferSize)

	// 8-byte magic number
	err = binary.Write(bw, be, Magic)
	if err != nil {
		return N, err
	}
	N += 8

	// 8-byte meta info
	err = binary.Write(bw, be, [8]uint8{MainVersion, MinorVersion, uint8(t.k), uint8(t.tier)})
	if err != nil {
		return N, err
	}
	N += 8

	// 8-byte the number of entries
	n := t.Size()
	err = binary.Write(bw, be, uint64(n))
	if err != nil {
		return N, err
	}
	N += 8

	buf := make([]byte, (kmer.MaxWords+1)<<3)
	size := (t.tier + 1) << 3
	off := t.tier << 3
	var x kmer.Kmer
	var v uint64
	var j int
	for i := 0; i < n; i++ {
		x, v = t.b.get(i)
		for j = 0; j < t.tier; j++ {
			be.PutUint64(buf[(t.tier-1-j)<<3:], x[j])
		}
		be.PutUint64(buf[off:], v)
		_, err = bw.Write(buf[:size])
		if err != nil {
			return N, err
		}
		N += size
	}

	return N, bw.Flush()
}

// Read reads a table in the portable format.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReaderSize(r, BufferSize)
	buf := make([]byte, (kmer.MaxWords+1)<<3)

	var err error
	var n int

	// check the magic number
	_, err = io.ReadFull(br, buf[:8])
	if err != nil {
		return nil, ErrBrokenFile
	}
	same := true
	for i := 0; i < 8; i++ {
		if Magic[i] != buf[i] {
			same = false
			break
		}
	}
	if !same {
		return nil, ErrInvalidFileFormat
	}

	// read version information
	_, err = io.ReadFull(br, buf[:8])
	if err != nil {
		return nil, ErrBrokenFile
	}
	// check compatibility
	if MainVersion != buf[0] {
		return nil, ErrVersionMismatch
	}
	k := int(buf[2])
	tier := int(buf[3])

	t, err := New(k)
	if err != nil {
		return nil, err
	}
	if t.tier != tier {
		return nil, ErrInvalidFileFormat
	}

	// the number of entries
	_, err = io.ReadFull(br, buf[:8])
	if err != nil {
		return nil, ErrBrokenFile
	}
	n, err = entries(be.Uint64(buf[:8]))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return t, nil
	}
	if t.b == nil {
		return nil, ErrUnconfigured
	}

	size := (tier + 1) << 3
	off := tier << 3
	var x kmer.Kmer
	var j int
	t.b.grow(min(n, MaxPrealloc))
	for i := 0; i < n; i++ {
		_, err = io.ReadFull(br, buf[:size])
		if err != nil {
			return nil, ErrBrokenFile
		}
		for j = 0; j < tier; j++ {
			x[j] = be.Uint64(buf[(tier-1-j)<<3:])
		}
		t.b.pushBack(x, be.Uint64(buf[off:]))
	}

	return t, nil
}

// entries checks the number of entries in a header.
func entries(n uint64) (int, error) {
	if n > math.MaxInt64>>5 { // no table could be that large
		return 0, ErrBrokenFile
	}
	return int(n), nil
}
