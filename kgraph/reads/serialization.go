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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/shenwei356/xopen"
)

var be = binary.BigEndian

// Magic number for checking file format
var Magic = [8]byte{'.', '2', 'b', 'i', 't', 'r', 'd', 's'}

// MainVersion is use for checking compatibility
var MainVersion uint8 = 0

// MinorVersion is less important
var MinorVersion uint8 = 1

// BufferSize is size of reading and writing buffer
var BufferSize = 65536 // os.Getpagesize()

// MaxPrealloc is the maximum number of reads or words allocated ahead when reading.
var MaxPrealloc = 1 << 20

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("packed reads: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("packed reads: broken file")

// ErrInvalidTwoBitData means the number of words does not match the number of bases.
var ErrInvalidTwoBitData = errors.New("packed reads: invalid two-bit data")

// ErrVersionMismatch means version mismatch between files and program
var ErrVersionMismatch = errors.New("packed reads: version mismatch")

// NewFromFile reads a Store from a file.
func NewFromFile(file string) (*Store, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return Read(fh)
}

// WriteToFile writes the reads to a file, optional with file extension of .gz, .xz, .zst, .bz2.
func (s *Store) WriteToFile(file string) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}
	defer outfh.Close()

	return s.Write(outfh)
}

// Write writes the reads to a writer.
//
// Header (40 bytes):
//
//	Magic number, 8 bytes, .2bitrds
//	Main and minor versions, 2 bytes
//	Blank, 6 bytes
//	Number of reads, 8 bytes
//	Number of bases, 8 bytes
//	Number of words, 8 bytes
//
// Data:
//
//	Lengths of reads, 2 bytes each
//	2bit-packed bases, 8 bytes each word
func (s *Store) Write(w io.Writer) (int, error) {
	var N int // the number of bytes.
	var err error

	bw := bufio.NewWriterSize(w, BufferSize)

	// 8-byte magic number
	err = binary.Write(bw, be, Magic)
	if err != nil {
		return N, err
	}
	N += 8

	// 8-byte meta info
	err = binary.Write(bw, be, [8]uint8{MainVersion, MinorVersion})
	if err != nil {
		return N, err
	}
	N += 8

	// 24-byte numbers
	err = binary.Write(bw, be, [3]uint64{uint64(len(s.lengths)), uint64(s.total), uint64(len(s.storage))})
	if err != nil {
		return N, err
	}
	N += 24

	buf := make([]byte, 8)
	for _, l := range s.lengths {
		be.PutUint16(buf[:2], l)
		_, err = bw.Write(buf[:2])
		if err != nil {
			return N, err
		}
		N += 2
	}

	for _, v := range s.storage {
		be.PutUint64(buf, v)
		_, err = bw.Write(buf)
		if err != nil {
			return N, err
		}
		N += 8
	}

	return N, bw.Flush()
}

// Read reads a Store from an io.Reader.
func Read(r io.Reader) (*Store, error) {
	br := bufio.NewReaderSize(r, BufferSize)
	buf := make([]byte, 24)

	var err error

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

	_, err = io.ReadFull(br, buf[:24])
	if err != nil {
		return nil, ErrBrokenFile
	}
	nReads := be.Uint64(buf[:8])
	total := be.Uint64(buf[8:16])
	nWords := be.Uint64(buf[16:24])

	if nReads > math.MaxInt64>>17 { // so nReads*MaxReadLen does not overflow
		return nil, ErrBrokenFile
	}
	if total > nReads*MaxReadLen || nWords != (total+31)>>5 {
		return nil, ErrInvalidTwoBitData
	}

	s := &Store{
		storage: make([]uint64, 0, min(nWords, uint64(MaxPrealloc))),
		lengths: make([]uint16, 0, min(nReads, uint64(MaxPrealloc))),
		total:   int(total),
	}

	var sum uint64
	var l uint16
	for i := uint64(0); i < nReads; i++ {
		_, err = io.ReadFull(br, buf[:2])
		if err != nil {
			return nil, ErrBrokenFile
		}
		l = be.Uint16(buf[:2])
		s.lengths = append(s.lengths, l)
		sum += uint64(l)
	}
	if sum != total {
		return nil, ErrInvalidTwoBitData
	}

	for i := uint64(0); i < nWords; i++ {
		_, err = io.ReadFull(br, buf[:8])
		if err != nil {
			return nil, ErrBrokenFile
		}
		s.storage = append(s.storage, be.Uint64(buf[:8]))
	}

	return s, nil
}
