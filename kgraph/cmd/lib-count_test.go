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

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/kgraph/kgraph/graph"
	"github.com/shenwei356/kgraph/kgraph/reads"
	"github.com/shenwei356/kgraph/kgraph/table"
)

func TestSplitSeq(t *testing.T) {
	var frags []string
	collect := func(frag []byte) { frags = append(frags, string(frag)) }

	splitSeq([]byte("NNACGTANNACNGGGCCCTTN"), 3, collect)
	expected := []string{"ACGTA", "GGGCCCTT"}
	if strings.Join(frags, ",") != strings.Join(expected, ",") {
		t.Errorf("fragments: %s, expected: %s", frags, expected)
	}

	// long sequences
	k := 31
	long := bytes.Repeat([]byte("ACGTTGCA"), 20000) // 160000 bp
	frags = frags[:0]
	splitSeq(long, k, collect)
	if len(frags) != 3 {
		t.Errorf("number of pieces: %d, expected: 3", len(frags))
		return
	}
	var nKmers int
	for _, f := range frags {
		if len(f) > reads.MaxReadLen {
			t.Errorf("piece too long: %d", len(f))
		}
		nKmers += len(f) - k + 1
	}
	if nKmers != len(long)-k+1 {
		t.Errorf("number of k-mers: %d, expected: %d", nKmers, len(long)-k+1)
	}
	if frags[1][:k-1] != frags[0][len(frags[0])-k+1:] {
		t.Errorf("pieces should be overlapped by k-1 bases")
	}
}

func TestParseByteSize(t *testing.T) {
	for _, c := range []struct {
		s string
		n int
	}{
		{"", 0},
		{"100", 100},
		{"1K", 1 << 10},
		{"1.5M", 3 << 19},
		{"2G", 2 << 30},
		{"8b", 8},
	} {
		n, err := ParseByteSize(c.s)
		if err != nil {
			t.Errorf("%s: %s", c.s, err)
			continue
		}
		if n != c.n {
			t.Errorf("%s: %d, expected: %d", c.s, n, c.n)
		}
	}
	if _, err := ParseByteSize("1X"); err == nil {
		t.Errorf("invalid byte size not detected")
	}
}

func TestBranchBases(t *testing.T) {
	buf := make([]byte, 0, 4)
	for b, s := range map[uint8]string{0: "-", 1: "A", 0b1010: "CT", 15: "ACGT"} {
		if r := string(branchBases(b, buf)); r != s {
			t.Errorf("%04b: %s, expected: %s", b, r, s)
		}
	}
}

func TestCountKmers(t *testing.T) {
	dir, err := os.MkdirTemp("", "kgraph")
	if err != nil {
		t.Error(err)
		return
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "reads.fa")
	err = os.WriteFile(file, []byte(">r1\nAACCGGTT\n>r2\nACCGGTTA\n>r3\nNNN\n>r4\nACC\n"), 0644)
	if err != nil {
		t.Error(err)
		return
	}

	opt := &CountOptions{
		NumCPUs:      2,
		K:            4,
		MinCount:     1,
		BatchBases:   1 << 20,
		SaveReadsDir: filepath.Join(dir, "reads"),
	}
	if err = CheckCountOptions(opt); err != nil {
		t.Error(err)
		return
	}
	tb, stat, err := CountKmers([]string{file}, opt)
	if err != nil {
		t.Error(err)
		return
	}
	if stat.Reads != 2 || stat.Bases != 16 || stat.Batches != 1 {
		t.Errorf("unexpected stats: %+v", stat)
	}

	g := graph.New(tb)
	if g.Size() != 4 || g.Abundance(g.GetNodeText([]byte("GGTT"))) != 3 {
		t.Errorf("unexpected table: %d k-mers", g.Size())
	}
	s := g.GetNodeSuccessors(g.GetNodeText([]byte("AACC")))
	if len(s) != 1 || s[0].Base != 'C' {
		t.Errorf("unexpected successors of AACC: %v", s)
	}

	// saved reads
	s2, err := reads.NewFromFile(filepath.Join(opt.SaveReadsDir, "batch_0001"+ReadsFileExt))
	if err != nil {
		t.Error(err)
		return
	}
	if s2.NumReads() != 2 || s2.NumBases() != 16 {
		t.Errorf("unexpected saved reads: %d reads, %d bases", s2.NumReads(), s2.NumBases())
	}

	// table and info file
	outFile := filepath.Join(dir, "t.kmertab")
	if _, err = tb.WriteToFile(outFile, false); err != nil {
		t.Error(err)
		return
	}
	info := newTableInfo(tb, false)
	info.Reads = stat.Reads
	if err = writeTableInfo(infoFile(outFile), info); err != nil {
		t.Error(err)
		return
	}
	info2, err := readTableInfo(infoFile(outFile))
	if err != nil {
		t.Error(err)
		return
	}
	if *info2 != *info {
		t.Errorf("unmatched info: %+v vs %+v", info2, info)
	}
	tb2, err := table.NewFromFile(outFile)
	if err != nil {
		t.Error(err)
		return
	}
	if tb2.Size() != tb.Size() || tb2.K() != 4 {
		t.Errorf("unexpected table read from file")
	}
}
