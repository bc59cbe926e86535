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

package graph

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/shenwei356/kgraph/kgraph/table"
)

// a tiny graph of k=3: AAC -> ACC, and GGT -> GTT on the other strand.
func tinyGraph(t *testing.T) *Graph {
	tb, err := table.New(3)
	if err != nil {
		t.Fatal(err)
	}
	tb.PushBack(kmer.MustParse([]byte("AAC")), PlusScale<<PlusShift|0x2<<BranchShift|3)
	tb.PushBack(kmer.MustParse([]byte("ACC")), 0x8000<<PlusShift|0x80<<BranchShift|2)
	tb.Sort()
	return New(tb)
}

func TestNodes(t *testing.T) {
	g := tinyGraph(t)
	if g.K() != 3 || g.Size() != 2 {
		t.Errorf("unexpected graph: k=%d, size=%d", g.K(), g.Size())
		return
	}

	for _, c := range []struct {
		s    string
		node Node
	}{
		{"AAC", 2},
		{"GTT", 3},
		{"ACC", 4},
		{"GGT", 5},
		{"aac", 2},
		{"AAA", 0},
		{"AAN", 0},
		{"AACC", 0},
		{"", 0},
	} {
		if n := g.GetNodeText([]byte(c.s)); n != c.node {
			t.Errorf("%s: node %d, expected: %d", c.s, n, c.node)
		}
	}

	for _, n := range []Node{2, 3, 4, 5} {
		if ReverseComplement(ReverseComplement(n)) != n {
			t.Errorf("reverse complement of node %d is not an involution", n)
		}
		seq := g.GetNodeSeq(n)
		if g.GetNodeText(seq) != n {
			t.Errorf("node %d: sequence %s points to another node", n, seq)
		}
		rc := g.GetNodeKmer(ReverseComplement(n))
		if rc != g.GetNodeKmer(n).RevComp(3) {
			t.Errorf("node %d: unexpected k-mer of the reverse complement", n)
		}
		if g.Abundance(n) != g.Abundance(ReverseComplement(n)) {
			t.Errorf("node %d: abundances of two strands differ", n)
		}
	}
	if ReverseComplement(0) != 0 {
		t.Errorf("reverse complement of node 0 should be 0")
	}
	if g.Abundance(0) != 0 {
		t.Errorf("abundance of node 0 should be 0")
	}
}

func TestFractions(t *testing.T) {
	g := tinyGraph(t)
	if g.PlusFraction(2) != 1 || g.PlusFraction(3) != 0 || g.MinFraction(2) != 0 {
		t.Errorf("unexpected fractions of AAC: %f, %f", g.PlusFraction(2), g.PlusFraction(3))
	}
	f := g.PlusFraction(4)
	if f < 0.49 || f > 0.51 || g.PlusFraction(5)+f != 1 || g.MinFraction(5) > 0.51 {
		t.Errorf("unexpected fractions of ACC: %f, %f", f, g.PlusFraction(5))
	}
}

func TestSuccessors(t *testing.T) {
	g := tinyGraph(t)

	s := g.GetNodeSuccessors(g.GetNodeText([]byte("AAC")))
	if len(s) != 1 || s[0].Base != 'C' || !bytes.Equal(g.GetNodeSeq(s[0].Node), []byte("ACC")) {
		t.Errorf("unexpected successors of AAC: %v", s)
	}

	s = g.GetNodeSuccessors(g.GetNodeText([]byte("GGT")))
	if len(s) != 1 || s[0].Base != 'T' || s[0].Node != 3 {
		t.Errorf("unexpected successors of GGT: %v", s)
	}

	for _, n := range []Node{0, 3, 4} {
		if s = g.GetNodeSuccessors(n); len(s) != 0 {
			t.Errorf("node %d should have no successors: %v", n, s)
		}
	}
}

func TestSuccessorBound(t *testing.T) {
	k := 41
	r := rand.New(rand.NewSource(1))
	tb, _ := table.New(k)
	mask := kmer.Mask(k)
	for i := 0; i < 1000; i++ {
		var x kmer.Kmer
		for j := range x {
			x[j] = r.Uint64()
		}
		x = x.And(mask).Canonical(k)
		tb.PushBack(x, uint64(r.Intn(256))<<BranchShift|1)
	}
	tb.Sort()
	out, _ := table.New(k)
	if err := tb.ExtractUniqueAbove(1, out); err != nil {
		t.Error(err)
		return
	}
	g := New(out)

	var n Node
	var s []Successor
	for i := 0; i < g.Size(); i++ {
		for _, n = range []Node{Node(2 * (i + 1)), Node(2*(i+1) + 1)} {
			s = g.GetNodeSuccessors(n)
			if len(s) > 4 {
				t.Errorf("too many successors: %d", len(s))
				return
			}
			suffix := g.GetNodeSeq(n)[1:]
			for j, c := range s {
				if j > 0 && c.Base <= s[j-1].Base {
					t.Errorf("successors are not in order of bases")
					return
				}
				if c.Node == 0 {
					continue
				}
				if !bytes.Equal(g.GetNodeSeq(c.Node), append(suffix, c.Base)) {
					t.Errorf("successor %s is not an extension of %s", g.GetNodeSeq(c.Node), g.GetNodeSeq(n))
					return
				}
			}
		}
	}
}

func TestVisited(t *testing.T) {
	g := tinyGraph(t)
	n := g.GetNodeText([]byte("ACC"))
	if g.IsVisited(n) {
		t.Errorf("new node should not be visited")
	}
	g.SetVisited(n)
	if !g.IsVisited(n) || !g.IsVisited(ReverseComplement(n)) {
		t.Errorf("visited flag should be shared by both strands")
	}
	if g.Abundance(n) != 2 || len(g.GetNodeSuccessors(ReverseComplement(n))) != 1 {
		t.Errorf("visited flag should not touch other fields")
	}
	g.ClearVisited(n)
	if g.IsVisited(n) {
		t.Errorf("visited flag not cleared")
	}
}

func TestReadGraph(t *testing.T) {
	g := tinyGraph(t)
	for _, raw := range []bool{true, false} {
		var buf bytes.Buffer
		var err error
		if raw {
			_, err = g.Table().Save(&buf)
		} else {
			_, err = g.Table().Write(&buf)
		}
		if err != nil {
			t.Error(err)
			return
		}
		g2, err := Read(&buf)
		if err != nil {
			t.Error(err)
			return
		}
		if g2.GetNodeText([]byte("GGT")) != 5 || g2.Abundance(5) != 2 {
			t.Errorf("unexpected graph read from bytes")
		}
	}
}
