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
	"io"

	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/shenwei356/kgraph/kgraph/table"
	"github.com/shenwei356/xopen"
)

// Layout of the value of a k-mer in the table.
//
//	bits 0-31:  abundance
//	bits 32-35: successors of the k-mer in the saved orientation, one bit for each base
//	bits 36-39: successors of the reverse complement
//	bit  40:    visited flag
//	bits 48-63: fraction of occurrences in the saved orientation, scaled to [0, 65535]
const (
	AbundanceMask = 1<<32 - 1
	BranchShift   = 32
	BranchMask    = 0xff << BranchShift
	VisitedBit    = 1 << 40
	PlusShift     = 48
	PlusScale     = 65535
)

// Node is a k-mer in the graph, 0 for absent k-mers.
//
// The table only saves the canonical form of a k-mer, the one of the k-mer
// and its reverse complement which comes first in order.
// A node is 2*(index+1) for the saved orientation, and plus 1
// for the reverse complement.
type Node uint64

// Index returns the index of the k-mer in the table.
func (n Node) Index() int {
	return int(n>>1) - 1
}

// Minus tells if the node is the reverse complement of the saved k-mer.
func (n Node) Minus() bool {
	return n&1 == 1
}

// ReverseComplement returns the node of the reverse complement k-mer.
func ReverseComplement(n Node) Node {
	if n == 0 {
		return 0
	}
	return n ^ 1
}

// Successor is a node extended from another one with a base.
type Successor struct {
	Node Node
	Base byte
}

// Graph is a de Bruijn graph over a table of canonical k-mers.
// Edges are not saved, successors are found by extending the k-mer with
// each base recorded in the branch bits and searching the table again.
//
// All methods are read-only and safe for concurrent use, except SetVisited
// and ClearVisited, which modify the table in place and need exclusive access.
type Graph struct {
	t    *table.Table
	k    int
	mask kmer.Kmer
}

// New creates a graph from a sorted and deduplicated table.
// The table is not copied.
func New(t *table.Table) *Graph {
	return &Graph{t: t, k: t.K(), mask: kmer.Mask(t.K())}
}

// Read creates a graph from a serialized table.
func Read(r io.Reader) (*Graph, error) {
	t, err := table.ReadAny(r)
	if err != nil {
		return nil, err
	}
	return New(t), nil
}

// NewFromFile creates a graph from a table file.
func NewFromFile(file string) (*Graph, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return Read(fh)
}

// K returns the k-mer size.
func (g *Graph) K() int { return g.k }

// Size returns the number of k-mers, i.e., half of the nodes.
func (g *Graph) Size() int { return g.t.Size() }

// Table returns the underlying table.
func (g *Graph) Table() *table.Table { return g.t }

// GetNode returns the node of a k-mer, 0 for absent k-mers.
func (g *Graph) GetNode(x kmer.Kmer) Node {
	rc := x.RevComp(g.k)
	if !rc.Less(x) {
		i := g.t.Find(x)
		if i == g.t.Size() {
			return 0
		}
		return Node(2 * (i + 1))
	}

	i := g.t.Find(rc)
	if i == g.t.Size() {
		return 0
	}
	return Node(2*(i+1) + 1)
}

// GetNodeText returns the node of a k-mer in bases.
// It returns 0 if the length is not k, or any base is not in "ACGTacgt".
func (g *Graph) GetNodeText(s []byte) Node {
	if len(s) != g.k {
		return 0
	}
	x, err := kmer.Parse(s)
	if err != nil {
		return 0
	}
	return g.GetNode(x)
}

func (g *Graph) value(n Node) uint64 {
	return g.t.GetValue(n.Index())
}

// Abundance returns the count of the k-mer, 0 for node 0.
func (g *Graph) Abundance(n Node) int {
	if n == 0 {
		return 0
	}
	return int(g.value(n) & AbundanceMask)
}

// PlusFraction returns the fraction of the k-mer observed in the orientation
// of the node.
func (g *Graph) PlusFraction(n Node) float64 {
	if n == 0 {
		return 0
	}
	f := float64(g.value(n)>>PlusShift) / PlusScale
	if n.Minus() {
		return 1 - f
	}
	return f
}

// MinFraction returns the fraction of the minority strand,
// which could be used for filtering k-mers of strand bias.
func (g *Graph) MinFraction(n Node) float64 {
	f := g.PlusFraction(n)
	if 1-f < f {
		return 1 - f
	}
	return f
}

// GetNodeKmer returns the k-mer of the node in its orientation.
func (g *Graph) GetNodeKmer(n Node) kmer.Kmer {
	x, _ := g.t.Get(n.Index())
	if n.Minus() {
		return x.RevComp(g.k)
	}
	return x
}

// GetNodeSeq returns the bases of the node.
func (g *Graph) GetNodeSeq(n Node) []byte {
	return g.GetNodeKmer(n).Decode(g.k)
}

// SetVisited marks the node and its reverse complement visited.
// It writes the table, so it must not run concurrently with other methods.
func (g *Graph) SetVisited(n Node) {
	i := n.Index()
	g.t.SetValue(g.t.GetValue(i)|VisitedBit, i)
}

// ClearVisited removes the visited mark. Like SetVisited, it needs exclusive access.
func (g *Graph) ClearVisited(n Node) {
	i := n.Index()
	g.t.SetValue(g.t.GetValue(i)&^VisitedBit, i)
}

// IsVisited tells if the node is visited.
func (g *Graph) IsVisited(n Node) bool {
	return g.value(n)&VisitedBit > 0
}

// Branch returns the 4-bit successor mask of the node.
func (g *Graph) Branch(n Node) uint8 {
	b := uint8(g.value(n) >> BranchShift)
	if n.Minus() {
		return b >> 4
	}
	return b & 15
}

// GetNodeSuccessors returns 0-4 successors, in the order of A, C, G, T.
func (g *Graph) GetNodeSuccessors(n Node) []Successor {
	if n == 0 {
		return nil
	}
	b := g.Branch(n)
	if b == 0 {
		return nil
	}

	shifted := g.GetNodeKmer(n).Shl2().And(g.mask)
	successors := make([]Successor, 0, 4)
	var c uint8
	for c = 0; c < 4; c++ {
		if b&(1<<c) > 0 {
			successors = append(successors, Successor{
				Node: g.GetNode(shifted.Add(uint64(c))),
				Base: kmer.Bases[c],
			})
		}
	}
	return successors
}
