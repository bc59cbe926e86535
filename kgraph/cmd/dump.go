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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shenwei356/kgraph/kgraph/graph"
	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump k-mers of a table in tab-delimited format",
	Long: `Dump k-mers of a table in tab-delimited format

Output format:
  1. kmer,       the k-mer in canonical form
  2. abundance,  the count of the k-mer
  3. plus,       fraction of occurrences in the orientation of column 1
  4. succ,       successor bases of the k-mer, "-" for none
  5. succ_rc,    successor bases of the reverse complement, "-" for none

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		inFile := getFlagString(cmd, "in-file")
		if inFile == "" {
			checkError(fmt.Errorf("flag -i/--in-file is needed"))
		}
		inFile = expandPath(inFile)
		outFile := expandPath(getFlagString(cmd, "out-file"))
		minCount := getFlagPositiveInt(cmd, "min-count")
		noHeader := getFlagBool(cmd, "no-header-row")

		g, err := graph.NewFromFile(inFile)
		if err != nil {
			checkError(fmt.Errorf("failed to read table %s: %s", inFile, err))
		}

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		if !noHeader {
			outfh.WriteString("kmer\tabundance\tplus\tsucc\tsucc_rc\n")
		}

		k := g.K()
		var n, dumped int
		var node graph.Node
		buf := make([]byte, 0, 4)
		g.Table().Walk(func(x kmer.Kmer, v uint64) bool {
			n++
			if v&graph.AbundanceMask < uint64(minCount) {
				return false
			}
			node = graph.Node(n << 1)
			dumped++

			outfh.Write(x.Decode(k))
			outfh.WriteByte('\t')
			outfh.WriteString(strconv.FormatUint(v&graph.AbundanceMask, 10))
			outfh.WriteByte('\t')
			outfh.WriteString(strconv.FormatFloat(g.PlusFraction(node), 'f', 4, 64))
			outfh.WriteByte('\t')
			outfh.Write(branchBases(g.Branch(node), buf))
			outfh.WriteByte('\t')
			outfh.Write(branchBases(g.Branch(graph.ReverseComplement(node)), buf))
			outfh.WriteByte('\n')
			return false
		})

		if opt.Verbose || opt.Log2File {
			log.Infof("%d of %d k-mers dumped from %s", dumped, n, inFile)
		}
	},
}

// branchBases returns the bases in a 4-bit successor mask.
func branchBases(b uint8, buf []byte) []byte {
	buf = buf[:0]
	for c := 0; c < 4; c++ {
		if b&(1<<c) > 0 {
			buf = append(buf, kmer.Bases[c])
		}
	}
	if len(buf) == 0 {
		buf = append(buf, '-')
	}
	return buf
}

func init() {
	RootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringP("in-file", "i", "",
		formatFlagUsage(`Table file.`))

	dumpCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports and recommends a ".gz" suffix ("-" for stdout).`))

	dumpCmd.Flags().IntP("min-count", "m", 1,
		formatFlagUsage(`Only output k-mers with abundance >= this value.`))

	dumpCmd.Flags().BoolP("no-header-row", "H", false,
		formatFlagUsage(`Do not print header row.`))

	dumpCmd.SetUsageTemplate(usageTemplate("-i <table> [-o <out.tsv.gz>]"))
}
