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
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/shenwei356/kgraph/kgraph/graph"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query k-mers in a de Bruijn graph",
	Long: `Query k-mers in a de Bruijn graph

K-mers can be given via positional arguments, or a file (one k-mer per line)
via the flag -f/--kmer-file.

Output format:
  1. query,      the query k-mer
  2. node,       the node id, 0 for absent k-mers
  3. abundance,  the count of the k-mer
  4. plus,       fraction of occurrences in the query orientation
  5. min_frac,   fraction of occurrences in the minority strand
  6. successors, comma-separated successor k-mers, "-" for none

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		inFile := getFlagString(cmd, "in-file")
		if inFile == "" {
			checkError(fmt.Errorf("flag -i/--in-file is needed"))
		}
		inFile = expandPath(inFile)
		kmerFile := getFlagString(cmd, "kmer-file")
		outFile := expandPath(getFlagString(cmd, "out-file"))
		noHeader := getFlagBool(cmd, "no-header-row")

		queries := make([]string, 0, len(args))
		queries = append(queries, args...)
		if kmerFile != "" {
			fh, err := xopen.Ropen(expandPath(kmerFile))
			checkError(err)
			scanner := bufio.NewScanner(fh)
			var line string
			for scanner.Scan() {
				line = strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				queries = append(queries, line)
			}
			checkError(scanner.Err())
			checkError(fh.Close())
		}
		if len(queries) == 0 {
			checkError(fmt.Errorf("no k-mers given"))
		}

		g, err := graph.NewFromFile(inFile)
		if err != nil {
			checkError(fmt.Errorf("failed to read table %s: %s", inFile, err))
		}
		if opt.Verbose {
			log.Infof("%d k-mers (k=%d) loaded from %s", g.Size(), g.K(), inFile)
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
			outfh.WriteString("query\tnode\tabundance\tplus\tmin_frac\tsuccessors\n")
		}

		var node graph.Node
		var found int
		for _, q := range queries {
			if len(q) != g.K() && opt.Verbose {
				log.Warningf("length of %s (%d) != k (%d)", q, len(q), g.K())
			}
			node = g.GetNodeText([]byte(q))

			outfh.WriteString(q)
			outfh.WriteByte('\t')
			outfh.WriteString(strconv.FormatUint(uint64(node), 10))
			if node == 0 {
				outfh.WriteString("\t0\t0\t0\t-\n")
				continue
			}
			found++

			outfh.WriteByte('\t')
			outfh.WriteString(strconv.Itoa(g.Abundance(node)))
			outfh.WriteByte('\t')
			outfh.WriteString(strconv.FormatFloat(g.PlusFraction(node), 'f', 4, 64))
			outfh.WriteByte('\t')
			outfh.WriteString(strconv.FormatFloat(g.MinFraction(node), 'f', 4, 64))
			outfh.WriteByte('\t')

			successors := g.GetNodeSuccessors(node)
			if len(successors) == 0 {
				outfh.WriteByte('-')
			}
			for i, s := range successors {
				if i > 0 {
					outfh.WriteByte(',')
				}
				if s.Node == 0 { // inconsistent successor mask
					outfh.WriteString("?")
					continue
				}
				outfh.Write(g.GetNodeSeq(s.Node))
			}
			outfh.WriteByte('\n')
		}

		if opt.Verbose {
			log.Infof("%d of %d k-mers found", found, len(queries))
		}
	},
}

func init() {
	RootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("in-file", "i", "",
		formatFlagUsage(`Table file.`))

	queryCmd.Flags().StringP("kmer-file", "f", "",
		formatFlagUsage(`File of k-mers, one k-mer per line.`))

	queryCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	queryCmd.Flags().BoolP("no-header-row", "H", false,
		formatFlagUsage(`Do not print header row.`))

	queryCmd.SetUsageTemplate(usageTemplate("-i <table> {<kmers> | -f <kmer file>}"))
}
