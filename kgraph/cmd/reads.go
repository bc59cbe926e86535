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
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/kgraph/kgraph/reads"
	"github.com/spf13/cobra"
)

var readsCmd = &cobra.Command{
	Use:   "reads",
	Short: "Print reads saved by \"count --save-reads\" in FASTA format",
	Long: `Print reads saved by "count --save-reads" in FASTA format

Input is the directory of saved reads (-I/--in-dir), or saved reads files.
Reads are named as "<file name>_<index>", the index is 1-based.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		outFile := expandPath(getFlagString(cmd, "out-file"))
		lineWidth := getFlagNonNegativeInt(cmd, "line-width")
		minLen := getFlagNonNegativeInt(cmd, "min-len")

		var files []string
		var err error
		inDir := getFlagString(cmd, "in-dir")
		if inDir != "" {
			inDir = expandPath(inDir)
			files, err = getFileListFromDir(inDir, reReadsFile, opt.NumCPUs)
			if err != nil {
				checkError(fmt.Errorf("walking dir: %s: %s", inDir, err))
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		}
		if len(files) == 0 {
			checkError(fmt.Errorf("no reads files given"))
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

		var s *reads.Store
		var record *seq.Seq
		var name string
		var n int
		for _, file := range files {
			if isStdin(file) {
				checkError(fmt.Errorf("stdin not supported"))
			}
			s, err = reads.NewFromFile(file)
			if err != nil {
				checkError(fmt.Errorf("failed to read %s: %s", file, err))
			}

			name = strings.TrimSuffix(filepath.Base(file), ReadsFileExt)
			iter := s.Reads()
			for iter.Next() {
				if len(iter.Read()) < minLen {
					continue
				}
				record, err = seq.NewSeqWithoutValidation(seq.DNA, iter.Read())
				checkError(err)

				outfh.WriteByte('>')
				outfh.WriteString(name)
				outfh.WriteByte('_')
				outfh.WriteString(strconv.Itoa(iter.Index() + 1))
				outfh.WriteByte('\n')
				outfh.Write(record.FormatSeq(lineWidth))
				outfh.WriteByte('\n')
				n++
			}
		}

		if opt.Verbose {
			log.Infof("%d reads printed from %d files", n, len(files))
		}
	},
}

var reReadsFile = regexp.MustCompile(regexp.QuoteMeta(ReadsFileExt) + "$")

func init() {
	RootCmd.AddCommand(readsCmd)

	readsCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory of saved reads.`))

	readsCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	readsCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	readsCmd.Flags().IntP("line-width", "w", 60,
		formatFlagUsage(`Line width of sequences (0 for no wrap).`))

	readsCmd.Flags().IntP("min-len", "m", 0,
		formatFlagUsage(`Only print reads no shorter than this value.`))

	readsCmd.SetUsageTemplate(usageTemplate("{-I <reads dir> | <reads files>}"))
}
