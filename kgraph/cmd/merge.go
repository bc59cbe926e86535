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
	"time"

	"github.com/shenwei356/kgraph/kgraph/counter"
	"github.com/shenwei356/kgraph/kgraph/table"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge k-mer tables",
	Long: `Merge k-mer tables

Attentions:
  1. All tables should have the same k-mer size.
  2. Abundances of a k-mer are summed up, successors are combined, and
     strand fractions are averaged by abundances.
  3. All tables are loaded into memory.

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

		minCount := getFlagPositiveInt(cmd, "min-count")
		raw := getFlagBool(cmd, "raw")
		outFile := getFlagString(cmd, "out-file")
		force := getFlagBool(cmd, "force")
		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file is needed"))
		}
		outFile = expandPath(outFile)
		checkOutFile(outFile, force)

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if len(files) < 2 {
			checkError(fmt.Errorf("at least two tables needed"))
		}
		for _, file := range files {
			if isStdin(file) {
				checkError(fmt.Errorf("stdin not supported"))
			}
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("loading %d tables ...", len(files))
		}
		tables := make([]*table.Table, len(files))
		var reads, bases, inputFiles int
		var err error
		for i, file := range files {
			tables[i], err = table.NewFromFile(file)
			if err != nil {
				checkError(fmt.Errorf("failed to read table %s: %s", file, err))
			}
			if opt.Verbose || opt.Log2File {
				log.Infof("  %s: k=%d, %d k-mers", file, tables[i].K(), tables[i].Size())
			}

			// the info file is optional
			if info, err := readTableInfo(infoFile(file)); err == nil {
				reads += info.Reads
				bases += info.Bases
				inputFiles += info.InputFiles
			}
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("merging ...")
		}
		t, err := counter.Merge(tables, minCount)
		if err != nil {
			checkError(fmt.Errorf("failed to merge tables: %s", err))
		}

		_, err = t.WriteToFile(outFile, raw)
		if err != nil {
			checkError(fmt.Errorf("failed to write the table: %s", err))
		}

		info := newTableInfo(t, raw)
		info.MinCount = minCount
		info.Annotated = true
		info.InputFiles = inputFiles
		info.Reads = reads
		info.Bases = bases
		err = writeTableInfo(infoFile(outFile), info)
		if err != nil {
			checkError(fmt.Errorf("failed to write info file: %s", err))
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("%d k-mers saved to %s", t.Size(), outFile)
		}
	},
}

func init() {
	RootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input table list (one file per line). If given, they are appended to files from CLI arguments.`))

	mergeCmd.Flags().StringP("out-file", "o", "",
		formatFlagUsage(`Output table file, supported extensions: .gz, .xz, .zst, .bz2.`))

	mergeCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output file.`))

	mergeCmd.Flags().BoolP("raw", "", false,
		formatFlagUsage(`Write the table in the raw format (little-endian memory image).`))

	mergeCmd.Flags().IntP("min-count", "m", 2,
		formatFlagUsage(`Minimum abundance of k-mers to keep.`))

	mergeCmd.SetUsageTemplate(usageTemplate("[-m <min count>] {<table files> | -X <file list>} -o <out file>"))
}
