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
	"strings"

	"github.com/shenwei356/kgraph/kgraph/table"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information of k-mer tables",
	Long: `Show information of k-mer tables

Information is read from the summary file (<table>.toml) if it exists,
otherwise the table is loaded, and columns of input data are empty.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		outFile := expandPath(getFlagString(cmd, "out-file"))
		noHeader := getFlagBool(cmd, "no-header-row")

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		for _, file := range files {
			if isStdin(file) {
				checkError(fmt.Errorf("stdin not supported"))
			}
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
			outfh.WriteString("file\tformat\tversion\tk\ttier\tkmers\tmin_count\tannotated\tinput_files\treads\tbases\n")
		}

		var info *TableInfo
		for _, file := range files {
			fileInfo := infoFile(file)
			existed, err := pathutil.Exists(fileInfo)
			checkError(err)

			if existed {
				info, err = readTableInfo(fileInfo)
				if err != nil {
					checkError(fmt.Errorf("failed to read info file %s: %s", fileInfo, err))
				}
				fmt.Fprintf(outfh, "%s\t%s\tv%d.%d\t%d\t%d\t%d\t%d\t%v\t%d\t%d\t%d\n",
					file, info.Format, info.MainVersion, info.MinorVersion,
					info.K, info.Tier, info.Entries, info.MinCount, info.Annotated,
					info.InputFiles, info.Reads, info.Bases)
				continue
			}

			if opt.Verbose {
				log.Infof("no info file found, loading table: %s", file)
			}
			t, err := table.NewFromFile(file)
			if err != nil {
				checkError(fmt.Errorf("failed to read table %s: %s", file, err))
			}
			fmt.Fprintf(outfh, "%s\t\t\t%d\t%d\t%d\t\t\t\t\t\n",
				file, t.K(), t.Tier(), t.Size())
		}
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input table list (one file per line). If given, they are appended to files from CLI arguments.`))

	infoCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	infoCmd.Flags().BoolP("no-header-row", "H", false,
		formatFlagUsage(`Do not print header row.`))

	infoCmd.SetUsageTemplate(usageTemplate("{<table files> | -X <file list>}"))
}
