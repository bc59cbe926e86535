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
	"path/filepath"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count k-mers of reads and build a de Bruijn graph",
	Long: `Count k-mers of reads and build a de Bruijn graph

Input:
  1. Input plain or gzipped FASTA/Q files can be given via positional
     arguments or the flag -X/--infile-list with the list of input files,
  2. Or a directory containing sequence files via the flag -I/--in-dir,
     with multiple-level sub-directories allowed. A regular expression
     for matching sequencing files is available via the flag -r/--file-regexp.

Attentions:
  1. Sequences are split at bases beyond ACGT, fragments shorter than k are ignored.
     Fragments longer than 65535 bp are split into pieces with k-1 bp overlapped.
  2. K-mers are counted in canonical form, i.e., the smaller one of a k-mer
     and its reverse complement.
  3. Reads are counted in batches (-b/--batch-size) in parallel.
     All reads are kept in memory (2 bits per base) for annotation,
     so the peak memory grows with the total size of input reads,
     and a smaller batch size only reduces the sizes of temporary tables.
  4. The output table is in a portable format by default, use --raw for
     the compatible raw format (little-endian memory image).
  5. A summary file (<out-file>.toml) is created along with the table.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

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

		// ---------------------------------------------------------------
		// basic flags

		k := getFlagPositiveInt(cmd, "kmer")
		minCount := getFlagPositiveInt(cmd, "min-count")
		batchSize, err := ParseByteSize(getFlagString(cmd, "batch-size"))
		if err != nil {
			checkError(fmt.Errorf("invalid value of -b/--batch-size. supported unit: K, M, G"))
		}
		raw := getFlagBool(cmd, "raw")
		skipAnnotation := getFlagBool(cmd, "skip-annotation")
		saveReadsDir := getFlagString(cmd, "save-reads")
		if saveReadsDir != "" {
			saveReadsDir = expandPath(saveReadsDir)
		}

		outFile := getFlagString(cmd, "out-file")
		force := getFlagBool(cmd, "force")
		skipFileCheck := getFlagBool(cmd, "skip-file-check")

		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file is needed"))
		}
		outFile = expandPath(outFile)
		checkOutFile(outFile, force)

		inDir := getFlagString(cmd, "in-dir")
		readFromDir := inDir != ""
		if readFromDir {
			inDir = expandPath(inDir)
			var isDir bool
			isDir, err = pathutil.IsDir(inDir)
			if err != nil {
				checkError(errors.Wrapf(err, "checking -I/--in-dir"))
			}
			if !isDir {
				checkError(fmt.Errorf("value of -I/--in-dir should be a directory: %s", inDir))
			}
		}

		reFileStr := getFlagString(cmd, "file-regexp")
		var reFile *regexp.Regexp
		if reFileStr != "" {
			if !reIgnoreCase.MatchString(reFileStr) {
				reFileStr = reIgnoreCaseStr + reFileStr
			}
			reFile, err = regexp.Compile(reFileStr)
			checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))
		} else if readFromDir {
			checkError(fmt.Errorf("flag -r/--file-regexp needed for -I/--in-dir"))
		}

		copt := &CountOptions{
			NumCPUs:  opt.NumCPUs,
			Verbose:  opt.Verbose,
			Log2File: opt.Log2File,

			K:          k,
			MinCount:   minCount,
			BatchBases: batchSize,

			SkipAnnotation: skipAnnotation,
			SaveReadsDir:   saveReadsDir,
		}
		checkError(CheckCountOptions(copt))

		// ---------------------------------------------------------------
		// input files

		if opt.Verbose || opt.Log2File {
			log.Infof("kgraph v%s", VERSION)
			log.Info()

			log.Info("checking input files ...")
		}

		var files []string
		if readFromDir {
			files, err = getFileListFromDir(inDir, reFile, opt.NumCPUs)
			if err != nil {
				checkError(errors.Wrapf(err, "walking dir: %s", inDir))
			}
			if len(files) == 0 {
				log.Warningf("  no files matching regular expression: %s", reFileStr)
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, !skipFileCheck, "infile-list", !skipFileCheck)
			if opt.Verbose || opt.Log2File {
				if len(files) == 1 && isStdin(files[0]) {
					log.Info("  no files given, reading from stdin")
				}
			}
		}
		if len(files) < 1 {
			checkError(fmt.Errorf("FASTA/Q files needed"))
		} else if opt.Verbose || opt.Log2File {
			log.Infof("  %d input file(s) given", len(files))
		}

		// ---------------------------------------------------------------
		// log

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Infof("k-mer size: %d", k)
			log.Infof("minimum abundance: %d", minCount)
			log.Infof("batch size: %d bases", batchSize)
			log.Infof("output file: %s", outFile)
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Infof("reading sequences ...")
		}

		// ---------------------------------------------------------------

		t, stat, err := CountKmers(files, copt)
		if err != nil {
			checkError(fmt.Errorf("failed to count k-mers: %s", err))
		}

		dir := filepath.Dir(outFile)
		if err = os.MkdirAll(dir, 0755); err != nil {
			checkError(fmt.Errorf("failed to create dir: %s", err))
		}
		_, err = t.WriteToFile(outFile, raw)
		if err != nil {
			checkError(fmt.Errorf("failed to write the table: %s", err))
		}

		info := newTableInfo(t, raw)
		info.MinCount = minCount
		info.Annotated = !skipAnnotation
		info.InputFiles = stat.Files
		info.Reads = stat.Reads
		info.Bases = stat.Bases
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
	RootCmd.AddCommand(countCmd)

	// -----------------------------  input  -----------------------------

	countCmd.Flags().StringP("in-dir", "I", "",
		formatFlagUsage(`Directory containing FASTA/Q files. Directory symlinks are followed.`))

	countCmd.Flags().StringP("file-regexp", "r", `\.(f[aq](st[aq])?|fna)(.gz)?$`,
		formatFlagUsage(`Regular expression for matching sequence files in -I/--in-dir, case ignored.`))

	countCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	countCmd.Flags().BoolP("skip-file-check", "S", false,
		formatFlagUsage(`Skip input file checking when given files or a file list.`))

	// -----------------------------  output  -----------------------------

	countCmd.Flags().StringP("out-file", "o", "",
		formatFlagUsage(`Output table file, supported extensions: .gz, .xz, .zst, .bz2.`))

	countCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output file.`))

	countCmd.Flags().BoolP("raw", "", false,
		formatFlagUsage(`Write the table in the raw format (little-endian memory image).`))

	countCmd.Flags().StringP("save-reads", "", "",
		formatFlagUsage(`Directory for saving 2bit-packed reads, one file for each batch.`))

	// -----------------------------  k-mers   -----------------------------

	countCmd.Flags().IntP("kmer", "k", 21,
		formatFlagUsage(`K-mer size, valid range: [1, 128].`))

	countCmd.Flags().IntP("min-count", "m", 2,
		formatFlagUsage(`Minimum abundance of k-mers to keep.`))

	countCmd.Flags().StringP("batch-size", "b", "1G",
		formatFlagUsage(`Maximum number of bases in each batch, supported unit: K, M, G.`))

	countCmd.Flags().BoolP("skip-annotation", "", false,
		formatFlagUsage(`Only count k-mers, do not compute successors and strand fractions.`))

	countCmd.SetUsageTemplate(usageTemplate("[-k <k>] [-m <min count>] {[-I <seqs dir>] | <seq files> | -X <file list>} -o <out file>"))
}
