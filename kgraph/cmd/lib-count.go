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
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/kgraph/kgraph/counter"
	"github.com/shenwei356/kgraph/kgraph/kmer"
	"github.com/shenwei356/kgraph/kgraph/reads"
	"github.com/shenwei356/kgraph/kgraph/table"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ReadsFileExt is the file extension of saved reads.
const ReadsFileExt = ".2bitrds.gz"

// CountOptions contains the options of k-mer counting.
type CountOptions struct {
	// general
	NumCPUs  int
	Verbose  bool // show log
	Log2File bool // log file

	K        int // k-mer size
	MinCount int // minimum abundance

	BatchBases int // the maximum number of bases of a batch of reads

	SkipAnnotation bool   // only count k-mers
	SaveReadsDir   string // directory for saving packed reads
}

// CheckCountOptions checks the options.
func CheckCountOptions(opt *CountOptions) error {
	if opt.K < 1 || opt.K > kmer.MaxK {
		return fmt.Errorf("invalid k value: %d, valid range: [1, %d]", opt.K, kmer.MaxK)
	}
	if opt.MinCount < 1 {
		return fmt.Errorf("invalid minimum count: %d, should be >= 1", opt.MinCount)
	}
	if opt.BatchBases < reads.MaxReadLen {
		return fmt.Errorf("invalid batch size: %d, should be >= %d", opt.BatchBases, reads.MaxReadLen)
	}
	return nil
}

// CountStat contains the statistics of input data.
type CountStat struct {
	Files   int
	Reads   int // the number of fragments inserted
	Bases   int
	Batches int
}

// CountKmers reads sequences from files, and counts k-mers.
func CountKmers(files []string, opt *CountOptions) (*table.Table, *CountStat, error) {
	stores, stat, err := loadReads(files, opt)
	if err != nil {
		return nil, nil, err
	}

	if opt.SaveReadsDir != "" {
		if err = saveReads(stores, opt.SaveReadsDir); err != nil {
			return nil, nil, err
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("  %d batches of reads saved to %s", len(stores), opt.SaveReadsDir)
		}
	}

	if opt.Verbose || opt.Log2File {
		log.Infof("counting k-mers of %d batches ...", len(stores))
	}
	timeStart := time.Now()
	copt := &counter.Options{
		K:        opt.K,
		MinCount: opt.MinCount,
		Threads:  opt.NumCPUs,
	}
	t, err := counter.Count(stores, copt)
	if err != nil {
		return nil, nil, err
	}
	if opt.Verbose || opt.Log2File {
		log.Infof("  %d distinct k-mers with abundance >= %d counted in %s", t.Size(), opt.MinCount, time.Since(timeStart))
	}

	if !opt.SkipAnnotation {
		if opt.Verbose || opt.Log2File {
			log.Infof("annotating successors and strand fractions ...")
		}
		timeStart = time.Now()
		if err = counter.Annotate(t, stores); err != nil {
			return nil, nil, err
		}
		if opt.Verbose || opt.Log2File {
			log.Infof("  finished in %s", time.Since(timeStart))
		}
	}

	return t, stat, nil
}

// loadReads reads sequences of all files into batches.
// Sequences are split at bases beyond ACGT, fragments shorter than k are dropped.
func loadReads(files []string, opt *CountOptions) ([]*reads.Store, *CountStat, error) {
	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	var chDuration chan time.Duration
	var doneDuration chan int
	if opt.Verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(files)),
			mpb.PrependDecorators(
				decor.Name("processed files: ", decor.WC{W: len("processed files: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)

		chDuration = make(chan time.Duration, opt.NumCPUs)
		doneDuration = make(chan int)
		go func() {
			for t := range chDuration {
				bar.Increment()
				bar.EwmaIncrBy(1, t)
			}
			doneDuration <- 1
		}()
	}

	// collect fragments into batches
	stat := &CountStat{Files: len(files)}
	stores := make([]*reads.Store, 0, 8)
	store := reads.NewStore()
	var errInsert error
	chFrags := make(chan []byte, opt.NumCPUs)
	doneFrags := make(chan int)
	go func() {
		for frag := range chFrags {
			if store.NumReads() > 0 && store.NumBases()+len(frag) > opt.BatchBases {
				stores = append(stores, store)
				store = reads.NewStore()
			}
			if err := store.InsertRead(frag); err != nil && errInsert == nil {
				errInsert = err
			}
			stat.Reads++
			stat.Bases += len(frag)
		}
		doneFrags <- 1
	}()

	var errRead error
	var mu sync.Mutex
	var wg sync.WaitGroup                 // ensure all jobs done
	tokens := make(chan int, opt.NumCPUs) // control the max concurrency number
	for _, file := range files {
		tokens <- 1
		wg.Add(1)

		go func(file string) {
			defer func() {
				wg.Done()
				<-tokens
			}()
			startTime := time.Now()

			err := readFragments(file, opt.K, chFrags)
			if err != nil {
				mu.Lock()
				if errRead == nil {
					errRead = err
				}
				mu.Unlock()
			}

			if opt.Verbose {
				chDuration <- time.Since(startTime)
			}
		}(file)
	}
	wg.Wait()
	close(chFrags)
	<-doneFrags

	if opt.Verbose {
		close(chDuration)
		<-doneDuration
		pbs.Wait()
	}

	if errRead != nil {
		return nil, nil, errRead
	}
	if errInsert != nil {
		return nil, nil, errInsert
	}

	if store.NumReads() > 0 {
		stores = append(stores, store)
	}
	stat.Batches = len(stores)

	if opt.Verbose || opt.Log2File {
		log.Infof("  %d fragments with %d bases loaded into %d batches", stat.Reads, stat.Bases, stat.Batches)
	}

	return stores, stat, nil
}

// readFragments sends ACGT-only fragments (>= k bp) of all sequences in a file
// to the channel. Fragments longer than 65535 bp are split with k-1 bases overlapped.
func readFragments(file string, k int, ch chan []byte) error {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return fmt.Errorf("failed to read seq file: %s", err)
	}
	defer fastxReader.Close()

	var record *fastx.Record
	var i int
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read seq %d in %s: %s", i, file, err)
		}
		i++

		splitSeq(record.Seq.Seq, k, func(frag []byte) {
			// the record is reused by the reader
			f := make([]byte, len(frag))
			copy(f, frag)
			ch <- f
		})
	}
	return nil
}

// splitSeq splits a sequence at bases beyond ACGT, and splits long fragments
// into pieces of at most 65535 bp with k-1 bases overlapped.
func splitSeq(s []byte, k int, f func(frag []byte)) {
	var begin, end int
	for begin < len(s) {
		for begin < len(s) && kmer.Code[s[begin]] == kmer.Invalid {
			begin++
		}
		end = begin
		for end < len(s) && kmer.Code[s[end]] != kmer.Invalid {
			end++
		}

		if end-begin >= k {
			for b := begin; ; b += reads.MaxReadLen - k + 1 {
				if end-b <= reads.MaxReadLen {
					f(s[b:end])
					break
				}
				f(s[b : b+reads.MaxReadLen])
			}
		}
		begin = end
	}
}

func saveReads(stores []*reads.Store, dir string) error {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	for i, s := range stores {
		file := filepath.Join(dir, fmt.Sprintf("batch_%04d%s", i+1, ReadsFileExt))
		if _, err = s.WriteToFile(file); err != nil {
			return fmt.Errorf("failed to save reads to %s: %s", file, err)
		}
	}
	return nil
}
