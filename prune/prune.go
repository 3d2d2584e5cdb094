// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package prune removes biallelic SNP records whose information is redundant
// with nearby previously-kept records, in the sense used when thinning dense
// variant panels: identical genotype vectors, or close genomic proximity
// combined with near-identical allele frequency.  The decision procedure is a
// single forward pass carrying the last two kept records per chromosome; see
// Window.Take for the exact sequence.
package prune

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/snpprune/encoding/vcf"
	"github.com/grailbio/snpprune/interval"
)

// ToolName is recorded in the output provenance header line.
const ToolName = "bio-snp-prune"

// Supported -sites-format values.
const (
	SitesFormatTSV    = "tsv"
	SitesFormatTSVBgz = "tsv-bgz"
)

type Opts struct {
	// Commandline options.
	Distance    int
	Frequency   float64
	BedPath     string
	Region      string
	SitesPath   string
	SitesFormat string
	Parallelism int
}

var DefaultOpts = Opts{
	Distance:    0,
	Frequency:   0.0,
	SitesFormat: SitesFormatTSV,
	Parallelism: 0,
}

// validateAndNormalize rejects out-of-range settings, then applies the two
// whole-run rewrites: frequency == 0 renders the distance gate meaningless
// (any nonzero frequency difference would pass), so distance is forced to 0
// before the pass begins; and Parallelism == 0 means NumCPU.
func (o *Opts) validateAndNormalize() error {
	if o.Distance < 0 {
		return fmt.Errorf("prune: negative distance %d", o.Distance)
	}
	if o.Frequency < 0 || o.Frequency > 1 {
		return fmt.Errorf("prune: frequency %g out of [0,1]", o.Frequency)
	}
	if o.BedPath != "" && o.Region != "" {
		return fmt.Errorf("prune: -bed and -region are mutually exclusive")
	}
	switch o.SitesFormat {
	case "", SitesFormatTSV, SitesFormatTSVBgz:
	default:
		return fmt.Errorf("prune: unsupported sites format %q", o.SitesFormat)
	}
	if o.Frequency == 0 {
		o.Distance = 0
	}
	if o.Parallelism == 0 {
		o.Parallelism = runtime.NumCPU()
	}
	return nil
}

// keptSite is what pass 1 retains per kept record: its coordinate for the
// pass-2 subset selection, plus its allele frequency for the sites sidecar.
// Genotype strings are deliberately not retained; with many samples they
// dominate memory.
type keptSite struct {
	site    vcf.Site
	af      float64
	afKnown bool
}

// loadRegions materializes the optional -bed/-region restriction.
func loadRegions(opts *Opts) (*interval.BEDUnion, error) {
	if opts.BedPath != "" {
		u, err := interval.NewBEDUnionFromPath(opts.BedPath, interval.NewBEDOpts{})
		if err != nil {
			return nil, err
		}
		return &u, nil
	}
	if opts.Region != "" {
		entry, err := interval.ParseRegionString(opts.Region)
		if err != nil {
			return nil, err
		}
		u, err := interval.NewBEDUnionFromEntries([]interval.Entry{entry})
		if err != nil {
			return nil, err
		}
		return &u, nil
	}
	return nil, nil
}

// scanKept is pass 1: stream the candidates through the pruning window,
// collecting kept sites and the run counts.
func scanKept(ctx context.Context, inPath string, regions *interval.BEDUnion, opts *Opts) (kept []keptSite, nRecord, nCandidate int, err error) {
	var in file.File
	if in, err = file.Open(ctx, inPath); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	inr := io.Reader(in.Reader(ctx))
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	var vr *vcf.Reader
	if vr, err = vcf.NewReader(inr); err != nil {
		return
	}

	var w Window
	for {
		rec, e := vr.Read()
		if e == io.EOF {
			break
		}
		if e != nil {
			err = e
			return
		}
		if regions != nil && !regions.ContainsPoint(rec.Chrom, interval.PosType(rec.Pos-1)) {
			continue
		}
		nCandidate++
		if w.Take(rec, opts.Distance, opts.Frequency) {
			kept = append(kept, keptSite{
				site:    vcf.Site{Chrom: rec.Chrom, Pos: rec.Pos},
				af:      rec.AF,
				afKnown: rec.AFKnown,
			})
		}
	}
	nRecord = vr.NRecord()
	return
}

// writeVCFSubset is pass 2: re-read the original stream and write the kept
// subset, BGZF-compressed when the output path says so.
func writeVCFSubset(ctx context.Context, inPath, outPath string, sites []vcf.Site, prov vcf.Provenance, parallelism int) (nSelected int, err error) {
	var in file.File
	if in, err = file.Open(ctx, inPath); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, in, &err)
	inr := io.Reader(in.Reader(ctx))
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}

	var dst file.File
	if dst, err = file.Create(ctx, outPath); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)
	outw := io.Writer(dst.Writer(ctx))
	if fileio.DetermineType(outPath) == fileio.Gzip {
		bgzfWriter := bgzf.NewWriter(outw, parallelism)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
		outw = bgzfWriter
	}
	return vcf.WriteSubset(outw, inr, sites, prov)
}

// Prune runs the whole pipeline: pass 1 selects the kept coordinates, pass 2
// re-reads the input and writes the exact record subset (original header plus
// one provenance line), and the optional sites sidecar records the kept
// coordinates and their allele frequencies.  It prints summary counts on
// success.
//
// The input must contain variant records in ascending (chromosome, position)
// order; out-of-order input is an upstream contract violation and yields an
// unspecified (but non-crashing) kept set.
func Prune(ctx context.Context, inPath, outPath string, rawOpts *Opts) (err error) {
	opts := DefaultOpts
	if rawOpts != nil {
		opts = *rawOpts
	}
	if err = opts.validateAndNormalize(); err != nil {
		return
	}
	var regions *interval.BEDUnion
	if regions, err = loadRegions(&opts); err != nil {
		return
	}

	kept, nRecord, nCandidate, err := scanKept(ctx, inPath, regions, &opts)
	if err != nil {
		return errors.E(err, "prune: scanning "+inPath)
	}

	if opts.SitesPath != "" {
		if err = writeSites(ctx, opts.SitesPath, opts.SitesFormat, opts.Parallelism, kept); err != nil {
			return errors.E(err, "prune: writing sites file "+opts.SitesPath)
		}
	}

	sites := make([]vcf.Site, len(kept))
	for i, k := range kept {
		sites[i] = k.site
	}
	prov := vcf.Provenance{
		Tool:      ToolName,
		Input:     inPath,
		Output:    outPath,
		Distance:  opts.Distance,
		Frequency: opts.Frequency,
		Date:      time.Now(),
	}
	nSelected, err := writeVCFSubset(ctx, inPath, outPath, sites, prov, opts.Parallelism)
	if err != nil {
		return errors.E(err, "prune: writing "+outPath)
	}

	keptPct := 0.0
	if nCandidate != 0 {
		keptPct = 100 * float64(len(kept)) / float64(nCandidate)
	}
	log.Printf("%s: %d record(s) scanned, %d biallelic SNP candidate(s), %d kept (%.2f%%), %d record(s) written to %s",
		ToolName, nRecord, nCandidate, len(kept), keptPct, nSelected, outPath)
	return nil
}
