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
package prune

import (
	"math"

	"github.com/grailbio/snpprune/encoding/vcf"
)

// Window holds the up-to-two most recently kept records on the current
// chromosome.  It is the only state the pruning decision carries between
// records; the caller threads one Window through a single forward pass.
//
// last[0] is the most recently kept record, last[1] the one before it.  Both
// always belong to chrom.
type Window struct {
	chrom string
	last  [2]vcf.Record
	n     int
}

func (w *Window) push(rec vcf.Record) {
	w.last[1] = w.last[0]
	w.last[0] = rec
	if w.n < 2 {
		w.n++
	}
}

func (w *Window) reset(rec vcf.Record) {
	w.chrom = rec.Chrom
	w.last[0] = rec
	w.n = 1
}

// Take decides whether rec carries enough new information to keep, given the
// window of previously kept records, and updates the window accordingly.
// Records must be presented in ascending (chromosome, position) order.
//
// The decision sequence:
//  1. First record of a chromosome: always kept; the window restarts.
//  2. Genotype string identical to either window member: dropped.
//  3. distance == 0: kept.
//  4. More than distance bp past the last kept record: kept.
//  5. Otherwise the record must differ in allele frequency from every window
//     member it can be compared against, by strictly more than frequency.
//     Comparisons with an undefined frequency on either side are excluded;
//     if none remain the record is treated as indistinguishable and dropped.
//
// Using the minimum defined |dAF| in step 5 makes "differs from each" mean
// "differs from the most similar one".
func (w *Window) Take(rec vcf.Record, distance int, frequency float64) bool {
	if w.n == 0 || rec.Chrom != w.chrom {
		w.reset(rec)
		return true
	}
	if rec.GT == w.last[0].GT || (w.n > 1 && rec.GT == w.last[1].GT) {
		return false
	}
	if distance == 0 || rec.Pos-w.last[0].Pos > distance {
		w.push(rec)
		return true
	}
	minDiff := math.MaxFloat64
	defined := false
	if rec.AFKnown {
		for i := 0; i < w.n; i++ {
			if !w.last[i].AFKnown {
				continue
			}
			if diff := math.Abs(rec.AF - w.last[i].AF); !defined || diff < minDiff {
				minDiff = diff
				defined = true
			}
		}
	}
	if defined && minDiff > frequency {
		w.push(rec)
		return true
	}
	return false
}

// Filter runs the pruning decision over records, which must be in ascending
// (chromosome, position) order, returning the coordinates of kept records in
// input order.  The frequency == 0 coupling (distance forced to 0) is
// applied here, once, before the pass.
func Filter(records []vcf.Record, distance int, frequency float64) []vcf.Site {
	if frequency == 0 {
		distance = 0
	}
	var w Window
	kept := make([]vcf.Site, 0, len(records))
	for _, rec := range records {
		if w.Take(rec, distance, frequency) {
			kept = append(kept, vcf.Site{Chrom: rec.Chrom, Pos: rec.Pos})
		}
	}
	return kept
}
