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
	"testing"

	"github.com/grailbio/snpprune/encoding/vcf"
	"github.com/stretchr/testify/assert"
)

func rec(chrom string, pos int, af float64, gt string) vcf.Record {
	return vcf.Record{Chrom: chrom, Pos: pos, AF: af, AFKnown: true, GT: gt}
}

func recNoAF(chrom string, pos int, gt string) vcf.Record {
	return vcf.Record{Chrom: chrom, Pos: pos, GT: gt}
}

func sitesOf(poss ...int) []vcf.Site {
	sites := make([]vcf.Site, len(poss))
	for i, pos := range poss {
		sites[i] = vcf.Site{Chrom: "1", Pos: pos}
	}
	return sites
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name      string
		records   []vcf.Record
		distance  int
		frequency float64
		want      []vcf.Site
	}{
		{
			name: "identical genotypes collapse to the first record",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/1"),
				rec("1", 200, 0.12, "0/1"),
				rec("1", 300, 0.50, "0/1"),
			},
			distance:  500,
			frequency: 0.05,
			want:      sitesOf(100),
		},
		{
			name: "near record with distinct frequency kept, far record kept unconditionally",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/0"),
				rec("1", 150, 0.40, "0/1"),
				rec("1", 5000, 0.41, "1/1"),
			},
			distance:  1000,
			frequency: 0.05,
			want:      sitesOf(100, 150, 5000),
		},
		{
			name: "near record with similar frequency dropped",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/0"),
				rec("1", 150, 0.12, "0/1"),
				rec("1", 5000, 0.13, "1/1"),
			},
			distance:  1000,
			frequency: 0.05,
			want:      sitesOf(100, 5000),
		},
		{
			name: "frequency compared against the more similar window member",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/0"),
				rec("1", 150, 0.40, "0/1"),
				// 0.41 differs from last2 (0.10) by plenty, but from last1
				// (0.40) by only 0.01.
				rec("1", 200, 0.41, "1/1"),
			},
			distance:  1000,
			frequency: 0.05,
			want:      sitesOf(100, 150),
		},
		{
			name: "zero distance keeps every genotype-distinct record",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/0"),
				rec("1", 101, 0.10, "0/1"),
				rec("1", 102, 0.10, "1/1"),
			},
			distance:  0,
			frequency: 0.05,
			want:      sitesOf(100, 101, 102),
		},
		{
			name: "genotype check also covers the second window slot",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/0"),
				rec("1", 101, 0.20, "0/1"),
				rec("1", 102, 0.30, "0/0"),
			},
			distance:  0,
			frequency: 0.05,
			want:      sitesOf(100, 101),
		},
		{
			name: "undefined candidate frequency within distance drops",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/0"),
				recNoAF("1", 150, "0/1"),
			},
			distance:  1000,
			frequency: 0.05,
			want:      sitesOf(100),
		},
		{
			name: "undefined window frequency excluded from comparison",
			records: []vcf.Record{
				recNoAF("1", 100, "0/0"),
				// Kept by distance alone (gap 4900 > 1000).
				rec("1", 5000, 0.40, "0/1"),
				// vs last1 (0.40): diff 0.30 > 0.05; last2 has no frequency
				// and is excluded rather than treated as a zero diff.
				rec("1", 5100, 0.70, "1/1"),
			},
			distance:  1000,
			frequency: 0.05,
			want:      sitesOf(100, 5000, 5100),
		},
		{
			name: "no defined comparison at all drops conservatively",
			records: []vcf.Record{
				recNoAF("1", 100, "0/0"),
				rec("1", 150, 0.40, "0/1"),
			},
			distance:  1000,
			frequency: 0.05,
			want:      sitesOf(100),
		},
		{
			name: "difference must strictly exceed the threshold",
			records: []vcf.Record{
				rec("1", 100, 0.10, "0/0"),
				rec("1", 150, 0.15, "0/1"),
			},
			distance:  1000,
			frequency: 0.05,
			want:      sitesOf(100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(tt.records, tt.distance, tt.frequency)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterChromosomeBoundary(t *testing.T) {
	// A kept record on one chromosome never blocks the next chromosome's
	// records, via genotype or frequency: the first record of every
	// chromosome is always kept and the window restarts.
	records := []vcf.Record{
		rec("1", 100, 0.10, "0/1"),
		rec("2", 100, 0.10, "0/1"),
		rec("2", 150, 0.11, "1/1"),
	}
	got := Filter(records, 1000, 0.05)
	want := []vcf.Site{{Chrom: "1", Pos: 100}, {Chrom: "2", Pos: 100}}
	assert.Equal(t, want, got)
}

func TestFilterFrequencyZeroForcesDistanceZero(t *testing.T) {
	records := []vcf.Record{
		rec("1", 100, 0.10, "0/0"),
		rec("1", 101, 0.10, "0/1"),
		rec("1", 102, 0.10, "1/1"),
	}
	// With frequency == 0 the distance gate is disabled up front, so any
	// nonzero distance behaves exactly like 0.
	assert.Equal(t, Filter(records, 1000000, 0), Filter(records, 0, 0))
	assert.Equal(t, sitesOf(100, 101, 102), Filter(records, 1000000, 0))
}

func TestFilterOrderPreservingAndIdempotent(t *testing.T) {
	records := []vcf.Record{
		rec("1", 100, 0.10, "0/0 0/1"),
		rec("1", 130, 0.12, "0/1 0/1"),
		rec("1", 180, 0.30, "0/1 1/1"),
		rec("1", 200, 0.31, "1/1 1/1"),
		rec("1", 9000, 0.31, "1/1 0/1"),
		rec("2", 50, 0.20, "0/0 0/0"),
		rec("2", 70, 0.90, "0/0 0/1"),
	}
	kept := Filter(records, 500, 0.05)

	// Kept sites are a subsequence of the input.
	inputIdx := 0
	for _, s := range kept {
		for inputIdx < len(records) &&
			(records[inputIdx].Chrom != s.Chrom || records[inputIdx].Pos != s.Pos) {
			inputIdx++
		}
		assert.True(t, inputIdx < len(records), "kept site %v not in input order", s)
		inputIdx++
	}

	// Re-running the filter on its own output is a no-op: every kept record
	// already differs sufficiently from its kept neighbors by construction.
	keptSet := make(map[vcf.Site]bool, len(kept))
	for _, s := range kept {
		keptSet[s] = true
	}
	var subset []vcf.Record
	for _, r := range records {
		if keptSet[vcf.Site{Chrom: r.Chrom, Pos: r.Pos}] {
			subset = append(subset, r)
		}
	}
	assert.Equal(t, kept, Filter(subset, 500, 0.05))
}

func TestWindowTakeUpdatesOnlyOnKeep(t *testing.T) {
	var w Window
	assert.True(t, w.Take(rec("1", 100, 0.10, "0/0"), 1000, 0.05))
	assert.False(t, w.Take(rec("1", 150, 0.11, "0/1"), 1000, 0.05))
	// The dropped record at 150 must not have entered the window: a
	// genotype match against it would be a bug.
	assert.True(t, w.Take(rec("1", 2000, 0.50, "0/1"), 1000, 0.05))
}
