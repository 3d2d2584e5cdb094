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

// Package vcf provides the minimal streaming view of a Variant Call Format
// file needed by the pruning pipeline: a reader which yields one candidate
// record per biallelic SNP in (chromosome, position) order, and a writer
// which re-selects an exact subset of the original data lines.
//
// No attempt is made to model the full VCF spec.  INFO is only consulted for
// the AF annotation, and per-sample genotypes are flattened into an opaque
// string compared for equality downstream.
package vcf

import (
	"strings"
)

// Record is one biallelic-SNP candidate drawn from a VCF data line.
type Record struct {
	// Chrom is the CHROM column, used only for equality/grouping.
	Chrom string
	// Pos is the 1-based POS column.
	Pos int
	// AF is the alternate-allele frequency, taken from the INFO AF annotation
	// when present and otherwise computed from the sample genotype calls.  It
	// is meaningful only when AFKnown is set.
	AF float64
	// AFKnown reports whether AF is defined for this record.
	AFKnown bool
	// GT is the flattened concatenation of every sample's GT subfield.  It is
	// never parsed semantically; two records with byte-identical GT carry the
	// same genotype information.
	GT string
}

// Site is a (chromosome, 1-based position) coordinate pair.
type Site struct {
	Chrom string
	Pos   int
}

// Fixed VCF column indices.
const (
	colChrom = iota
	colPos
	colID
	colRef
	colAlt
	colQual
	colFilter
	colInfo
	colFormat
	nFixedCol = colFormat // FORMAT is only present when samples are
)

// isBiallelicSNP reports whether the REF/ALT pair describes a single-ALT
// single-nucleotide variant.  Multi-allelic sites (',' in ALT), indels,
// symbolic alleles, and missing ALTs are all excluded.
func isBiallelicSNP(ref, alt string) bool {
	if len(ref) != 1 || len(alt) != 1 {
		return false
	}
	switch alt[0] {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
	default:
		return false
	}
	switch ref[0] {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't', 'N', 'n':
		return true
	}
	return false
}

// infoAF extracts the first value of the AF annotation from a raw INFO
// column, returning ok=false when the annotation is absent or missing (".").
func infoAF(info string) (af string, ok bool) {
	for len(info) != 0 {
		var field string
		if sepPos := strings.IndexByte(info, ';'); sepPos == -1 {
			field, info = info, ""
		} else {
			field, info = info[:sepPos], info[sepPos+1:]
		}
		if !strings.HasPrefix(field, "AF=") {
			continue
		}
		af = field[len("AF="):]
		// A biallelic site has a single AF value, but tolerate trailing
		// values left over from sloppy multi-allelic splitting.
		if commaPos := strings.IndexByte(af, ','); commaPos != -1 {
			af = af[:commaPos]
		}
		if af == "" || af == "." {
			return "", false
		}
		return af, true
	}
	return "", false
}

// gtIndex returns the position of the GT subfield within a FORMAT column, or
// -1 if FORMAT does not declare a GT.
func gtIndex(format string) int {
	idx := 0
	for len(format) != 0 {
		var key string
		if sepPos := strings.IndexByte(format, ':'); sepPos == -1 {
			key, format = format, ""
		} else {
			key, format = format[:sepPos], format[sepPos+1:]
		}
		if key == "GT" {
			return idx
		}
		idx++
	}
	return -1
}

// subfield returns the subfieldIdx'th ':'-separated piece of a sample
// column.  Per the VCF spec trailing subfields may be dropped, in which case
// the missing value "." is returned.
func subfield(sample string, subfieldIdx int) string {
	for ; subfieldIdx > 0; subfieldIdx-- {
		sepPos := strings.IndexByte(sample, ':')
		if sepPos == -1 {
			return "."
		}
		sample = sample[sepPos+1:]
	}
	if sepPos := strings.IndexByte(sample, ':'); sepPos != -1 {
		sample = sample[:sepPos]
	}
	return sample
}

// countAlleles tallies called alt and total alleles in one GT call string
// (e.g. "0/1", "1|1", "./.").  Uncalled alleles ('.') are excluded from the
// total; ploidy is whatever the file says it is.
func countAlleles(gt string) (nAlt, nCalled int) {
	for len(gt) != 0 {
		var allele string
		sepPos := strings.IndexAny(gt, "/|")
		if sepPos == -1 {
			allele, gt = gt, ""
		} else {
			allele, gt = gt[:sepPos], gt[sepPos+1:]
		}
		if allele == "." || allele == "" {
			continue
		}
		nCalled++
		if allele != "0" {
			nAlt++
		}
	}
	return
}
