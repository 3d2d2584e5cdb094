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
package vcf

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvenance() Provenance {
	return Provenance{
		Tool:      "bio-snp-prune",
		Input:     "in.vcf.gz",
		Output:    "out.vcf.gz",
		Distance:  1000,
		Frequency: 0.05,
		Date:      time.Date(2020, 4, 17, 9, 30, 0, 0, time.UTC),
	}
}

func TestProvenanceHeaderLine(t *testing.T) {
	assert.Equal(t,
		"##bio-snp-prune=<input=in.vcf.gz,output=out.vcf.gz,distance=1000,frequency=0.05,date=2020-04-17T09:30:00Z>",
		testProvenance().HeaderLine())
}

func TestWriteSubset(t *testing.T) {
	in := "##fileformat=VCFv4.2\n" +
		"##contig=<ID=chr1>\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
		"chr1\t100\trs1\tA\tG\t50\tPASS\tAF=0.1\tGT\t0/1\n" +
		"chr1\t150\trs2\tA\tG\t50\tPASS\tAF=0.12\tGT\t0/0\n" +
		"chr1\t200\trs3\tC\tT\t50\tPASS\tAF=0.4\tGT\t1/1\n" +
		"chr2\t70\trs4\tG\tA\t50\tPASS\tAF=0.2\tGT\t0/1\n"
	keep := []Site{
		{Chrom: "chr1", Pos: 100},
		{Chrom: "chr1", Pos: 200},
		{Chrom: "chr2", Pos: 70},
	}

	var out bytes.Buffer
	n, err := WriteSubset(&out, strings.NewReader(in), keep, testProvenance())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := "##fileformat=VCFv4.2\n" +
		"##contig=<ID=chr1>\n" +
		testProvenance().HeaderLine() + "\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n" +
		"chr1\t100\trs1\tA\tG\t50\tPASS\tAF=0.1\tGT\t0/1\n" +
		"chr1\t200\trs3\tC\tT\t50\tPASS\tAF=0.4\tGT\t1/1\n" +
		"chr2\t70\trs4\tG\tA\t50\tPASS\tAF=0.2\tGT\t0/1\n"
	assert.Equal(t, want, out.String())
}

func TestWriteSubsetDuplicateCoordinate(t *testing.T) {
	// Two records at chr1:100 (a SNP and an indel, say): coordinate-based
	// selection re-selects both.
	in := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"chr1\t100\t.\tA\tG\t.\tPASS\t.\n" +
		"chr1\t100\t.\tAT\tA\t.\tPASS\t.\n" +
		"chr1\t200\t.\tC\tT\t.\tPASS\t.\n"
	keep := []Site{{Chrom: "chr1", Pos: 100}}

	var out bytes.Buffer
	n, err := WriteSubset(&out, strings.NewReader(in), keep, testProvenance())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, strings.Contains(out.String(), "AT\tA"))
	assert.False(t, strings.Contains(out.String(), "chr1\t200"))
}

func TestWriteSubsetErrors(t *testing.T) {
	// Unmatched kept coordinate.
	in := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"chr1\t100\t.\tA\tG\t.\tPASS\t.\n"
	var out bytes.Buffer
	_, err := WriteSubset(&out, strings.NewReader(in), []Site{{Chrom: "chr1", Pos: 999}}, testProvenance())
	assert.Error(t, err)

	// Missing header.
	_, err = WriteSubset(&out, strings.NewReader("chr1\t100\t.\tA\tG\t.\tPASS\t.\n"), nil, testProvenance())
	assert.Error(t, err)
}
