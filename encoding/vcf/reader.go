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
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// Data lines in a many-sample VCF routinely exceed bufio.Scanner's default
	// 64 KiB limit, and Scanner does not auto-resize.
	scannerStartCap = 64 << 10
	scannerMaxCap   = 256 << 20
)

// Reader yields one Record per biallelic SNP of an uncompressed VCF stream,
// in file order.  Header lines are captured verbatim for later
// reconstruction by the subset writer.  Reader performs no buffering beyond
// the line currently being parsed, so arbitrarily large files stream in
// constant memory.
type Reader struct {
	scanner *bufio.Scanner
	header  []string
	nSample int
	lineIdx int

	nRecord    int
	nCandidate int
}

// NewReader consumes the header of the VCF stream r and positions the reader
// at its first data line.  A missing or malformed #CHROM line is a fatal
// error: without it the column layout is unknown.
func NewReader(r io.Reader) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, scannerStartCap), scannerMaxCap)
	vr := &Reader{scanner: scanner}
	for scanner.Scan() {
		vr.lineIdx++
		line := scanner.Text()
		if strings.HasPrefix(line, "##") {
			vr.header = append(vr.header, line)
			continue
		}
		if !strings.HasPrefix(line, "#CHROM") {
			return nil, errors.Errorf("vcf.NewReader: line %d: expected #CHROM header line, got %.40q", vr.lineIdx, line)
		}
		vr.header = append(vr.header, line)
		nCol := strings.Count(line, "\t") + 1
		if nCol > nFixedCol+1 {
			vr.nSample = nCol - (nFixedCol + 1)
		}
		return vr, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("vcf.NewReader: missing #CHROM header line")
}

// Header returns the raw header lines (## lines plus the #CHROM line), in
// file order.
func (r *Reader) Header() []string { return r.header }

// NSample returns the number of sample columns declared by the #CHROM line.
func (r *Reader) NSample() int { return r.nSample }

// NRecord returns the number of data lines scanned so far.
func (r *Reader) NRecord() int { return r.nRecord }

// NCandidate returns the number of biallelic-SNP records returned so far.
func (r *Reader) NCandidate() int { return r.nCandidate }

// Read returns the next biallelic-SNP candidate, skipping (but counting)
// other variant classes.  io.EOF is returned at end of stream.  Any
// malformed data line aborts the scan; silently skipping garbage would let a
// truncated or corrupt input masquerade as a valid result.
func (r *Reader) Read() (rec Record, err error) {
	for r.scanner.Scan() {
		r.lineIdx++
		line := r.scanner.Text()
		if len(line) == 0 {
			continue
		}
		r.nRecord++
		fields := strings.Split(line, "\t")
		if len(fields) < nFixedCol {
			err = errors.Errorf("vcf.Reader: line %d: %d column(s), expected at least %d", r.lineIdx, len(fields), nFixedCol)
			return
		}
		if !isBiallelicSNP(fields[colRef], fields[colAlt]) {
			continue
		}
		rec.Chrom = fields[colChrom]
		if rec.Pos, err = strconv.Atoi(fields[colPos]); err != nil {
			err = errors.Wrapf(err, "vcf.Reader: line %d: unparsable POS", r.lineIdx)
			return
		}
		if rec.Pos < 0 {
			err = errors.Errorf("vcf.Reader: line %d: negative POS %d", r.lineIdx, rec.Pos)
			return
		}
		rec.AF, rec.AFKnown, rec.GT = r.parseSamples(fields)
		r.nCandidate++
		return
	}
	if err = r.scanner.Err(); err == nil {
		err = io.EOF
	}
	return
}

// parseSamples extracts the flattened genotype string and the allele
// frequency for one data line.  The INFO AF annotation takes precedence;
// otherwise AF is computed from the called sample alleles; with neither
// available the frequency is undefined.
func (r *Reader) parseSamples(fields []string) (af float64, afKnown bool, gt string) {
	if afStr, ok := infoAF(fields[colInfo]); ok {
		if parsed, err := strconv.ParseFloat(afStr, 64); err == nil {
			af, afKnown = parsed, true
		}
	}
	gtIdx := -1
	if len(fields) > nFixedCol+1 {
		gtIdx = gtIndex(fields[colFormat])
	}
	if gtIdx == -1 {
		return
	}
	var sb strings.Builder
	nAlt, nCalled := 0, 0
	for i, sample := range fields[colFormat+1:] {
		call := subfield(sample, gtIdx)
		if i != 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(call)
		a, c := countAlleles(call)
		nAlt += a
		nCalled += c
	}
	gt = sb.String()
	if !afKnown && nCalled > 0 {
		af, afKnown = float64(nAlt)/float64(nCalled), true
	}
	return
}
