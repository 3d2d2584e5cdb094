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
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var chromLinePrefix = []byte("#CHROM")

// Provenance describes one pruning run.  It is rendered as a single
// structured header line in the output, in the usual
// ##toolname=<key=value,...> VCF style.
type Provenance struct {
	Tool      string
	Input     string
	Output    string
	Distance  int
	Frequency float64
	Date      time.Time
}

// HeaderLine renders the provenance header line, without a trailing newline.
func (p Provenance) HeaderLine() string {
	var sb strings.Builder
	sb.WriteString("##")
	sb.WriteString(p.Tool)
	sb.WriteString("=<input=")
	sb.WriteString(p.Input)
	sb.WriteString(",output=")
	sb.WriteString(p.Output)
	sb.WriteString(",distance=")
	sb.WriteString(strconv.Itoa(p.Distance))
	sb.WriteString(",frequency=")
	sb.WriteString(strconv.FormatFloat(p.Frequency, 'f', 2, 64))
	sb.WriteString(",date=")
	sb.WriteString(p.Date.Format(time.RFC3339))
	sb.WriteString(">")
	return sb.String()
}

// WriteSubset copies the VCF stream src to dst, keeping the header and
// exactly the data lines whose (CHROM, POS) coordinates appear in keep.
// keep must be ordered consistently with src, which holds by construction
// when it was produced by a forward pass over the same stream.  Kept lines
// are copied byte-for-byte; this is a pure subset selection.
//
// The provenance line is inserted immediately before the #CHROM line.
//
// VCF permits several records at one coordinate (e.g. a biallelic SNP next
// to an indel at the same POS); coordinate-based selection deliberately
// re-selects all of them.
//
// nSelected is the number of data lines written.
func WriteSubset(dst io.Writer, src io.Reader, keep []Site, prov Provenance) (nSelected int, err error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, scannerStartCap), scannerMaxCap)
	w := bufio.NewWriter(dst)

	keepIdx := 0
	lineIdx := 0
	sawChromLine := false
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) != 0 && line[0] == '#' {
			if bytes.HasPrefix(line, chromLinePrefix) {
				if _, err = w.WriteString(prov.HeaderLine()); err != nil {
					return
				}
				if err = w.WriteByte('\n'); err != nil {
					return
				}
				sawChromLine = true
			}
			if _, err = w.Write(line); err != nil {
				return
			}
			if err = w.WriteByte('\n'); err != nil {
				return
			}
			continue
		}
		if len(line) == 0 {
			continue
		}
		var chrom string
		var pos int
		if chrom, pos, err = lineCoord(line, lineIdx); err != nil {
			return
		}
		matched := false
		if keepIdx < len(keep) && keep[keepIdx].Chrom == chrom && keep[keepIdx].Pos == pos {
			keepIdx++
			matched = true
		} else if keepIdx > 0 && keep[keepIdx-1].Chrom == chrom && keep[keepIdx-1].Pos == pos {
			// Additional record at an already-kept coordinate.
			matched = true
		}
		if matched {
			if _, err = w.Write(line); err != nil {
				return
			}
			if err = w.WriteByte('\n'); err != nil {
				return
			}
			nSelected++
		}
	}
	if err = scanner.Err(); err != nil {
		return
	}
	if !sawChromLine {
		err = errors.New("vcf.WriteSubset: missing #CHROM header line")
		return
	}
	if keepIdx != len(keep) {
		err = errors.Errorf("vcf.WriteSubset: %d of %d kept coordinate(s) not found; input changed between passes?", len(keep)-keepIdx, len(keep))
		return
	}
	err = w.Flush()
	return
}

// lineCoord scrapes the CHROM and POS columns off the front of a data line.
func lineCoord(line []byte, lineIdx int) (chrom string, pos int, err error) {
	tab1 := -1
	for i, c := range line {
		if c != '\t' {
			continue
		}
		if tab1 == -1 {
			tab1 = i
			continue
		}
		chrom = string(line[:tab1])
		if pos, err = strconv.Atoi(string(line[tab1+1 : i])); err != nil {
			err = errors.Wrapf(err, "vcf.WriteSubset: line %d: unparsable POS", lineIdx)
		}
		return
	}
	err = errors.Errorf("vcf.WriteSubset: line %d: fewer than 3 columns", lineIdx)
	return
}
