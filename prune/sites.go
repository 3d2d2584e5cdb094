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
	"context"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// writeSites emits the kept-site sidecar: a #CHROM/POS/AF TSV with one row
// per kept record, "." standing for an undefined frequency.  POS is 1-based,
// matching the VCF text convention.
func writeSites(ctx context.Context, path, format string, parallelism int, kept []keptSite) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)

	var w *tsv.Writer
	if format == SitesFormatTSVBgz {
		bgzfWriter := bgzf.NewWriter(dst.Writer(ctx), parallelism)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = tsv.NewWriter(bgzfWriter)
	} else {
		w = tsv.NewWriter(dst.Writer(ctx))
	}

	w.WriteString("#CHROM\tPOS\tAF")
	if err = w.EndLine(); err != nil {
		return
	}
	for _, k := range kept {
		w.WriteString(k.site.Chrom)
		w.WriteUint32(uint32(k.site.Pos))
		if k.afKnown {
			w.WriteString(strconv.FormatFloat(k.af, 'g', -1, 64))
		} else {
			w.WriteString(".")
		}
		if err = w.EndLine(); err != nil {
			return
		}
	}
	err = w.Flush()
	return
}
