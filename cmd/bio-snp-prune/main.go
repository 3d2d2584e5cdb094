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
package main

/*
bio-snp-prune thins a sorted biallelic-SNP VCF, dropping records that are
redundant with nearby previously-kept records: identical genotype vectors,
or within -distance bp with allele frequency within -frequency of both of
the last two kept records.  The output is the exact subset of the original
records at the kept coordinates, with the original header plus one
provenance line.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/snpprune/prune"
)

var (
	distance    = flag.Int("distance", prune.DefaultOpts.Distance, "Max distance (bp) from the last kept record at which the allele-frequency comparison applies; records farther away are kept unconditionally. 0 disables the distance/frequency gates")
	frequency   = flag.Float64("frequency", prune.DefaultOpts.Frequency, "Min allele-frequency difference from both of the last two kept records required to keep a record within -distance. 0 also forces -distance to 0")
	bedPath     = flag.String("bed", prune.DefaultOpts.BedPath, "Optional BED path restricting which records are pruning candidates; mutually exclusive with -region")
	region      = flag.String("region", prune.DefaultOpts.Region, "Restrict pruning to the specified region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>; mutually exclusive with -bed")
	sitesPath   = flag.String("sites", prune.DefaultOpts.SitesPath, "Optional output path for a #CHROM/POS/AF TSV of kept sites")
	sitesFormat = flag.String("sites-format", prune.DefaultOpts.SitesFormat, "Sites file format; 'tsv' and 'tsv-bgz' supported")
	parallelism = flag.Int("parallelism", prune.DefaultOpts.Parallelism, "Maximum number of simultaneous BGZF compression jobs; 0 = runtime.NumCPU()")
)

func bioSNPPruneUsage() {
	fmt.Printf("Usage: %s [OPTIONS] inpath outpath\n", os.Args[0])
	fmt.Printf("Input must be a (possibly gzip/BGZF-compressed) VCF sorted by (CHROM, POS); output is BGZF-compressed when outpath ends in .gz.\n")
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioSNPPruneUsage
	shutdown := grail.Init()
	defer shutdown()

	allArgs := flag.Args()
	nPositionalArgs := flag.NArg()
	positionalArgs := allArgs[len(allArgs)-nPositionalArgs:]
	if nPositionalArgs != 2 {
		if nPositionalArgs < 2 {
			log.Fatalf("Missing positional arguments (inpath and outpath required); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		} else {
			log.Fatalf("Too many positional arguments (only inpath and outpath expected); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		}
	}
	ctx := vcontext.Background()
	opts := prune.Opts{
		Distance:    *distance,
		Frequency:   *frequency,
		BedPath:     *bedPath,
		Region:      *region,
		SitesPath:   *sitesPath,
		SitesFormat: *sitesFormat,
		Parallelism: *parallelism,
	}
	if err := prune.Prune(ctx, positionalArgs[0], positionalArgs[1], &opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
