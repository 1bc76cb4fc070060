// incorporators summarizes an hrsip result table: for each comparison group it
// counts the features that incorporated the isotope, grouped by taxon at the
// requested rank.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/hrsip"
	_ "github.com/carbocation/hrsip/compileinfoprint"
	"github.com/carbocation/hrsip/results"
	"github.com/carbocation/hrsip/taxonomy"
)

var (
	BufferSize = 4096 * 8
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	var resultPath, taxonomyPath, sqlitePath, label, rank string
	var alpha float64
	var hist bool
	flag.StringVar(&resultPath, "result", "", "hrsip output table (local, gs://, optionally compressed)")
	flag.StringVar(&sqlitePath, "sqlite", "", "Alternatively, an hrsip SQLite database")
	flag.StringVar(&label, "label", "", "(Optional) With -sqlite, restrict to one group label")
	flag.StringVar(&taxonomyPath, "taxonomy", "", "(Optional) Taxonomy table. Defaults to the taxonomy echoed in the result.")
	flag.StringVar(&rank, "rank", "Phylum", "Taxonomic rank to summarize at")
	flag.Float64Var(&alpha, "alpha", 0.1, "Adjusted p value below which a feature is an incorporator")
	flag.BoolVar(&hist, "hist", false, "Also print a histogram of incorporator log2 fold changes to stderr")
	flag.Parse()

	if (resultPath == "") == (sqlitePath == "") {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(resultPath, sqlitePath, label, taxonomyPath, rank, alpha, hist); err != nil {
		log.Fatalln(err)
	}
}

func run(resultPath, sqlitePath, label, taxonomyPath, rank string, alpha float64, hist bool) error {
	ctx := context.Background()

	var client *storage.Client
	if hrsip.NeedsGoogleStorage(resultPath, taxonomyPath) {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	rows, err := readRows(ctx, resultPath, sqlitePath, label, client)
	if err != nil {
		return err
	}
	log.Println("Read", len(rows), "result rows")

	var tax *taxonomy.Table
	if taxonomyPath != "" {
		if tax, err = taxonomy.Load(ctx, taxonomyPath, client); err != nil {
			return err
		}
	}

	if hist {
		l2fcs := []float64{}
		for _, r := range rows {
			if r.PAdj < alpha && r.L2FC > 0 {
				l2fcs = append(l2fcs, r.L2FC)
			}
		}
		if len(l2fcs) > 0 {
			if err := histogram.Fprint(os.Stderr, histogram.Hist(20, l2fcs), histogram.Linear(40)); err != nil {
				return err
			}
		}
	}

	summary, err := results.Summarize(rows, tax, rank, alpha)
	if err != nil {
		return err
	}

	fl := func(v float64) string { return strconv.FormatFloat(v, 'g', 4, 64) }

	fmt.Fprintf(STDOUT, "label\t%s\tincorporators\tmean_l2fc\tmedian_l2fc\tmax_l2fc\n", rank)
	for _, s := range summary {
		fmt.Fprintf(STDOUT, "%s\t%s\t%d\t%s\t%s\t%s\n", s.Label, s.Taxon, s.Count, fl(s.MeanL2FC), fl(s.MedianL2FC), fl(s.MaxL2FC))
	}

	return nil
}

func readRows(ctx context.Context, resultPath, sqlitePath, label string, client *storage.Client) ([]results.Row, error) {
	if sqlitePath != "" {
		db, err := results.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		return results.LoadSQLite(db, label)
	}

	rc, err := hrsip.MaybeOpenFromGoogleStorage(ctx, resultPath, client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := hrsip.MaybeDecompress(rc)
	if err != nil {
		return nil, err
	}

	return results.ReadTSV(r)
}
