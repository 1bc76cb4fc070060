// Package results persists the merged per-group engine output as a
// tab-delimited table (optionally mirrored into SQLite) and reads it back for
// post-processing.
package results

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip"
	"github.com/carbocation/hrsip/engine"
	"github.com/carbocation/hrsip/taxonomy"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

const (
	// Delim is the character used to delimit the output
	Delim = '\t'
)

// Header lists the fixed columns; taxonomic ranks follow when available.
var Header = []string{
	"label",
	"feature",
	"sparsity",
	"window_lower",
	"window_upper",
	"base_mean",
	"l2fc",
	"p",
	"padj",
	"incorporator",
}

// Row is one line of the results table.
type Row struct {
	Label        string  `csv:"label" db:"label"`
	Feature      string  `csv:"feature" db:"feature"`
	Sparsity     float64 `csv:"sparsity" db:"sparsity"`
	WindowLower  float64 `csv:"window_lower" db:"window_lower"`
	WindowUpper  float64 `csv:"window_upper" db:"window_upper"`
	BaseMean     float64 `csv:"base_mean" db:"base_mean"`
	L2FC         float64 `csv:"l2fc" db:"l2fc"`
	P            float64 `csv:"p" db:"p"`
	PAdj         float64 `csv:"padj" db:"padj"`
	Incorporator bool    `csv:"incorporator" db:"incorporator"`

	Domain  string `csv:"Domain" db:"domain"`
	Phylum  string `csv:"Phylum" db:"phylum"`
	Class   string `csv:"Class" db:"class"`
	Order   string `csv:"Order" db:"tax_order"`
	Family  string `csv:"Family" db:"family"`
	Genus   string `csv:"Genus" db:"genus"`
	Species string `csv:"Species" db:"species"`
}

// Entry returns the row's echoed taxonomy.
func (r Row) Entry() taxonomy.Entry {
	return taxonomy.Entry{
		Feature: r.Feature,
		Domain:  r.Domain,
		Phylum:  r.Phylum,
		Class:   r.Class,
		Order:   r.Order,
		Family:  r.Family,
		Genus:   r.Genus,
		Species: r.Species,
	}
}

// FromResults flattens engine output, echoing taxonomy when tax is non-nil.
func FromResults(res []engine.Result, tax *taxonomy.Table, alpha float64) []Row {
	out := make([]Row, 0, len(res))
	for _, r := range res {
		row := Row{
			Label:        r.Label,
			Feature:      r.Feature,
			Sparsity:     r.Sparsity,
			WindowLower:  r.Window.Lower,
			WindowUpper:  r.Window.Upper,
			BaseMean:     r.BaseMean,
			L2FC:         r.L2FC,
			P:            r.P,
			PAdj:         r.PAdj,
			Incorporator: r.Incorporator(alpha),
		}

		if tax != nil {
			e := tax.Lookup(r.Feature)
			vals := e.Values()
			row.Domain, row.Phylum, row.Class, row.Order = vals[0], vals[1], vals[2], vals[3]
			row.Family, row.Genus, row.Species = vals[4], vals[5], vals[6]
		}

		out = append(out, row)
	}
	return out
}

// WriteTSV writes rows with a header. Taxonomic columns are included only when
// withTaxonomy is set.
func WriteTSV(w io.Writer, rows []Row, withTaxonomy bool) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delim

	header := append([]string(nil), Header...)
	if withTaxonomy {
		header = append(header, taxonomy.Ranks...)
	}
	if err := cw.Write(header); err != nil {
		return pfx.Err(err)
	}

	fl := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

	line := make([]string, 0, len(header))
	for _, r := range rows {
		line = line[:0]
		line = append(line,
			r.Label,
			r.Feature,
			fl(r.Sparsity),
			fl(r.WindowLower),
			fl(r.WindowUpper),
			fl(r.BaseMean),
			fl(r.L2FC),
			fl(r.P),
			fl(r.PAdj),
			strconv.FormatBool(r.Incorporator),
		)
		if withTaxonomy {
			line = append(line, r.Domain, r.Phylum, r.Class, r.Order, r.Family, r.Genus, r.Species)
		}

		if err := cw.Write(line); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()
	return pfx.Err(cw.Error())
}

// ReadTSV reads a table written by WriteTSV.
func ReadTSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delim
	cr.LazyQuotes = true

	rows := []Row{}
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	return rows, nil
}

type stdoutCloser struct{ io.Writer }

func (stdoutCloser) Close() error { return nil }

// Create opens path for writing; an empty path or "-" is standard output.
// Local and gs:// paths are supported.
func Create(ctx context.Context, path string, client *storage.Client) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return stdoutCloser{os.Stdout}, nil
	}

	return hrsip.MaybeCreateOnGoogleStorage(ctx, path, client)
}
