// Package dataset bundles the inputs of a DNA-SIP analysis: the per-sample
// attribute table, the feature count matrix and, optionally, the taxonomy.
package dataset

import (
	"context"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip/counts"
	"github.com/carbocation/hrsip/sample"
	"github.com/carbocation/hrsip/taxonomy"
)

// Paths locate the input tables. Taxonomy is optional.
type Paths struct {
	Samples  string `json:"samples"`
	Counts   string `json:"counts"`
	Taxonomy string `json:"taxonomy,omitempty"`

	// SampleIDColumn names the sample table's ID column; the first column
	// is used when empty.
	SampleIDColumn string `json:"sample_id_column,omitempty"`
}

type Dataset struct {
	Samples  *sample.Table
	Counts   *counts.Table
	Taxonomy *taxonomy.Table
}

// Load reads every table named in p. client may be nil if no path is gs://.
func Load(ctx context.Context, p Paths, client *storage.Client) (*Dataset, error) {
	log.Println("Loading sample table from", p.Samples)
	samples, err := sample.Load(ctx, p.Samples, p.SampleIDColumn, client)
	if err != nil {
		return nil, err
	}

	log.Println("Loading count table from", p.Counts)
	cts, err := counts.Load(ctx, p.Counts, client)
	if err != nil {
		return nil, err
	}

	var tax *taxonomy.Table
	if p.Taxonomy != "" {
		log.Println("Loading taxonomy from", p.Taxonomy)
		tax, err = taxonomy.Load(ctx, p.Taxonomy, client)
		if err != nil {
			return nil, err
		}
	}

	d, err := New(samples, cts, tax)
	if err != nil {
		return nil, err
	}

	log.Printf("Loaded %d samples and %d features\n", len(samples.Samples), len(cts.Features))

	return d, nil
}

// New checks that every sample has a column in the count table.
func New(samples *sample.Table, cts *counts.Table, tax *taxonomy.Table) (*Dataset, error) {
	missing := make([]string, 0)
	for _, s := range samples.Samples {
		if !cts.HasSample(s.ID) {
			missing = append(missing, s.ID)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%d sample(s) have no counts: %s", len(missing), strings.Join(missing, ", "))
	}

	return &Dataset{Samples: samples, Counts: cts, Taxonomy: tax}, nil
}

// Subset restricts the dataset to the given samples, in that order. The
// taxonomy is shared, not copied.
func (d *Dataset) Subset(members []sample.Sample) (*Dataset, error) {
	st, err := sample.New(members)
	if err != nil {
		return nil, err
	}
	st.IDColumn = d.Samples.IDColumn

	ct, err := d.Counts.Select(st.IDs())
	if err != nil {
		return nil, err
	}

	return &Dataset{Samples: st, Counts: ct, Taxonomy: d.Taxonomy}, nil
}

// RequireColumns checks that the sample table declares every named column,
// such as the buoyant density column the engine reads.
func (d *Dataset) RequireColumns(columns ...string) error {
	missing := make([]string, 0)
	for _, col := range columns {
		if !d.Samples.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("sample table has no column(s) %s; found %v", strings.Join(missing, ", "), d.Samples.Columns)
	}

	return nil
}
