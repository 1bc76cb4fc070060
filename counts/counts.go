// Package counts holds the feature-by-sample count matrix (OTU table) of a
// DNA-SIP experiment.
package counts

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// Table is a features x samples matrix of non-negative counts.
type Table struct {
	Features []string
	Samples  []string
	M        *mat.Dense

	featureIndex map[string]int
	sampleIndex  map[string]int
}

// New wraps m, which must be len(features) x len(samples).
func New(features, samples []string, m *mat.Dense) (*Table, error) {
	r, c := m.Dims()
	if r != len(features) || c != len(samples) {
		return nil, fmt.Errorf("count matrix is %dx%d but there are %d features and %d samples", r, c, len(features), len(samples))
	}

	t := &Table{
		Features:     features,
		Samples:      samples,
		M:            m,
		featureIndex: make(map[string]int, len(features)),
		sampleIndex:  make(map[string]int, len(samples)),
	}
	for i, f := range features {
		if _, exists := t.featureIndex[f]; exists {
			return nil, fmt.Errorf("duplicate feature %q", f)
		}
		t.featureIndex[f] = i
	}
	for j, s := range samples {
		if _, exists := t.sampleIndex[s]; exists {
			return nil, fmt.Errorf("duplicate sample %q", s)
		}
		t.sampleIndex[s] = j
	}

	return t, nil
}

// Load reads a count table from a local, compressed or gs:// path.
func Load(ctx context.Context, path string, client *storage.Client) (*Table, error) {
	data, delim, err := hrsip.ReadTable(ctx, path, client)
	if err != nil {
		return nil, err
	}

	t, err := Read(bytes.NewReader(data), delim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Read parses a delimited count table. The header row names the samples after
// a leading feature-ID column; every following row is one feature.
func Read(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	header, err := hrsip.ReadHeader(cr)
	if err == io.EOF {
		return nil, fmt.Errorf("count table is empty")
	} else if err != nil {
		return nil, pfx.Err(err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("count table header has %d column(s); expected a feature column and at least one sample", len(header))
	}

	samples := make([]string, 0, len(header)-1)
	samples = append(samples, header[1:]...)

	features := make([]string, 0)
	data := make([]float64, 0)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}
		if hrsip.IsComment(row) {
			continue
		}
		if len(row) != len(header) {
			return nil, fmt.Errorf("line %d: %d fields, but the header has %d", line, len(row), len(header))
		}

		features = append(features, strings.TrimSpace(row[0]))
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, sample %s: %w", line, samples[j], err)
			}
			if v < 0 {
				return nil, fmt.Errorf("line %d, sample %s: negative count %v", line, samples[j], v)
			}
			data = append(data, v)
		}
	}

	if len(features) == 0 {
		return nil, fmt.Errorf("count table has no features")
	}

	return New(features, samples, mat.NewDense(len(features), len(samples), data))
}

// HasSample reports whether the table has a column for the sample.
func (t *Table) HasSample(id string) bool {
	_, ok := t.sampleIndex[id]
	return ok
}

// Column returns a copy of one sample's counts.
func (t *Table) Column(id string) ([]float64, bool) {
	j, ok := t.sampleIndex[id]
	if !ok {
		return nil, false
	}
	return mat.Col(nil, j, t.M), true
}

// Row returns a copy of one feature's counts across samples.
func (t *Table) Row(feature string) ([]float64, bool) {
	i, ok := t.featureIndex[feature]
	if !ok {
		return nil, false
	}
	return mat.Row(nil, i, t.M), true
}

// Select returns a new table restricted to the given samples, in that order.
func (t *Table) Select(ids []string) (*Table, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("cannot select zero samples")
	}

	m := mat.NewDense(len(t.Features), len(ids), nil)
	missing := make([]string, 0)
	for j, id := range ids {
		src, ok := t.sampleIndex[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		m.SetCol(j, mat.Col(nil, src, t.M))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no counts for sample(s) %s", strings.Join(missing, ", "))
	}
	return New(t.Features, append([]string(nil), ids...), m)
}

// LibrarySizes returns the total count of each sample.
func (t *Table) LibrarySizes() []float64 {
	_, c := t.M.Dims()
	out := make([]float64, c)
	for j := range out {
		out[j] = mat.Sum(t.M.ColView(j))
	}
	return out
}
