// Package sample loads the per-sample attribute table of a DNA-SIP experiment:
// one row per sequenced fraction, with the grouping variables (substrate, day,
// buoyant density, ...) as columns.
package sample

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip"
	"github.com/carbocation/hrsip/predicate"
	"github.com/carbocation/pfx"
)

// Sample is one sequenced physical unit. Samples are read once and never
// mutated.
type Sample struct {
	ID         string
	Attributes predicate.Attributes
}

// Value returns the sample's value for a grouping variable. Empty cells count
// as missing.
func (s Sample) Value(variable string) (string, bool) {
	v, ok := s.Attributes[variable]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

type Table struct {
	IDColumn string
	Columns  []string
	Samples  []Sample

	index map[string]int
}

// Load reads a sample table from a local, ~-prefixed, compressed or gs://
// path. If idColumn is empty, the first column holds the sample IDs.
func Load(ctx context.Context, path, idColumn string, client *storage.Client) (*Table, error) {
	data, delim, err := hrsip.ReadTable(ctx, path, client)
	if err != nil {
		return nil, err
	}

	t, err := Read(bytes.NewReader(data), delim, idColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Read parses a delimited sample table with a header row.
func Read(r io.Reader, delim rune, idColumn string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := hrsip.ReadHeader(cr)
	if err == io.EOF {
		return nil, fmt.Errorf("sample table is empty")
	} else if err != nil {
		return nil, pfx.Err(err)
	}

	idCol := 0
	if idColumn != "" {
		idCol = -1
		for k, name := range header {
			if name == idColumn {
				idCol = k
				break
			}
		}
		if idCol < 0 {
			return nil, fmt.Errorf("sample ID column %q is not in the header %v", idColumn, header)
		}
	}

	t := &Table{
		IDColumn: header[idCol],
		Columns:  header,
		Samples:  make([]Sample, 0),
		index:    make(map[string]int),
	}

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

		id := strings.TrimSpace(row[idCol])
		if id == "" {
			return nil, fmt.Errorf("line %d: empty sample ID", line)
		}
		if _, exists := t.index[id]; exists {
			return nil, fmt.Errorf("line %d: duplicate sample ID %q", line, id)
		}

		attrs := make(predicate.Attributes, len(header))
		for k, name := range header {
			attrs[name] = strings.TrimSpace(row[k])
		}

		t.index[id] = len(t.Samples)
		t.Samples = append(t.Samples, Sample{ID: id, Attributes: attrs})
	}

	return t, nil
}

// New builds a table directly from samples, mostly for tests and callers that
// already hold their metadata in memory.
func New(samples []Sample) (*Table, error) {
	t := &Table{
		Samples: samples,
		index:   make(map[string]int, len(samples)),
	}

	seen := make(map[string]struct{})
	for i, s := range samples {
		if _, exists := t.index[s.ID]; exists {
			return nil, fmt.Errorf("duplicate sample ID %q", s.ID)
		}
		t.index[s.ID] = i

		for k := range s.Attributes {
			if _, exists := seen[k]; !exists {
				seen[k] = struct{}{}
				t.Columns = append(t.Columns, k)
			}
		}
	}

	return t, nil
}

// Lookup finds a sample by ID.
func (t *Table) Lookup(id string) (Sample, bool) {
	i, ok := t.index[id]
	if !ok {
		return Sample{}, false
	}
	return t.Samples[i], true
}

// HasColumn reports whether the header declared the column.
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Values returns the distinct non-empty values of a grouping variable in the
// order they are first seen.
func (t *Table) Values(variable string) []string {
	return DistinctValues(t.Samples, variable)
}

// IDs returns the sample IDs in table order.
func (t *Table) IDs() []string {
	out := make([]string, 0, len(t.Samples))
	for _, s := range t.Samples {
		out = append(out, s.ID)
	}
	return out
}

// DistinctValues returns the distinct non-empty values of variable across
// samples, in first-seen order.
func DistinctValues(samples []Sample, variable string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, s := range samples {
		v, ok := s.Value(variable)
		if !ok {
			continue
		}
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
