// Package taxonomy reads the per-feature taxonomic rank table that accompanies
// an OTU table.
package taxonomy

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/hrsip"
	"github.com/gocarina/gocsv"
)

// Ranks lists the supported ranks from broadest to narrowest.
var Ranks = []string{"Domain", "Phylum", "Class", "Order", "Family", "Genus", "Species"}

// Entry is one feature's classification. Unclassified ranks are empty.
type Entry struct {
	Feature string `csv:"OTU"`
	Kingdom string `csv:"Kingdom"`
	Domain  string `csv:"Domain"`
	Phylum  string `csv:"Phylum"`
	Class   string `csv:"Class"`
	Order   string `csv:"Order"`
	Family  string `csv:"Family"`
	Genus   string `csv:"Genus"`
	Species string `csv:"Species"`
}

// Rank returns the entry's name at rank. Missing names read as "unclassified".
func (e Entry) Rank(rank string) (string, error) {
	var v string
	switch strings.ToLower(rank) {
	case "domain", "kingdom":
		v = e.Domain
	case "phylum":
		v = e.Phylum
	case "class":
		v = e.Class
	case "order":
		v = e.Order
	case "family":
		v = e.Family
	case "genus":
		v = e.Genus
	case "species":
		v = e.Species
	default:
		return "", fmt.Errorf("unknown taxonomic rank %q; expected one of %v", rank, Ranks)
	}

	if v = strings.TrimSpace(v); v == "" || strings.EqualFold(v, "NA") {
		return "unclassified", nil
	}
	return v, nil
}

// Values returns the entry's names in Ranks order.
func (e Entry) Values() []string {
	out := make([]string, 0, len(Ranks))
	for _, r := range Ranks {
		v, _ := e.Rank(r)
		out = append(out, v)
	}
	return out
}

type Table struct {
	Entries []*Entry
	index   map[string]*Entry
}

// Load reads a taxonomy table from a local, compressed or gs:// path.
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

// Read parses a delimited taxonomy table whose header names the feature column
// OTU and the ranks Domain (or Kingdom) through Species.
func Read(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true

	entries := []*Entry{}
	if err := gocsv.UnmarshalCSV(cr, &entries); err != nil {
		return nil, err
	}

	t := &Table{Entries: entries, index: make(map[string]*Entry, len(entries))}
	for i, e := range entries {
		if e.Feature == "" {
			return nil, fmt.Errorf("taxonomy row %d has no OTU", i+1)
		}
		if e.Domain == "" {
			e.Domain = e.Kingdom
		}
		if _, exists := t.index[e.Feature]; exists {
			return nil, fmt.Errorf("duplicate taxonomy entry for %s", e.Feature)
		}
		t.index[e.Feature] = e
	}

	return t, nil
}

// Lookup returns the feature's entry, or an all-unclassified entry for a
// feature the table does not know.
func (t *Table) Lookup(feature string) Entry {
	if t != nil {
		if e, ok := t.index[feature]; ok {
			return *e
		}
	}
	return Entry{Feature: feature}
}
