package results

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carbocation/hrsip/engine"
	"github.com/carbocation/hrsip/taxonomy"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func fixtureResults() []engine.Result {
	w := engine.Window{Lower: 1.71, Upper: 1.75}
	return []engine.Result{
		{Label: "substrate=='13C-Cel' & day=='3'", Feature: "OTU.1", Sparsity: 0.25, Window: w, BaseMean: 40, L2FC: 2.5, P: 0.001, PAdj: 0.004},
		{Label: "substrate=='13C-Cel' & day=='3'", Feature: "OTU.2", Sparsity: 0.25, Window: w, BaseMean: 12, L2FC: 0.8, P: 0.01, PAdj: 0.02},
		{Label: "substrate=='13C-Cel' & day=='3'", Feature: "OTU.3", Sparsity: 0.25, Window: w, BaseMean: 3, L2FC: -1, P: 0.9, PAdj: 0.9},
		{Label: "substrate=='13C-Glu' & day=='3'", Feature: "OTU.1", Sparsity: 0.25, Window: w, BaseMean: 38, L2FC: 0.2, P: math.NaN(), PAdj: 1},
	}
}

func fixtureTaxonomy(t *testing.T) *taxonomy.Table {
	t.Helper()

	tax, err := taxonomy.Read(strings.NewReader(strings.Join([]string{
		"OTU\tDomain\tPhylum\tClass\tOrder\tFamily\tGenus\tSpecies",
		"OTU.1\tBacteria\tActinobacteria\tActinobacteria\tStreptomycetales\tStreptomycetaceae\tStreptomyces\tNA",
		"OTU.2\tBacteria\tActinobacteria\tThermoleophilia\tSolirubrobacterales\tNA\tNA\tNA",
		"OTU.3\tBacteria\tProteobacteria\tNA\tNA\tNA\tNA\tNA",
	}, "\n")), '\t')
	if err != nil {
		t.Fatal(err)
	}
	return tax
}

func TestWriteTSVHeader(t *testing.T) {
	rows := FromResults(fixtureResults(), nil, 0.1)

	var buf bytes.Buffer
	if err := WriteTSV(&buf, rows, false); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected a header and 4 rows, got %d lines", len(lines))
	}

	expected := "label\tfeature\tsparsity\twindow_lower\twindow_upper\tbase_mean\tl2fc\tp\tpadj\tincorporator"
	if lines[0] != expected {
		t.Errorf("Header mismatch:\n%s\n%s", expected, lines[0])
	}

	if !strings.HasPrefix(lines[1], "substrate=='13C-Cel' & day=='3'\tOTU.1\t0.25\t1.71\t1.75\t40\t2.5\t0.001\t0.004\ttrue") {
		t.Errorf("Unexpected first row %q", lines[1])
	}

	if fields := strings.Split(lines[4], "\t"); fields[7] != "NaN" || fields[9] != "false" {
		t.Errorf("Unexpected last row %q", lines[4])
	}
}

func TestWriteReadTaxonomy(t *testing.T) {
	rows := FromResults(fixtureResults(), fixtureTaxonomy(t), 0.1)

	var buf bytes.Buffer
	if err := WriteTSV(&buf, rows, true); err != nil {
		t.Fatal(err)
	}

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.HasSuffix(header, "\tDomain\tPhylum\tClass\tOrder\tFamily\tGenus\tSpecies") {
		t.Errorf("Expected taxonomic columns in %q", header)
	}

	got, err := ReadTSV(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(rows, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Read mismatch (-want +got):\n%s", diff)
	}

	if got[0].Genus != "Streptomyces" || got[0].Species != "unclassified" {
		t.Errorf("Unexpected taxonomy echo %+v", got[0])
	}
}

func TestSummarize(t *testing.T) {
	rows := FromResults(fixtureResults(), fixtureTaxonomy(t), 0.1)

	got, err := Summarize(rows, nil, "Phylum", 0.1)
	if err != nil {
		t.Fatal(err)
	}

	expected := []TaxonSummary{
		{Label: "substrate=='13C-Cel' & day=='3'", Taxon: "Actinobacteria", Count: 2, MeanL2FC: 1.65, MedianL2FC: 1.65, MaxL2FC: 2.5},
	}
	if diff := cmp.Diff(expected, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}

	got, err = Summarize(rows, fixtureTaxonomy(t), "Family", 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Taxon != "Streptomycetaceae" || got[1].Taxon != "unclassified" {
		t.Errorf("Unexpected family summary %+v", got)
	}

	if _, err := Summarize(rows, nil, "Clade", 0.1); err == nil {
		t.Error("Expected an error for an unknown rank")
	}
}

func TestSQLite(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "results.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rows := FromResults(fixtureResults()[:3], fixtureTaxonomy(t), 0.1)
	if err := SaveSQLite(db, rows); err != nil {
		t.Fatal(err)
	}

	got, err := LoadSQLite(db, "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("SQLite mismatch (-want +got):\n%s", diff)
	}

	got, err = LoadSQLite(db, "substrate=='13C-Glu' & day=='3'")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no rows for an absent label, got %d", len(got))
	}
}

func TestSummarizeCountsFeaturesOnce(t *testing.T) {
	w := engine.Window{Lower: 1.71, Upper: 1.75}
	res := []engine.Result{}
	for _, s := range []float64{0, 0.15, 0.25} {
		res = append(res,
			engine.Result{Label: "g", Feature: "OTU.1", Sparsity: s, Window: w, L2FC: 2 + s, PAdj: 0.01},
			engine.Result{Label: "g", Feature: "OTU.2", Sparsity: s, Window: w, L2FC: 1, PAdj: 0.01},
		)
	}
	rows := FromResults(res, fixtureTaxonomy(t), 0.1)

	got, err := Summarize(rows, nil, "Phylum", 0.1)
	if err != nil {
		t.Fatal(err)
	}

	expected := []TaxonSummary{
		{Label: "g", Taxon: "Actinobacteria", Count: 2, MeanL2FC: 1.625, MedianL2FC: 1.625, MaxL2FC: 2.25},
	}
	if diff := cmp.Diff(expected, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
}
