package sample

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleTable = `sample	substrate	day	Buoyant_density
12C-Con_D3_F1	12C-Con	3	1.701
13C-Glu_D3_F1	13C-Glu	3	1.712
13C-Cel_D3_F1	13C-Cel	3	1.718
12C-Con_D14_F1	12C-Con	14	1.705
13C-Glu_D14_F1	13C-Glu	14	
`

func TestRead(t *testing.T) {
	tab, err := Read(strings.NewReader(sampleTable), '\t', "")
	if err != nil {
		t.Fatal(err)
	}

	if tab.IDColumn != "sample" {
		t.Errorf("Expected the first column to hold IDs, got %s", tab.IDColumn)
	}
	if len(tab.Samples) != 5 {
		t.Fatalf("Expected 5 samples, got %d", len(tab.Samples))
	}

	if diff := cmp.Diff([]string{"12C-Con", "13C-Glu", "13C-Cel"}, tab.Values("substrate")); diff != "" {
		t.Errorf("substrate values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"3", "14"}, tab.Values("day")); diff != "" {
		t.Errorf("day values mismatch (-want +got):\n%s", diff)
	}

	s, ok := tab.Lookup("13C-Glu_D14_F1")
	if !ok {
		t.Fatal("Lookup failed")
	}
	if _, ok := s.Value("Buoyant_density"); ok {
		t.Error("An empty cell should read as missing")
	}
}

func TestReadNamedIDColumn(t *testing.T) {
	tab, err := Read(strings.NewReader("substrate,id\n12C-Con,a\n13C-Glu,b\n"), ',', "id")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, tab.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}

	if _, err := Read(strings.NewReader("substrate,id\n"), ',', "sample"); err == nil {
		t.Error("Expected an error for a missing ID column")
	}
}

func TestReadDuplicateID(t *testing.T) {
	if _, err := Read(strings.NewReader("id,day\na,3\na,14\n"), ',', ""); err == nil {
		t.Error("Expected an error for duplicate sample IDs")
	}
}

func TestReadQIIMEHeader(t *testing.T) {
	input := "#SampleID\tsubstrate\tday\n#q2:types\tcategorical\tcategorical\nS1\t12C-Con\t3\nS2\t13C-Glu\t3\n"

	tab, err := Read(strings.NewReader(input), '\t', "")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"SampleID", "substrate", "day"}, tab.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"S1", "S2"}, tab.IDs()); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}

	if _, err := Read(strings.NewReader(input), '\t', "SampleID"); err != nil {
		t.Errorf("Expected the stripped header to be addressable by name: %v", err)
	}
}

func TestReadRaggedRow(t *testing.T) {
	if _, err := Read(strings.NewReader("id,day\na,3\nb\n"), ',', ""); err == nil {
		t.Error("Expected an error for a row with too few fields")
	}
}
