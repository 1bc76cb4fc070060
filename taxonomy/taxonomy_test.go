package taxonomy

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRead(t *testing.T) {
	in := "OTU\tKingdom\tPhylum\tClass\tOrder\tFamily\tGenus\tSpecies\n" +
		"OTU.1\tBacteria\tProteobacteria\tAlphaproteobacteria\tRhizobiales\tBradyrhizobiaceae\tBradyrhizobium\t\n" +
		"OTU.2\tBacteria\tActinobacteria\tNA\t\t\t\t\n"

	tab, err := Read(strings.NewReader(in), '\t')
	if err != nil {
		t.Fatal(err)
	}

	e := tab.Lookup("OTU.1")
	if v, _ := e.Rank("Domain"); v != "Bacteria" {
		t.Errorf("Kingdom should fill in for Domain, got %s", v)
	}
	if v, _ := e.Rank("genus"); v != "Bradyrhizobium" {
		t.Errorf("Unexpected genus %s", v)
	}

	expected := []string{"Bacteria", "Actinobacteria", "unclassified", "unclassified", "unclassified", "unclassified", "unclassified"}
	if diff := cmp.Diff(expected, tab.Lookup("OTU.2").Values()); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}

	if v, _ := tab.Lookup("OTU.404").Rank("Phylum"); v != "unclassified" {
		t.Errorf("Unknown features should be unclassified, got %s", v)
	}

	if _, err := e.Rank("clade"); err == nil {
		t.Error("Expected an error for an unknown rank")
	}
}
