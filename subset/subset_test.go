package subset

import (
	"errors"
	"strings"
	"testing"

	"github.com/carbocation/hrsip/predicate"
	"github.com/carbocation/hrsip/sample"
	"github.com/google/go-cmp/cmp"
)

func mk(id string, kv ...string) sample.Sample {
	attrs := make(predicate.Attributes)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs[kv[i]] = kv[i+1]
	}
	return sample.Sample{ID: id, Attributes: attrs}
}

func tutorialSamples() []sample.Sample {
	return []sample.Sample{
		mk("1", "substrate", "12C-Con", "day", "3"),
		mk("2", "substrate", "13C-Glu", "day", "3"),
		mk("3", "substrate", "13C-Cel", "day", "3"),
		mk("4", "substrate", "12C-Con", "day", "14"),
		mk("5", "substrate", "13C-Glu", "day", "14"),
	}
}

var tutorialDesign = Design{
	TreatmentAxis: "substrate",
	Control:       "12C-Con",
	Strata:        []string{"day"},
}

func TestTutorialScenario(t *testing.T) {
	c, err := Build(tutorialSamples(), tutorialDesign)
	if err != nil {
		t.Fatal(err)
	}

	expected := []struct {
		Label string
		IDs   []string
	}{
		{"substrate=='13C-Glu' & day=='3'", []string{"1", "2"}},
		{"substrate=='13C-Cel' & day=='3'", []string{"1", "3"}},
		{"substrate=='13C-Glu' & day=='14'", []string{"4", "5"}},
	}

	if len(c.Groups) != len(expected) {
		t.Fatalf("Expected %d groups, got %d: %v", len(expected), len(c.Groups), c.Labels())
	}
	for i, v := range expected {
		g := c.Groups[i]
		if g.Label != v.Label {
			t.Errorf("Group %d: label %s, expected %s", i, g.Label, v.Label)
		}
		if diff := cmp.Diff(v.IDs, g.IDs()); diff != "" {
			t.Errorf("%s: members mismatch (-want +got):\n%s", v.Label, diff)
		}
	}

	if diff := cmp.Diff([]string{"substrate=='13C-Cel' & day=='14'"}, c.Skipped); diff != "" {
		t.Errorf("Skipped mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.Get("substrate=='13C-Cel' & day=='14'"); ok {
		t.Error("No group should exist for a combination without treatment samples")
	}
}

func fourGroupSamples() []sample.Sample {
	out := make([]sample.Sample, 0)
	for _, strat := range []string{"x", "y"} {
		for _, trt := range []string{"control", "A", "B"} {
			for rep := 1; rep <= 2; rep++ {
				id := trt + "_" + strat + "_" + string(rune('0'+rep))
				out = append(out, mk(id, "trt", trt, "site", strat))
			}
		}
	}
	return out
}

func TestCrossProductOrder(t *testing.T) {
	c, err := Build(fourGroupSamples(), Design{TreatmentAxis: "trt", Control: "control", Strata: []string{"site"}})
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"trt=='A' & site=='x'",
		"trt=='B' & site=='x'",
		"trt=='A' & site=='y'",
		"trt=='B' & site=='y'",
	}
	if diff := cmp.Diff(expected, c.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}

	for _, g := range c.Groups {
		if len(g.Samples) != 4 {
			t.Errorf("%s: expected 2 control + 2 treatment samples, got %v", g.Label, g.IDs())
		}
	}
}

func TestExplicitTreatmentOrder(t *testing.T) {
	d := tutorialDesign
	d.Treatments = []string{"13C-Cel", "13C-Glu"}

	c, err := Build(tutorialSamples(), d)
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"substrate=='13C-Cel' & day=='3'",
		"substrate=='13C-Glu' & day=='3'",
		"substrate=='13C-Glu' & day=='14'",
	}
	if diff := cmp.Diff(expected, c.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
}

func TestExplicitTreatmentMissing(t *testing.T) {
	d := tutorialDesign
	d.Treatments = []string{"13C-Xyl"}

	c, err := Build(tutorialSamples(), d)
	if c != nil {
		t.Errorf("Expected no collection, got %v", c.Labels())
	}

	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected a *ConfigError, got %v", err)
	}
	if len(ce.Problems) != 1 || !strings.Contains(ce.Problems[0], "13C-Xyl") {
		t.Errorf("Expected one problem naming 13C-Xyl, got %v", ce.Problems)
	}

	// A typo next to a real level is still rejected rather than skipped.
	d.Treatments = []string{"13C-Glu", "13C-glu"}
	if _, err := Build(tutorialSamples(), d); !errors.As(err, &ce) {
		t.Errorf("Expected a *ConfigError, got %v", err)
	}
}

func TestFilterRoundTrip(t *testing.T) {
	samples := fourGroupSamples()
	c, err := Build(samples, Design{TreatmentAxis: "trt", Control: "control", Strata: []string{"site"}})
	if err != nil {
		t.Fatal(err)
	}

	// Regrouping the collection by label must equal filtering the source table
	// directly with each group's bound predicate.
	regrouped := make(map[string][]string)
	for _, g := range c.Groups {
		for _, s := range g.Samples {
			regrouped[g.Label] = append(regrouped[g.Label], s.ID)
		}
	}

	for _, g := range c.Groups {
		direct := make([]string, 0)
		for _, s := range samples {
			if g.Predicate.Eval(s.Attributes) {
				direct = append(direct, s.ID)
			}
		}
		if diff := cmp.Diff(direct, regrouped[g.Label]); diff != "" {
			t.Errorf("%s: round trip mismatch (-want +got):\n%s", g.Label, diff)
		}
	}
}

func TestMissingControlIsValidationError(t *testing.T) {
	samples := append(tutorialSamples(),
		mk("6", "substrate", "13C-Glu", "day", "30"),
		mk("7", "substrate", "13C-Cel", "day", "30"),
	)

	_, err := Build(samples, tutorialDesign)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}

	expected := []string{
		"substrate=='13C-Glu' & day=='30'",
		"substrate=='13C-Cel' & day=='30'",
	}
	if diff := cmp.Diff(expected, verr.Labels()); diff != "" {
		t.Errorf("Offending labels mismatch (-want +got):\n%s", diff)
	}
	for _, p := range verr.Problems {
		if !p.MissingControl || p.MissingTreatment {
			t.Errorf("%s: expected only the control side to be missing", p.Label)
		}
	}
	if !strings.Contains(err.Error(), "substrate=='13C-Cel' & day=='30'") {
		t.Errorf("Error message should name every offending label: %s", err)
	}
}

func TestTemplateThatDropsTreatmentIsValidationError(t *testing.T) {
	d := tutorialDesign
	// A broken template that only ever selects controls.
	d.Template = `substrate=='12C-Con' & day=='${day}' & substrate!='${substrate}'`

	_, err := Build(tutorialSamples(), d)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("Expected all 3 groups to be reported, got %v", verr.Labels())
	}
}

func TestTutorialTemplate(t *testing.T) {
	d := tutorialDesign
	d.Template = `(substrate=='12C-Con' & day=='${day}') | (substrate=='${substrate}' & day=='${day}')`

	c, err := Build(tutorialSamples(), d)
	if err != nil {
		t.Fatal(err)
	}

	g, ok := c.Get("substrate=='13C-Cel' & day=='3'")
	if !ok {
		t.Fatal("Missing group")
	}
	if diff := cmp.Diff([]string{"1", "3"}, g.IDs()); diff != "" {
		t.Errorf("Members mismatch (-want +got):\n%s", diff)
	}
	if g.Predicate.String() != "(substrate=='12C-Con' & day=='3') | (substrate=='13C-Cel' & day=='3')" {
		t.Errorf("Unexpected bound predicate %s", g.Predicate)
	}
}

func TestNoTreatmentsIsConfigError(t *testing.T) {
	samples := []sample.Sample{
		mk("1", "substrate", "12C-Con", "day", "3"),
		mk("2", "substrate", "12C-Con", "day", "14"),
	}

	c, err := Build(samples, tutorialDesign)
	if c != nil {
		t.Errorf("Expected no groups, got %v", c.Labels())
	}

	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected a ConfigError, got %v", err)
	}
}

func TestConfigErrorsAreCollected(t *testing.T) {
	samples := []sample.Sample{
		mk("1", "substrate", "12C-Con"),
		mk("2", "substrate", "13C-Glu", "day", ""),
		mk("3", "day", "3"),
	}
	d := tutorialDesign
	d.Template = `substrate=='${substrate}' & core=='${core}'`

	_, err := Build(samples, d)

	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected a ConfigError, got %v", err)
	}

	for _, fragment := range []string{
		"sample 1 has no value for grouping variable \"day\"",
		"sample 2 has no value for grouping variable \"day\"",
		"sample 3 has no value for grouping variable \"substrate\"",
		"${core} is not a declared grouping variable",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Expected %q in:\n%s", fragment, err)
		}
	}
}

func TestConfigErrorOnEmptyInput(t *testing.T) {
	var cerr *ConfigError
	if _, err := Build(nil, tutorialDesign); !errors.As(err, &cerr) {
		t.Errorf("Expected a ConfigError for no samples, got %v", err)
	}

	d := tutorialDesign
	d.Treatments = []string{"12C-Con"}
	if _, err := Build(tutorialSamples(), d); !errors.As(err, &cerr) {
		t.Errorf("Expected a ConfigError when the control is listed as a treatment, got %v", err)
	}

	d = tutorialDesign
	d.Strata = []string{"day", "substrate"}
	if _, err := Build(tutorialSamples(), d); !errors.As(err, &cerr) {
		t.Errorf("Expected a ConfigError for an axis declared twice, got %v", err)
	}
}

func TestNoStrata(t *testing.T) {
	c, err := Build(tutorialSamples(), Design{TreatmentAxis: "substrate", Control: "12C-Con"})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"substrate=='13C-Glu'", "substrate=='13C-Cel'"}, c.Labels()); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	g, _ := c.Get("substrate=='13C-Glu'")
	if diff := cmp.Diff([]string{"1", "2", "4", "5"}, g.IDs()); diff != "" {
		t.Errorf("Members mismatch (-want +got):\n%s", diff)
	}
}
