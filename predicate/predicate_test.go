package predicate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExprString(t *testing.T) {
	for _, v := range []struct {
		Expr     Expr
		Expected string
	}{
		{Eq{"substrate", "13C-Glu"}, "substrate=='13C-Glu'"},
		{And{Eq{"substrate", "13C-Glu"}, Eq{"day", "3"}}, "substrate=='13C-Glu' & day=='3'"},
		{
			Or{
				And{Eq{"substrate", "12C-Con"}, Eq{"day", "3"}},
				And{Eq{"substrate", "13C-Glu"}, Eq{"day", "3"}},
			},
			"(substrate=='12C-Con' & day=='3') | (substrate=='13C-Glu' & day=='3')",
		},
		{And{Ne{"substrate", "12C-Con"}, Or{Eq{"day", "3"}, Eq{"day", "14"}}}, "substrate!='12C-Con' & (day=='3' | day=='14')"},
		{Eq{"note", "it's"}, `note=="it's"`},
	} {
		if got := v.Expr.String(); got != v.Expected {
			t.Errorf("Got %s, expected %s", got, v.Expected)
		}
	}
}

func TestExprEval(t *testing.T) {
	glu3 := Attributes{"substrate": "13C-Glu", "day": "3"}
	con3 := Attributes{"substrate": "12C-Con", "day": "3"}
	noDay := Attributes{"substrate": "13C-Glu"}

	e := Or{
		And{Eq{"substrate", "12C-Con"}, Eq{"day", "3"}},
		And{Eq{"substrate", "13C-Glu"}, Eq{"day", "3"}},
	}

	if !e.Eval(glu3) || !e.Eval(con3) {
		t.Error("Expected both treatment and control at day 3 to match")
	}
	if e.Eval(noDay) {
		t.Error("A sample without a day should not match")
	}
	if (Ne{"day", "3"}).Eval(noDay) {
		t.Error("Ne should not match a missing variable")
	}
	if !(And{}).Eval(noDay) || (Or{}).Eval(noDay) {
		t.Error("Empty And should be true and empty Or false")
	}
}

func TestVariables(t *testing.T) {
	e := Or{
		And{Eq{"substrate", "12C-Con"}, Eq{"day", "3"}},
		And{Eq{"substrate", "13C-Glu"}, Eq{"day", "3"}, Eq{"core", "A"}},
	}
	if diff := cmp.Diff([]string{"substrate", "day", "core"}, Variables(e)); diff != "" {
		t.Errorf("Variables mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTemplateAndBind(t *testing.T) {
	tmpl, err := ParseTemplate(`(substrate=='12C-Con' & day=="${day}") | (substrate=='${substrate}' && day==${day})`)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"day", "substrate"}, tmpl.Placeholders()); diff != "" {
		t.Errorf("Placeholders mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"substrate", "day"}, tmpl.Variables()); diff != "" {
		t.Errorf("Variables mismatch (-want +got):\n%s", diff)
	}

	e, err := tmpl.Bind(map[string]string{"substrate": "13C-Cel", "day": "14"})
	if err != nil {
		t.Fatal(err)
	}

	expected := "(substrate=='12C-Con' & day=='14') | (substrate=='13C-Cel' & day=='14')"
	if e.String() != expected {
		t.Errorf("Got %s, expected %s", e, expected)
	}

	if !e.Eval(Attributes{"substrate": "13C-Cel", "day": "14"}) {
		t.Error("Bound template should match the treatment sample")
	}
	if e.Eval(Attributes{"substrate": "13C-Glu", "day": "14"}) {
		t.Error("Bound template should not match another treatment")
	}
}

func TestBindMissingPlaceholder(t *testing.T) {
	tmpl, err := ParseTemplate(`substrate=='${substrate}' & day=='${day}'`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpl.Bind(map[string]string{"substrate": "13C-Glu"}); err == nil {
		t.Error("Expected an error for the unbound day placeholder")
	}
}

func TestParseTemplateErrors(t *testing.T) {
	for _, src := range []string{
		``,
		`substrate==`,
		`(substrate=='a'`,
		`substrate=='a' day=='3'`,
		`substrate='a'`,
		`substrate=='unterminated`,
		`substrate=='x${day}'`,
		`substrate==${1bad}`,
		`3day=='3'`,
		`substrate=='a' &`,
	} {
		if _, err := ParseTemplate(src); err == nil {
			t.Errorf("Expected a parse error for %q", src)
		}
	}
}

func TestQuotedEscapes(t *testing.T) {
	tmpl, err := ParseTemplate(`site=='O\'Brien'`)
	if err != nil {
		t.Fatal(err)
	}
	e, err := tmpl.Bind(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Eval(Attributes{"site": "O'Brien"}) {
		t.Error("Escaped quote was not preserved")
	}
}
