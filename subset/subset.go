// Package subset partitions a DNA-SIP sample table into comparison groups, each
// holding one treatment's samples plus the matching control samples for one
// combination of the stratification variables (e.g. sampling day). Each group
// is later handed, on its own, to a differential-abundance engine.
package subset

import (
	"fmt"
	"log"

	"github.com/carbocation/hrsip/predicate"
	"github.com/carbocation/hrsip/sample"
)

// Design declares which grouping variable separates labeled treatments from
// the unlabeled control, and which variables are held fixed within a group.
type Design struct {
	// TreatmentAxis is the grouping variable whose values are the control
	// and the treatments, e.g. "substrate".
	TreatmentAxis string `json:"treatment_axis"`

	// Control is the baseline level of TreatmentAxis, e.g. "12C-Con".
	Control string `json:"control"`

	// Treatments optionally fixes the treatment levels and their order. When
	// empty, every observed non-control level is used in first-seen order.
	Treatments []string `json:"treatments,omitempty"`

	// Strata are the stratification variables, e.g. ["day"]. Each group
	// holds exactly one combination of their values.
	Strata []string `json:"strata,omitempty"`

	// Template optionally replaces the default pairing predicate. It may
	// refer to ${TreatmentAxis} and ${stratum} placeholders.
	Template string `json:"template,omitempty"`
}

// Group is one treatment/control comparison.
type Group struct {
	// Label names the binding that produced the group, e.g.
	// "substrate=='13C-Glu' & day=='3'".
	Label string

	Treatment string

	// Strata holds the bound stratification values keyed by variable.
	Strata map[string]string

	// Predicate is the bound filter that selected Samples.
	Predicate predicate.Expr

	// Samples are the matching samples, in source table order.
	Samples []sample.Sample
}

// IDs returns the member sample IDs.
func (g Group) IDs() []string {
	out := make([]string, 0, len(g.Samples))
	for _, s := range g.Samples {
		out = append(out, s.ID)
	}
	return out
}

// Collection is the ordered set of comparison groups for one design.
type Collection struct {
	Design Design
	Groups []Group

	// Skipped holds the labels of combinations for which no treatment sample
	// exists at all. No group is built for them.
	Skipped []string
}

// Labels returns group labels in enumeration order.
func (c *Collection) Labels() []string {
	out := make([]string, 0, len(c.Groups))
	for _, g := range c.Groups {
		out = append(out, g.Label)
	}
	return out
}

// Get returns the group with the given label.
func (c *Collection) Get(label string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Label == label {
			return g, true
		}
	}
	return Group{}, false
}

// Build enumerates every (stratification combination, treatment level) pair,
// stratification outermost, and filters samples with each bound predicate.
//
// Inputs that cannot be enumerated yield a *ConfigError before any filtering.
// Groups without both control and treatment members are gathered into a single
// *ValidationError. Either way no partial collection is returned.
func Build(samples []sample.Sample, d Design) (*Collection, error) {
	tmpl, treatments, err := checkDesign(samples, d)
	if err != nil {
		return nil, err
	}

	axes := append([]string{d.TreatmentAxis}, d.Strata...)
	out := &Collection{Design: d, Groups: make([]Group, 0)}
	problems := make([]GroupProblem, 0)

	for _, stratum := range combinations(samples, d.Strata) {
		for _, treatment := range treatments {
			binding := make(map[string]string, len(axes))
			binding[d.TreatmentAxis] = treatment
			for k, v := range stratum {
				binding[k] = v
			}

			label := predicate.Conjunction(axes, binding).String()

			// A treatment that was never sampled under this stratification
			// has nothing to compare, which differs from a group that exists
			// but is one-sided.
			if !hasCandidate(samples, predicate.Conjunction(axes, binding)) {
				log.Printf("No %s samples exist for %s; not building that group\n", d.TreatmentAxis, label)
				out.Skipped = append(out.Skipped, label)
				continue
			}

			var expr predicate.Expr
			if tmpl != nil {
				expr, err = tmpl.Bind(binding)
				if err != nil {
					return nil, &ConfigError{Problems: []string{err.Error()}}
				}
			} else {
				expr = defaultPredicate(d, treatment, stratum)
			}

			g := Group{
				Label:     label,
				Treatment: treatment,
				Strata:    stratum,
				Predicate: expr,
				Samples:   Filter(samples, expr),
			}

			if p := checkContrast(g, d); p.MissingControl || p.MissingTreatment {
				problems = append(problems, p)
			}

			out.Groups = append(out.Groups, g)
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	return out, nil
}

// Filter returns the samples matching expr, preserving order. The returned
// slice shares sample values with the input; samples are never copied deeply.
func Filter(samples []sample.Sample, expr predicate.Expr) []sample.Sample {
	out := make([]sample.Sample, 0)
	for _, s := range samples {
		if expr.Eval(s.Attributes) {
			out = append(out, s)
		}
	}
	return out
}

// defaultPredicate is (axis==control & strata...) | (axis==treatment & strata...).
func defaultPredicate(d Design, treatment string, stratum map[string]string) predicate.Expr {
	side := func(level string) predicate.And {
		out := predicate.And{predicate.Eq{Variable: d.TreatmentAxis, Value: level}}
		return append(out, predicate.Conjunction(d.Strata, stratum)...)
	}

	return predicate.Or{side(d.Control), side(treatment)}
}

func hasCandidate(samples []sample.Sample, expr predicate.Expr) bool {
	for _, s := range samples {
		if expr.Eval(s.Attributes) {
			return true
		}
	}
	return false
}

func checkContrast(g Group, d Design) GroupProblem {
	var nControl, nTreatment int
	for _, s := range g.Samples {
		switch s.Attributes[d.TreatmentAxis] {
		case d.Control:
			nControl++
		case g.Treatment:
			nTreatment++
		}
	}

	return GroupProblem{
		Label:            g.Label,
		MissingControl:   nControl == 0,
		MissingTreatment: nTreatment == 0,
	}
}

// combinations is the cross product of each stratum's observed values. The
// first declared stratum varies slowest. With no strata there is exactly one,
// empty, combination.
func combinations(samples []sample.Sample, strata []string) []map[string]string {
	out := []map[string]string{{}}
	for _, variable := range strata {
		values := sample.DistinctValues(samples, variable)
		next := make([]map[string]string, 0, len(out)*len(values))
		for _, prefix := range out {
			for _, v := range values {
				combo := make(map[string]string, len(prefix)+1)
				for k, pv := range prefix {
					combo[k] = pv
				}
				combo[variable] = v
				next = append(next, combo)
			}
		}
		out = next
	}
	return out
}

// checkDesign gathers every configuration problem at once, then returns the
// parsed template (nil for the default predicate) and the treatment levels.
func checkDesign(samples []sample.Sample, d Design) (*predicate.Template, []string, error) {
	problems := make([]string, 0)

	if len(samples) == 0 {
		problems = append(problems, "no samples were provided")
	}
	if d.TreatmentAxis == "" {
		problems = append(problems, "no treatment axis was declared")
	}
	if d.Control == "" {
		problems = append(problems, "no control level was declared")
	}

	declared := map[string]struct{}{d.TreatmentAxis: {}}
	for _, stratum := range d.Strata {
		if _, exists := declared[stratum]; exists {
			problems = append(problems, fmt.Sprintf("grouping variable %q is declared more than once", stratum))
			continue
		}
		declared[stratum] = struct{}{}
	}

	referenced := append([]string{d.TreatmentAxis}, d.Strata...)

	var tmpl *predicate.Template
	if d.Template != "" {
		var err error
		tmpl, err = predicate.ParseTemplate(d.Template)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			for _, ph := range tmpl.Placeholders() {
				if _, exists := declared[ph]; !exists {
					problems = append(problems, fmt.Sprintf("pairing template placeholder ${%s} is not a declared grouping variable", ph))
				}
			}
			for _, v := range tmpl.Variables() {
				if _, exists := declared[v]; !exists {
					referenced = append(referenced, v)
				}
			}
		}
	}

	for _, s := range samples {
		for _, v := range referenced {
			if v == "" {
				continue
			}
			if _, ok := s.Value(v); !ok {
				problems = append(problems, fmt.Sprintf("sample %s has no value for grouping variable %q", s.ID, v))
			}
		}
	}

	treatments := d.Treatments
	if len(treatments) > 0 {
		observed := make(map[string]struct{})
		for _, v := range sample.DistinctValues(samples, d.TreatmentAxis) {
			observed[v] = struct{}{}
		}

		seen := make(map[string]struct{})
		for _, t := range treatments {
			if t == d.Control {
				problems = append(problems, fmt.Sprintf("control level %q is also listed as a treatment", t))
			}
			if _, exists := seen[t]; exists {
				problems = append(problems, fmt.Sprintf("treatment level %q is listed more than once", t))
			}
			seen[t] = struct{}{}

			if _, exists := observed[t]; !exists && len(samples) > 0 && d.TreatmentAxis != "" {
				problems = append(problems, fmt.Sprintf("treatment level %q of %q is not present in any sample", t, d.TreatmentAxis))
			}
		}
	} else if d.TreatmentAxis != "" {
		for _, v := range sample.DistinctValues(samples, d.TreatmentAxis) {
			if v != d.Control {
				treatments = append(treatments, v)
			}
		}
		if len(treatments) == 0 && len(samples) > 0 {
			problems = append(problems, fmt.Sprintf("no treatment levels of %q other than the control %q were found", d.TreatmentAxis, d.Control))
		}
	}

	if len(problems) > 0 {
		return nil, nil, &ConfigError{Problems: problems}
	}

	return tmpl, treatments, nil
}
