package subset

import (
	"fmt"
	"strings"
)

// ConfigError reports inputs that cannot be turned into comparison groups at
// all. It is raised before any group is built, and lists every problem found.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "subset configuration error: " + e.Problems[0]
	}
	return fmt.Sprintf("subset configuration error (%d problems):\n\t%s", len(e.Problems), strings.Join(e.Problems, "\n\t"))
}

// GroupProblem describes one comparison group without a usable contrast.
type GroupProblem struct {
	Label            string
	MissingControl   bool
	MissingTreatment bool
}

func (p GroupProblem) String() string {
	var sides []string
	if p.MissingControl {
		sides = append(sides, "control")
	}
	if p.MissingTreatment {
		sides = append(sides, "treatment")
	}
	return fmt.Sprintf("%s: no %s samples", p.Label, strings.Join(sides, " or "))
}

// ValidationError lists every comparison group that lacks control-side or
// treatment-side members.
type ValidationError struct {
	Problems []GroupProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return fmt.Sprintf("%d comparison group(s) lack a treatment/control contrast:\n\t%s", len(e.Problems), strings.Join(parts, "\n\t"))
}

// Labels returns the offending group labels in enumeration order.
func (e *ValidationError) Labels() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Label)
	}
	return out
}
