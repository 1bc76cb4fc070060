// Package engine defines the contract of the differential-abundance engine that
// is run once per comparison group, and provides HeavyWindow, a built-in
// implementation of the multi-window high-resolution SIP test.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/carbocation/hrsip/dataset"
)

// ErrInsufficientReplication is returned when no density window has enough
// control and treatment fractions to test.
var ErrInsufficientReplication = errors.New("insufficient replication within every density window")

// Window is an inclusive buoyant density range.
type Window struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (w Window) Contains(density float64) bool {
	return density >= w.Lower && density <= w.Upper
}

func (w Window) String() string {
	return fmt.Sprintf("%g-%g", w.Lower, w.Upper)
}

// Request is everything needed to test one comparison group.
type Request struct {
	Label string

	// Data holds only the group's samples.
	Data *dataset.Dataset

	TreatmentAxis string
	Control       string
	Treatment     string

	// DensityColumn names the sample attribute holding buoyant density.
	DensityColumn string

	Windows            []Window
	SparsityThresholds []float64
	Alpha              float64
}

// Result is one feature's outcome for one sparsity threshold.
type Result struct {
	Label    string
	Feature  string
	Sparsity float64
	Window   Window
	BaseMean float64
	L2FC     float64
	P        float64
	PAdj     float64
}

// Incorporator reports whether the feature counts as isotopically labeled at
// significance level alpha.
func (r Result) Incorporator(alpha float64) bool {
	return r.PAdj < alpha && r.L2FC > 0
}

// Engine tests one comparison group. Implementations must be safe for
// concurrent use, since groups may be dispatched in parallel.
type Engine interface {
	Test(ctx context.Context, req Request) ([]Result, error)
}

// Func adapts a function to the Engine interface.
type Func func(ctx context.Context, req Request) ([]Result, error)

func (f Func) Test(ctx context.Context, req Request) ([]Result, error) {
	return f(ctx, req)
}

// AdjustBH applies the Benjamini-Hochberg step-up adjustment. NaN p values are
// treated as 1.
func AdjustBH(p []float64) []float64 {
	n := len(p)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	clean := func(v float64) float64 {
		if v != v || v > 1 {
			return 1
		}
		return v
	}
	sort.SliceStable(order, func(i, j int) bool { return clean(p[order[i]]) < clean(p[order[j]]) })

	running := 1.0
	for rank := n; rank >= 1; rank-- {
		i := order[rank-1]
		adj := clean(p[i]) * float64(n) / float64(rank)
		if adj < running {
			running = adj
		}
		out[i] = running
	}

	return out
}

// SelectSparsity keeps, for each label, only the sparsity threshold with the
// most incorporators at alpha. Ties go to the lowest threshold. Result order is
// otherwise preserved.
func SelectSparsity(results []Result, alpha float64) []Result {
	type key struct {
		label    string
		sparsity float64
	}
	rejected := make(map[key]int)
	seen := make(map[key]bool)
	for _, r := range results {
		k := key{r.Label, r.Sparsity}
		seen[k] = true
		if r.Incorporator(alpha) {
			rejected[k]++
		}
	}

	best := make(map[string]float64)
	bestCount := make(map[string]int)
	for k := range seen {
		cur, exists := best[k.label]
		n := rejected[k]
		if !exists || n > bestCount[k.label] || (n == bestCount[k.label] && k.sparsity < cur) {
			best[k.label] = k.sparsity
			bestCount[k.label] = n
		}
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		if best[r.Label] == r.Sparsity {
			out = append(out, r)
		}
	}
	return out
}
